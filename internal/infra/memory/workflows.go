package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/infra/workflow"
)

// WorkflowExecutions はワークフロー実行を保持する
type WorkflowExecutions struct {
	mu    sync.RWMutex
	execs map[uuid.UUID]*workflow.Execution
}

// NewWorkflowExecutions は新しい WorkflowExecutions を作成する
func NewWorkflowExecutions() *WorkflowExecutions {
	return &WorkflowExecutions{execs: make(map[uuid.UUID]*workflow.Execution)}
}

// Insert は実行を追加する
func (s *WorkflowExecutions) Insert(ctx context.Context, exec *workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *exec
	s.execs[exec.ID] = &c
	return nil
}

// Get は実行を取得する
func (s *WorkflowExecutions) Get(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, errs.NotFound("memory.WorkflowExecutions.Get", "workflow execution %s not found", id)
	}
	c := *exec
	return &c, nil
}

var _ workflow.Store = (*WorkflowExecutions)(nil)
