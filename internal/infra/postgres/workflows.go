package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/infra/workflow"
)

// WorkflowExecutionRepository は workflow_executions テーブルを扱う
// 外部ワーカーはこのテーブルを購読して実行を進める
type WorkflowExecutionRepository struct {
	db DBTX
}

// NewWorkflowExecutionRepository は新しい WorkflowExecutionRepository を作成する
func NewWorkflowExecutionRepository(db DBTX) *WorkflowExecutionRepository {
	return &WorkflowExecutionRepository{db: db}
}

// Insert は実行を追加する
func (r *WorkflowExecutionRepository) Insert(ctx context.Context, exec *workflow.Execution) error {
	input, err := marshalJSON(exec.Input)
	if err != nil {
		return errs.Persistence("postgres.WorkflowExecutionRepository.Insert", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO workflow_executions (id, workflow, input, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		exec.ID, exec.Workflow, input, exec.Status, exec.StartedAt,
	)
	if err != nil {
		return errs.Persistence("postgres.WorkflowExecutionRepository.Insert", fmt.Errorf("failed to insert workflow execution: %w", err))
	}
	return nil
}

// Get は実行を取得する
func (r *WorkflowExecutionRepository) Get(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	var (
		exec  workflow.Execution
		input []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, workflow, input, status, started_at FROM workflow_executions WHERE id = $1`, id,
	).Scan(&exec.ID, &exec.Workflow, &input, &exec.Status, &exec.StartedAt)
	if err != nil {
		return nil, wrapError("postgres.WorkflowExecutionRepository.Get", err, fmt.Sprintf("workflow execution %s not found", id))
	}
	if err := unmarshalJSON(input, &exec.Input); err != nil {
		return nil, errs.Persistence("postgres.WorkflowExecutionRepository.Get", err)
	}
	return &exec, nil
}

var _ workflow.Store = (*WorkflowExecutionRepository)(nil)
