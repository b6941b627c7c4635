// Package workflow はルーティングの workflow アクションを受け付けるワークフローエンジン実装
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/routing"
)

// 実行状態
const (
	StatusStarted = "started"
)

// Execution は起動されたワークフローの実行
type Execution struct {
	ID        uuid.UUID      `json:"id"`
	Workflow  string         `json:"workflow"`
	Input     map[string]any `json:"input"`
	Status    string         `json:"status"`
	StartedAt time.Time      `json:"startedAt"`
}

// Store は実行の永続化インターフェース
type Store interface {
	Insert(ctx context.Context, exec *Execution) error
	Get(ctx context.Context, id uuid.UUID) (*Execution, error)
}

// Engine は実行を記録してハンドル（実行ID）を返すワークフローエンジン
// 実際の処理は実行テーブルを購読する外部ワーカーが担う
type Engine struct {
	store   Store
	allowed map[string]bool
	logger  *slog.Logger
	now     func() time.Time
}

// EngineOption は Engine のオプション設定
type EngineOption func(*Engine)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWorkflows は起動できるワークフロー名を制限する（未指定なら制限なし）
func WithWorkflows(names ...string) EngineOption {
	return func(e *Engine) {
		if len(names) == 0 {
			return
		}
		e.allowed = make(map[string]bool, len(names))
		for _, n := range names {
			e.allowed[n] = true
		}
	}
}

// WithClock は時刻取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine は新しい Engine を作成する
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Start はワークフローの実行を記録し、実行IDを返す
func (e *Engine) Start(ctx context.Context, workflowName string, input map[string]any) (string, error) {
	if workflowName == "" {
		return "", errs.InvalidInput("workflow.Start", "workflow name is required")
	}
	if e.allowed != nil && !e.allowed[workflowName] {
		return "", errs.InvalidInput("workflow.Start", "unknown workflow %q", workflowName)
	}

	exec := &Execution{
		ID:        uuid.New(),
		Workflow:  workflowName,
		Input:     input,
		Status:    StatusStarted,
		StartedAt: e.now(),
	}
	if err := e.store.Insert(ctx, exec); err != nil {
		return "", errs.Persistence("workflow.Start", fmt.Errorf("failed to record workflow execution: %w", err))
	}

	e.logger.Info("workflow started", "workflow", workflowName, "executionId", exec.ID)
	return exec.ID.String(), nil
}

// Get は実行を取得する
func (e *Engine) Get(ctx context.Context, executionID string) (*Execution, error) {
	id, err := uuid.Parse(executionID)
	if err != nil {
		return nil, errs.InvalidInput("workflow.Get", "invalid execution id %q", executionID)
	}
	exec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, errs.Persistence("workflow.Get", err)
	}
	return exec, nil
}

var _ routing.WorkflowEngine = (*Engine)(nil)
