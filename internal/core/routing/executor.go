package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/document"
)

// DefaultAssignmentTopic はチーム割り当て・専門家レビュー依頼を流すトピック
const DefaultAssignmentTopic = "document-assignments"

var errWorkflowEngineMissing = errors.New("workflow engine is not configured")

// WorkflowEngine は外部ワークフローの起動インターフェース
type WorkflowEngine interface {
	// Start はワークフローを起動し、実行ハンドルを返す
	Start(ctx context.Context, workflowName string, input map[string]any) (string, error)
}

// Publisher は通知チャネルへの発行インターフェース（ベストエフォート）
type Publisher interface {
	Publish(ctx context.Context, topic string, message any) error
}

// Message は通知チャネルに流すメッセージ
type Message struct {
	Kind         ActionType     `json:"kind"`
	DocumentID   string         `json:"documentId"`
	Title        string         `json:"title"`
	Target       string         `json:"target"`
	DocumentType string         `json:"documentType"`
	Domain       string         `json:"domain"`
	Priority     string         `json:"priority"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	SentAt       time.Time      `json:"sentAt"`
}

// Executor は自動ルートを実行する
type Executor struct {
	workflows       WorkflowEngine
	publisher       Publisher
	assignmentTopic string
	logger          *slog.Logger
	now             func() time.Time
}

// ExecutorOption は Executor のオプション設定
type ExecutorOption func(*Executor)

// WithExecutorLogger はロガーを設定する
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(x *Executor) {
		x.logger = logger
	}
}

// WithAssignmentTopic は割り当てメッセージのトピックを設定する
func WithAssignmentTopic(topic string) ExecutorOption {
	return func(x *Executor) {
		x.assignmentTopic = topic
	}
}

// WithExecutorClock は時刻取得関数を差し替える（テスト用）
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(x *Executor) {
		x.now = now
	}
}

// NewExecutor は新しい Executor を作成する
func NewExecutor(workflows WorkflowEngine, publisher Publisher, opts ...ExecutorOption) *Executor {
	x := &Executor{
		workflows:       workflows,
		publisher:       publisher,
		assignmentTopic: DefaultAssignmentTopic,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.Default()
	}
	if x.assignmentTopic == "" {
		x.assignmentTopic = DefaultAssignmentTopic
	}
	return x
}

// ExecuteAll は各ルートを独立に実行する
// 1つのルートの失敗はその結果に記録し、他のルートの実行は止めない
func (x *Executor) ExecuteAll(ctx context.Context, doc *document.Document, cls *classification.Result, routes []Route) []Execution {
	out := make([]Execution, 0, len(routes))
	for _, route := range routes {
		out = append(out, x.Execute(ctx, doc, cls, route))
	}
	return out
}

// Execute は1つのルートを実行する
func (x *Executor) Execute(ctx context.Context, doc *document.Document, cls *classification.Result, route Route) Execution {
	exec := Execution{
		RuleID: route.RuleID,
		Type:   route.Type,
		Target: route.Target,
	}

	handle, err := x.dispatch(ctx, doc, cls, route)
	exec.ExecutedAt = x.now()
	if err != nil {
		x.logger.Warn("route execution failed",
			"documentId", doc.ID,
			"ruleId", route.RuleID,
			"type", route.Type,
			"target", route.Target,
			"error", err,
		)
		exec.Error = err.Error()
		return exec
	}

	exec.Success = true
	exec.ExecutionID = handle
	x.logger.Info("route executed", "documentId", doc.ID, "type", route.Type, "target", route.Target, "executionId", handle)
	return exec
}

func (x *Executor) dispatch(ctx context.Context, doc *document.Document, cls *classification.Result, route Route) (string, error) {
	switch route.Type {
	case ActionWorkflow:
		if x.workflows == nil {
			return "", errWorkflowEngineMissing
		}
		input := map[string]any{
			"documentId":   doc.ID,
			"title":        doc.Title,
			"documentType": cls.DocumentType.Primary,
			"domain":       cls.Domain.Primary,
			"priority":     cls.Priority.Primary,
			"complexity":   cls.Complexity.Primary,
			"parameters":   route.Parameters,
		}
		handle, err := x.workflows.Start(ctx, route.Target, input)
		if err != nil {
			return "", fmt.Errorf("failed to start workflow %s: %w", route.Target, err)
		}
		return handle, nil

	case ActionNotification:
		return "", x.publish(ctx, route.Target, x.message(doc, cls, route))

	case ActionTeamAssignment, ActionExpertReview:
		return "", x.publish(ctx, x.assignmentTopic, x.message(doc, cls, route))

	default:
		return "", fmt.Errorf("unsupported route type: %s", route.Type)
	}
}

func (x *Executor) publish(ctx context.Context, topic string, msg Message) error {
	if x.publisher == nil {
		return fmt.Errorf("no publisher configured for topic %s", topic)
	}
	if err := x.publisher.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (x *Executor) message(doc *document.Document, cls *classification.Result, route Route) Message {
	return Message{
		Kind:         route.Type,
		DocumentID:   doc.ID,
		Title:        doc.Title,
		Target:       route.Target,
		DocumentType: cls.DocumentType.Primary,
		Domain:       cls.Domain.Primary,
		Priority:     cls.Priority.Primary,
		Parameters:   route.Parameters,
		SentAt:       x.now(),
	}
}
