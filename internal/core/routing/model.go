package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/validation"
)

// RuleStatus はルールの状態
type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleInactive RuleStatus = "inactive"
)

// RulePriority はルールの優先度
type RulePriority string

const (
	RulePriorityHigh   RulePriority = "high"
	RulePriorityMedium RulePriority = "medium"
	RulePriorityLow    RulePriority = "low"
)

// 優先度ごとのスコア倍率
const (
	WeightHigh   = 1.2
	WeightMedium = 1.0
	WeightLow    = 0.8
)

// Weight はスコアに掛ける倍率を返す
func (p RulePriority) Weight() float64 {
	switch p {
	case RulePriorityHigh:
		return WeightHigh
	case RulePriorityLow:
		return WeightLow
	default:
		return WeightMedium
	}
}

// ActionType はルート種別
type ActionType string

const (
	ActionWorkflow       ActionType = "workflow"
	ActionTeamAssignment ActionType = "team_assignment"
	ActionNotification   ActionType = "notification"
	ActionExpertReview   ActionType = "expert_review"
)

// Conditions はルールの適用条件
// 空のフィールドはワイルドカードとして扱う
type Conditions struct {
	DocumentType    string         `json:"documentType,omitempty"`
	Domain          string         `json:"domain,omitempty"`
	Priority        string         `json:"priority,omitempty"`
	Complexity      string         `json:"complexity,omitempty"`
	Characteristics map[string]any `json:"characteristics,omitempty"`
	MinConfidence   float64        `json:"minConfidence" validate:"gte=0,lte=1"`
}

// Action はルールに一致した場合のルート
type Action struct {
	Type        ActionType     `json:"type" validate:"required,oneof=workflow team_assignment notification expert_review"`
	Target      string         `json:"target" validate:"required"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	AutoExecute bool           `json:"autoExecute"`
}

// Rule はルーティングルール
type Rule struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      RuleStatus   `json:"status" validate:"required,oneof=active inactive"`
	Conditions  Conditions   `json:"conditions"`
	Action      Action       `json:"action"`
	Priority    RulePriority `json:"priority" validate:"required,oneof=high medium low"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Validate はルール定義を検証する
func (r *Rule) Validate() error {
	if err := validation.Struct(r); err != nil {
		return errs.InvalidInput("routing.Rule.Validate", "rule %q: %v", r.ID, err)
	}
	checks := []struct {
		category classification.Category
		value    string
	}{
		{classification.CategoryDocumentType, r.Conditions.DocumentType},
		{classification.CategoryDomain, r.Conditions.Domain},
		{classification.CategoryPriority, r.Conditions.Priority},
		{classification.CategoryComplexity, r.Conditions.Complexity},
	}
	for _, c := range checks {
		if c.value != "" && !classification.IsValid(c.category, c.value) {
			return errs.InvalidInput("routing.Rule.Validate", "rule %q: unknown %s %q", r.ID, c.category, c.value)
		}
	}
	return nil
}

// RuleRepository はルールの読み書きインターフェース
// ルーティングエンジンは読み取りのみ行う
type RuleRepository interface {
	ListActive(ctx context.Context) ([]*Rule, error)
	List(ctx context.Context) ([]*Rule, error)
	Upsert(ctx context.Context, rule *Rule) error
}

// Origin はルート推奨の出どころ
type Origin string

const (
	OriginRule Origin = "rule"
	OriginAI   Origin = "ai"
)

// Route はルート推奨
type Route struct {
	RuleID     string         `json:"ruleId,omitempty"`
	Type       ActionType     `json:"type"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Confidence float64        `json:"confidence"`
	Automatic  bool           `json:"automatic"`
	Origin     Origin         `json:"origin"`
	Reason     string         `json:"reason"`
}

// Decision はルーティングの判断結果
type Decision struct {
	AutomaticRoutes      []Route  `json:"automaticRoutes"`
	SuggestedRoutes      []Route  `json:"suggestedRoutes"`
	ManualReviewRequired bool     `json:"manualReviewRequired"`
	Reasoning            []string `json:"reasoning"`
}

// Execution は自動ルートの実行結果
type Execution struct {
	RuleID      string     `json:"ruleId,omitempty"`
	Type        ActionType `json:"type"`
	Target      string     `json:"target"`
	Success     bool       `json:"success"`
	ExecutionID string     `json:"executionId,omitempty"`
	Error       string     `json:"error,omitempty"`
	ExecutedAt  time.Time  `json:"executedAt"`
}

// Options はルーティングのオプション
type Options struct {
	// DryRun は推奨のみ計算し、自動ルートを実行しない
	DryRun    bool
	RequestID string
}

// Outcome はルーティング実行の結果（ルーティング記録の内容）
type Outcome struct {
	RecordID       uuid.UUID             `json:"recordId"`
	DocumentID     string                `json:"documentId"`
	RequestID      string                `json:"requestId,omitempty"`
	Classification classification.Result `json:"classification"`
	Decision       Decision              `json:"decision"`
	Executions     []Execution           `json:"executions"`
	DryRun         bool                  `json:"dryRun"`
}

// Summary はログ向けの短い要約を返す
func (o *Outcome) Summary() string {
	failed := 0
	for _, e := range o.Executions {
		if !e.Success {
			failed++
		}
	}
	return fmt.Sprintf("%d automatic, %d suggested, %d executed, %d failed",
		len(o.Decision.AutomaticRoutes), len(o.Decision.SuggestedRoutes), len(o.Executions), failed)
}
