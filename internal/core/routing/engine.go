package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/samber/mo"
)

const (
	// DefaultConfidenceThreshold は自動実行に必要な最小信頼度
	DefaultConfidenceThreshold = 0.7

	// MaxRuleRoutes はルール由来の推奨として採用する上位件数
	MaxRuleRoutes = 5
)

// ルーティングのステップ名と results のキー
const (
	StepMatchingRules   = "matching_rules"
	StepExecutingRoutes = "executing_routes"

	ResultClassification = "classification"
	ResultDecision       = "decision"
	ResultExecutions     = "executions"
	ResultDryRun         = "dryRun"
)

// Engine はルールと分類結果を突き合わせてルートを決定・実行する
type Engine struct {
	rules     RuleRepository
	executor  *Executor
	tracker   *record.Tracker
	threshold float64
	logger    *slog.Logger
}

// EngineOption は Engine のオプション設定
type EngineOption func(*Engine)

// WithEngineLogger はロガーを設定する
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfidenceThreshold は自動実行の信頼度閾値を設定する
func WithConfidenceThreshold(threshold float64) EngineOption {
	return func(e *Engine) {
		e.threshold = threshold
	}
}

// NewEngine は新しい Engine を作成する
func NewEngine(rules RuleRepository, executor *Executor, tracker *record.Tracker, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:     rules,
		executor:  executor,
		tracker:   tracker,
		threshold: DefaultConfidenceThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.threshold <= 0 || e.threshold > 1 {
		e.threshold = DefaultConfidenceThreshold
	}
	return e
}

type scoredRule struct {
	rule  *Rule
	score float64
}

// Decide は有効なルールを評価し、自動実行ルートと推奨ルートを決める（実行はしない）
func (e *Engine) Decide(ctx context.Context, cls *classification.Result) (Decision, error) {
	if cls == nil {
		return Decision{}, errs.InvalidInput("routing.Decide", "classification is required")
	}
	if err := cls.Validate(); err != nil {
		return Decision{}, err
	}

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return Decision{}, errs.Persistence("routing.ListActive", err)
	}

	decision := Decision{
		AutomaticRoutes: []Route{},
		SuggestedRoutes: []Route{},
		Reasoning:       []string{},
	}

	var matched []scoredRule
	for _, rule := range rules {
		if rule.Status != RuleActive {
			continue
		}
		ok, reason := Match(rule, cls)
		if !ok {
			decision.Reasoning = append(decision.Reasoning, fmt.Sprintf("rule %s skipped: %s", rule.ID, reason))
			continue
		}
		matched = append(matched, scoredRule{rule: rule, score: Score(rule, cls)})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	if len(matched) > MaxRuleRoutes {
		for _, m := range matched[MaxRuleRoutes:] {
			decision.Reasoning = append(decision.Reasoning,
				fmt.Sprintf("rule %s matched with score %.2f but was outside the top %d", m.rule.ID, m.score, MaxRuleRoutes))
		}
		matched = matched[:MaxRuleRoutes]
	}

	for _, m := range matched {
		route := Route{
			RuleID:     m.rule.ID,
			Type:       m.rule.Action.Type,
			Target:     m.rule.Action.Target,
			Parameters: m.rule.Action.Parameters,
			Confidence: m.score,
			Origin:     OriginRule,
		}
		if m.rule.Action.AutoExecute && m.score >= e.threshold {
			route.Automatic = true
			route.Reason = fmt.Sprintf("rule %s matched with score %.2f (auto-execute)", m.rule.ID, m.score)
			decision.AutomaticRoutes = append(decision.AutomaticRoutes, route)
		} else {
			route.Reason = fmt.Sprintf("rule %s matched with score %.2f (requires approval)", m.rule.ID, m.score)
			decision.SuggestedRoutes = append(decision.SuggestedRoutes, route)
		}
		decision.Reasoning = append(decision.Reasoning, route.Reason)
	}

	decision.SuggestedRoutes = append(decision.SuggestedRoutes, Suggest(cls)...)

	decision.ManualReviewRequired, decision.Reasoning = manualReview(cls, decision)
	return decision, nil
}

func manualReview(cls *classification.Result, d Decision) (bool, []string) {
	reasons := d.Reasoning
	required := false
	if cls.Characteristics.RequiresReview {
		required = true
		reasons = append(reasons, "manual review: classification requires review")
	}
	if cls.Complexity.Primary == classification.ComplexityEnterprise {
		required = true
		reasons = append(reasons, "manual review: enterprise complexity")
	}
	if cls.Priority.Primary == classification.PriorityCritical {
		required = true
		reasons = append(reasons, "manual review: critical priority")
	}
	if len(d.AutomaticRoutes) == 0 {
		required = true
		reasons = append(reasons, "manual review: no automatic routes")
	}
	return required, reasons
}

// Route はルートを決定し、DryRun でなければ自動ルートを実行してルーティング記録を残す
func (e *Engine) Route(ctx context.Context, doc *document.Document, cls classification.Result, opts Options) (*Outcome, error) {
	if doc == nil || doc.ID == "" {
		return nil, errs.InvalidInput("routing.Route", "document is required")
	}
	if err := cls.Validate(); err != nil {
		return nil, err
	}

	rec, err := e.tracker.Start(ctx, record.KindRouting, doc.ID, "", opts.RequestID)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With("recordId", rec.ID, "documentId", doc.ID)

	outcome, err := e.run(ctx, rec, doc, &cls, opts)
	if err != nil {
		logger.Error("routing failed", "step", rec.Step, "error", err)
		if failErr := e.tracker.Fail(ctx, rec, err); failErr != nil {
			logger.Error("failed to mark routing as failed", "error", failErr)
		}
		return nil, err
	}

	if err := e.tracker.Complete(ctx, rec); err != nil {
		return nil, err
	}

	logger.Info("routing completed", "summary", outcome.Summary(), "dryRun", opts.DryRun)
	return outcome, nil
}

func (e *Engine) run(ctx context.Context, rec *record.Record, doc *document.Document, cls *classification.Result, opts Options) (*Outcome, error) {
	if err := e.tracker.SetResult(ctx, rec, ResultClassification, *cls); err != nil {
		return nil, err
	}

	if err := e.tracker.Step(ctx, rec, StepMatchingRules); err != nil {
		return nil, err
	}
	decision, err := e.Decide(ctx, cls)
	if err != nil {
		return nil, err
	}
	if err := e.tracker.SetResult(ctx, rec, ResultDecision, decision); err != nil {
		return nil, err
	}

	executions := []Execution{}
	if !opts.DryRun {
		if err := e.tracker.Step(ctx, rec, StepExecutingRoutes); err != nil {
			return nil, err
		}
		executions = e.executor.ExecuteAll(ctx, doc, cls, decision.AutomaticRoutes)
	}
	if err := e.tracker.SetResult(ctx, rec, ResultExecutions, executions); err != nil {
		return nil, err
	}
	if err := e.tracker.SetResult(ctx, rec, ResultDryRun, opts.DryRun); err != nil {
		return nil, err
	}

	return &Outcome{
		RecordID:       rec.ID,
		DocumentID:     doc.ID,
		RequestID:      opts.RequestID,
		Classification: *cls,
		Decision:       decision,
		Executions:     executions,
		DryRun:         opts.DryRun,
	}, nil
}

// History は文書のルーティング記録を新しい順に返す
func (e *Engine) History(ctx context.Context, documentID string, limit int, pageToken string) (record.Page, error) {
	if documentID == "" {
		return record.Page{}, errs.InvalidInput("routing.History", "document id is required")
	}
	return e.tracker.List(ctx, record.Filter{
		Kind:       mo.Some(record.KindRouting),
		DocumentID: mo.Some(documentID),
		Limit:      limit,
	}, pageToken)
}

// Rules はルールの一覧を返す
func (e *Engine) Rules(ctx context.Context) ([]*Rule, error) {
	rules, err := e.rules.List(ctx)
	if err != nil {
		return nil, errs.Persistence("routing.List", err)
	}
	return rules, nil
}

// ImportRules はルール定義を検証して保存する
func (e *Engine) ImportRules(ctx context.Context, rules []*Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, r := range rules {
		if err := e.rules.Upsert(ctx, r); err != nil {
			return errs.Persistence("routing.Upsert", err)
		}
	}
	e.logger.Info("routing rules imported", "count", len(rules))
	return nil
}
