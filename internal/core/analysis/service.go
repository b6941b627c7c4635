// Package analysis は分類・比較・クラスタリング・ルーティングを1つの窓口にまとめる
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/classification"
	"github.com/jinford/docroute/internal/core/cluster"
	"github.com/jinford/docroute/internal/core/comparison"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/jinford/docroute/internal/core/routing"
)

// 分類のステップ名と results のキー
const (
	StepLoadingDocument = "loading_document"
	StepClassifying     = "classifying"

	ResultClassification = "classification"
)

// Classification は記録ID付きの分類結果
type Classification struct {
	RecordID uuid.UUID `json:"recordId"`
	classification.Result
}

// Service は外部に公開する解析操作の窓口
type Service struct {
	docs        document.Store
	classifier  *classification.Engine
	comparisons *comparison.Pipeline
	clusters    *cluster.Engine
	router      *routing.Engine
	tracker     *record.Tracker
	logger      *slog.Logger
}

// Deps は Service の依存
type Deps struct {
	Documents   document.Store
	Classifier  *classification.Engine
	Comparisons *comparison.Pipeline
	Clusters    *cluster.Engine
	Router      *routing.Engine
	Tracker     *record.Tracker
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(deps Deps, opts ...ServiceOption) *Service {
	s := &Service{
		docs:        deps.Documents,
		classifier:  deps.Classifier,
		comparisons: deps.Comparisons,
		clusters:    deps.Clusters,
		router:      deps.Router,
		tracker:     deps.Tracker,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Classify は文書を分類し、分類記録を残す
// 推論サービスの失敗はフォールバック分類で吸収されるため、エラーは入力不正・文書なし・永続化失敗に限られる
func (s *Service) Classify(ctx context.Context, documentID string) (*Classification, error) {
	if documentID == "" {
		return nil, errs.InvalidInput("analysis.Classify", "document id is required")
	}

	rec, err := s.tracker.Start(ctx, record.KindClassification, documentID, "", "")
	if err != nil {
		return nil, err
	}

	result, err := s.classify(ctx, rec, documentID)
	if err != nil {
		s.fail(ctx, rec, err)
		return nil, err
	}
	if err := s.tracker.Complete(ctx, rec); err != nil {
		return nil, err
	}

	return &Classification{RecordID: rec.ID, Result: result}, nil
}

func (s *Service) classify(ctx context.Context, rec *record.Record, documentID string) (classification.Result, error) {
	if err := s.tracker.Step(ctx, rec, StepLoadingDocument); err != nil {
		return classification.Result{}, err
	}
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return classification.Result{}, fmt.Errorf("failed to load document: %w", err)
	}

	if err := s.tracker.Step(ctx, rec, StepClassifying); err != nil {
		return classification.Result{}, err
	}
	result := s.classifier.Classify(ctx, doc)
	if err := s.tracker.SetResult(ctx, rec, ResultClassification, result); err != nil {
		return classification.Result{}, err
	}

	s.logger.Info("document classified",
		"documentId", documentID,
		"documentType", result.DocumentType.Primary,
		"domain", result.Domain.Primary,
		"source", result.Source,
	)
	return result, nil
}

// Compare は2文書を比較する
func (s *Service) Compare(ctx context.Context, sourceID, targetID string, opts comparison.Options) (*record.Record, error) {
	return s.comparisons.Run(ctx, sourceID, targetID, opts)
}

// CompareMatrix は文書集合の全ペアを比較する
func (s *Service) CompareMatrix(ctx context.Context, documentIDs []string) (map[string]comparison.SemanticResult, error) {
	return s.comparisons.Matrix(ctx, documentIDs)
}

// Route は文書を分類し、その結果でルーティングする
func (s *Service) Route(ctx context.Context, documentID string, opts routing.Options) (*routing.Outcome, error) {
	if documentID == "" {
		return nil, errs.InvalidInput("analysis.Route", "document id is required")
	}

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	result := s.classifier.Classify(ctx, doc)
	return s.router.Route(ctx, doc, result, opts)
}

// RoutingHistory は文書のルーティング記録を返す
func (s *Service) RoutingHistory(ctx context.Context, documentID string, limit int, pageToken string) (record.Page, error) {
	return s.router.History(ctx, documentID, limit, pageToken)
}

// Cluster は文書集合をクラスタリングする
func (s *Service) Cluster(ctx context.Context, documentIDs []string, opts cluster.Options) (*cluster.Result, error) {
	return s.clusters.Cluster(ctx, documentIDs, opts)
}

// GetRecord は解析記録を取得する
func (s *Service) GetRecord(ctx context.Context, id string) (*record.Record, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return nil, errs.InvalidInput("analysis.GetRecord", "invalid record id %q", id)
	}
	return s.tracker.Get(ctx, recordID)
}

// ListRecords は解析記録の一覧を返す
func (s *Service) ListRecords(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error) {
	return s.tracker.List(ctx, filter, pageToken)
}

// Rules はルーティングルールの一覧を返す
func (s *Service) Rules(ctx context.Context) ([]*routing.Rule, error) {
	return s.router.Rules(ctx)
}

// ImportRules はルーティングルールを取り込む
func (s *Service) ImportRules(ctx context.Context, rules []*routing.Rule) error {
	return s.router.ImportRules(ctx, rules)
}

// Wait はバックグラウンドで実行中の比較の完了を待つ
func (s *Service) Wait() {
	s.comparisons.Wait()
}

func (s *Service) fail(ctx context.Context, rec *record.Record, cause error) {
	s.logger.Error("analysis failed", "recordId", rec.ID, "kind", rec.Kind, "step", rec.Step, "error", cause)
	if err := s.tracker.Fail(ctx, rec, cause); err != nil {
		s.logger.Error("failed to mark record as failed", "recordId", rec.ID, "error", err)
	}
}
