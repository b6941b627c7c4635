package comparison

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"golang.org/x/sync/errgroup"
)

// パイプラインのステップ名
const (
	StepLoadingDocuments      = "loading_documents"
	StepAnalyzingStructure    = "analyzing_structure"
	StepComparingStructure    = "comparing_structure"
	StepSemanticAnalysis      = "semantic_analysis"
	StepComparingRequirements = "comparing_requirements"
	StepGeneratingInsights    = "generating_insights"
)

// 記録の results に書き込むキー
const (
	ResultMetrics           = "metrics"
	ResultStructure         = "structure"
	ResultSemantic          = "semantic"
	ResultRequirements      = "requirements"
	ResultInsights          = "insights"
	ResultOverallSimilarity = "overallSimilarity"
)

// EmbeddingProvider は整形済み文書の Embedding を返す
type EmbeddingProvider interface {
	GetOrCreatePrepared(ctx context.Context, prepared *document.Prepared) (*embedding.Record, error)
}

// Pipeline は文書比較の各ステージを順に実行し、進捗を記録に書き込む
type Pipeline struct {
	docs        document.Store
	embeddings  EmbeddingProvider
	comparator  *Comparator
	tracker     *record.Tracker
	concurrency int
	logger      *slog.Logger

	inflight sync.WaitGroup
}

// PipelineOption は Pipeline のオプション設定
type PipelineOption func(*Pipeline)

// WithPipelineLogger はロガーを設定する
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMatrixConcurrency は Matrix の同時比較数を設定する
func WithMatrixConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// NewPipeline は新しい Pipeline を作成する
// embeddings が nil の場合、意味比較のフォールバックは語彙類似度になる
func NewPipeline(docs document.Store, embeddings EmbeddingProvider, comparator *Comparator, tracker *record.Tracker, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		docs:        docs,
		embeddings:  embeddings,
		comparator:  comparator,
		tracker:     tracker,
		concurrency: embedding.DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.concurrency <= 0 {
		p.concurrency = embedding.DefaultConcurrency
	}
	return p
}

// Run は比較を実行し、比較記録を返す
//
// 同期実行では最終状態の記録と、失敗した場合はその原因を返す。
// Async の場合は processing 状態の記録をすぐに返し、呼び出し元のキャンセルから切り離して実行を続ける。
func (p *Pipeline) Run(ctx context.Context, sourceID, targetID string, opts Options) (*record.Record, error) {
	if sourceID == "" || targetID == "" {
		return nil, errs.InvalidInput("comparison.Run", "source and target document ids are required")
	}

	rec, err := p.tracker.Start(ctx, record.KindComparison, sourceID, targetID, opts.RequestID)
	if err != nil {
		return nil, err
	}

	if opts.Async {
		snapshot := rec.Clone()
		bg := context.WithoutCancel(ctx)
		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			_ = p.execute(bg, rec, opts)
		}()
		return snapshot, nil
	}

	err = p.execute(ctx, rec, opts)
	return rec, err
}

// Wait はバックグラウンド実行中の比較がすべて終わるまで待つ
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

func (p *Pipeline) execute(ctx context.Context, rec *record.Record, opts Options) error {
	logger := p.logger.With("comparisonId", rec.ID, "sourceId", rec.DocumentID, "targetId", rec.TargetDocumentID)

	if err := p.stages(ctx, rec, opts, logger); err != nil {
		logger.Error("comparison failed", "step", rec.Step, "error", err)
		if failErr := p.tracker.Fail(ctx, rec, err); failErr != nil {
			logger.Error("failed to mark comparison as failed", "error", failErr)
		}
		return err
	}

	return p.tracker.Complete(ctx, rec)
}

func (p *Pipeline) stages(ctx context.Context, rec *record.Record, opts Options, logger *slog.Logger) error {
	// 1. 文書の読み込み
	if err := p.tracker.Step(ctx, rec, StepLoadingDocuments); err != nil {
		return err
	}
	sourceDoc, err := p.docs.Get(ctx, rec.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to load source document: %w", err)
	}
	targetDoc, err := p.docs.Get(ctx, rec.TargetDocumentID)
	if err != nil {
		return fmt.Errorf("failed to load target document: %w", err)
	}

	// 2. 構造と指標の計算
	if err := p.tracker.Step(ctx, rec, StepAnalyzingStructure); err != nil {
		return err
	}
	source := document.Prepare(sourceDoc)
	target := document.Prepare(targetDoc)
	if err := p.tracker.SetResult(ctx, rec, ResultMetrics, map[string]document.Metrics{
		"source": source.Metrics,
		"target": target.Metrics,
	}); err != nil {
		return err
	}

	// 3. 構造比較
	if err := p.tracker.Step(ctx, rec, StepComparingStructure); err != nil {
		return err
	}
	structure := CompareStructure(source, target)
	if err := p.tracker.SetResult(ctx, rec, ResultStructure, structure); err != nil {
		return err
	}

	// 4. 意味比較
	var semantic *SemanticResult
	if opts.includeSemantic() {
		if err := p.tracker.Step(ctx, rec, StepSemanticAnalysis); err != nil {
			return err
		}
		result := p.compareSemantic(ctx, source, target, logger)
		semantic = &result
		if err := p.tracker.SetResult(ctx, rec, ResultSemantic, result); err != nil {
			return err
		}
	}

	// 5. 要件差分
	var requirements *RequirementsDiff
	if opts.includeRequirements() {
		if err := p.tracker.Step(ctx, rec, StepComparingRequirements); err != nil {
			return err
		}
		diff := DiffRequirements(sourceDoc.Requirements, targetDoc.Requirements)
		requirements = &diff
		if err := p.tracker.SetResult(ctx, rec, ResultRequirements, diff); err != nil {
			return err
		}
	}

	// 6. 所見の生成
	if err := p.tracker.Step(ctx, rec, StepGeneratingInsights); err != nil {
		return err
	}
	insights := GenerateInsights(structure, semantic, requirements)
	if err := p.tracker.SetResult(ctx, rec, ResultInsights, insights); err != nil {
		return err
	}
	if err := p.tracker.SetResult(ctx, rec, ResultOverallSimilarity, OverallSimilarity(structure, semantic)); err != nil {
		return err
	}

	logger.Info("comparison stages finished", "riskLevel", insights.RiskLevel)
	return nil
}

// compareSemantic は Embedding を取得して比較器を呼ぶ
// Embedding の取得に失敗しても比較は続行する（語彙類似度にフォールバック）
func (p *Pipeline) compareSemantic(ctx context.Context, source, target *document.Prepared, logger *slog.Logger) SemanticResult {
	sourceVec := p.vector(ctx, source, logger)
	targetVec := p.vector(ctx, target, logger)
	return p.comparator.Compare(ctx, source, target, sourceVec, targetVec)
}

func (p *Pipeline) vector(ctx context.Context, prepared *document.Prepared, logger *slog.Logger) []float32 {
	if p.embeddings == nil {
		return nil
	}
	rec, err := p.embeddings.GetOrCreatePrepared(ctx, prepared)
	if err != nil {
		logger.Warn("embedding unavailable", "documentId", prepared.Document.ID, "error", err)
		return nil
	}
	return rec.Vector
}

// PairKey は Matrix の結果キー
func PairKey(a, b string) string {
	return a + ":" + b
}

// Matrix は文書集合の全ペアを上限付きの並列度で比較する
// 結果は完了順ではなく PairKey(i, j)（i < j の入力順）で集約する
func (p *Pipeline) Matrix(ctx context.Context, ids []string) (map[string]SemanticResult, error) {
	if len(ids) < 2 {
		return nil, errs.InvalidInput("comparison.Matrix", "at least two document ids are required, got %d", len(ids))
	}

	prepared := make([]*document.Prepared, len(ids))
	vectors := make([][]float32, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			doc, err := p.docs.Get(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load document %s: %w", id, err)
			}
			prepared[i] = document.Prepare(doc)
			vectors[i] = p.vector(gctx, prepared[i], p.logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]SemanticResult, len(ids)*(len(ids)-1)/2)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			g.Go(func() error {
				res := p.comparator.Compare(gctx, prepared[i], prepared[j], vectors[i], vectors[j])
				mu.Lock()
				results[PairKey(ids[i], ids[j])] = res
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
