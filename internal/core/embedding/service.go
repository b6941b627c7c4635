package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/llm"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency はバッチ生成時の同時実行数
const DefaultConcurrency = 4

// Service は Embedding のキャッシュと生成を担う
//
// 同じ文書に対する同時リクエストは双方ともキャッシュミスとなり、
// 推論サービスを重複して呼び出すことがある。書き込みは冪等な上書きなのでロックはかけない。
type Service struct {
	repo        Repository
	embedder    llm.Embedder
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConcurrency はバッチ生成時の同時実行数を設定する
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithClock は時刻取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しい Service を作成する
func NewService(repo Repository, embedder llm.Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		embedder:    embedder,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	return s
}

// ModelName は使用中のモデル名を返す
func (s *Service) ModelName() string {
	return s.embedder.ModelName()
}

// GetOrCreate は文書の Embedding を返す
// content_hash が一致する最新レコードがあれば外部呼び出しなしでそれを返す
func (s *Service) GetOrCreate(ctx context.Context, doc *document.Document) (*Record, error) {
	return s.GetOrCreatePrepared(ctx, document.Prepare(doc))
}

// GetOrCreatePrepared は整形済み文書の Embedding を返す
func (s *Service) GetOrCreatePrepared(ctx context.Context, prepared *document.Prepared) (*Record, error) {
	doc := prepared.Document
	model := s.embedder.ModelName()
	hash := HashContent(prepared.Text, model)

	cached, err := s.repo.Latest(ctx, doc.ID, model)
	if err != nil {
		return nil, errs.Persistence("embedding.Latest", err)
	}
	if rec, ok := cached.Get(); ok && rec.ContentHash == hash {
		s.logger.Debug("embedding cache hit", "documentId", doc.ID, "model", model)
		return rec, nil
	}

	s.logger.Info("generating embedding", "documentId", doc.ID, "model", model, "stale", cached.IsPresent())

	vector, err := s.embedder.Embed(ctx, prepared.Text)
	if err != nil {
		return nil, errs.Upstream("embedding.Embed", fmt.Errorf("failed to embed document %s: %w", doc.ID, err))
	}
	if len(vector) == 0 {
		return nil, errs.Upstream("embedding.Embed", fmt.Errorf("empty embedding for document %s", doc.ID))
	}

	rec := &Record{
		DocumentID:  doc.ID,
		Vector:      vector,
		ContentHash: hash,
		Model:       model,
		Dimension:   len(vector),
		CreatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, errs.Persistence("embedding.Save", err)
	}

	return rec, nil
}

// EnsureAll は複数文書の Embedding を上限付きの並列度で取得・生成する
// 結果は完了順ではなく文書IDをキーに集約する
func (s *Service) EnsureAll(ctx context.Context, docs []*document.Document) (map[string]*Record, error) {
	var mu sync.Mutex
	results := make(map[string]*Record, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, doc := range docs {
		g.Go(func() error {
			rec, err := s.GetOrCreate(gctx, doc)
			if err != nil {
				return err
			}
			mu.Lock()
			results[doc.ID] = rec
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Similar は文書に近い文書を返す（文書自身は除外する）
func (s *Service) Similar(ctx context.Context, doc *document.Document, limit int) ([]Neighbor, error) {
	rec, err := s.GetOrCreate(ctx, doc)
	if err != nil {
		return nil, err
	}

	neighbors, err := s.repo.SimilarDocuments(ctx, rec.Vector, rec.Model, limit+1)
	if err != nil {
		return nil, errs.Persistence("embedding.SimilarDocuments", err)
	}

	out := make([]Neighbor, 0, len(neighbors))
	for _, n := range neighbors {
		if n.DocumentID == doc.ID {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
