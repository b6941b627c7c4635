package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/samber/mo"
)

// DefaultMaxK は自動決定する k の上限
const DefaultMaxK = 5

// クラスタリングのステップ名と results のキー
const (
	StepLoadingDocuments    = "loading_documents"
	StepGeneratingEmbedding = "generating_embeddings"
	StepClustering          = "clustering"
	StepSummarizing         = "summarizing_clusters"

	ResultClusters = "clusters"
)

// Options はクラスタリングのオプション
type Options struct {
	// K はクラスタ数の明示指定（未指定なら min(ceil(n/3), MaxK)）
	K mo.Option[int]
	// Seed を指定すると初期重心の選択が決定論的になる
	Seed          mo.Option[uint64]
	MaxIterations int
	RequestID     string
}

// Cluster は1つのクラスタの要約
type Cluster struct {
	Index        int      `json:"index"`
	Label        string   `json:"label"`
	DominantType string   `json:"dominantType"`
	Themes       []string `json:"themes"`
	DocumentIDs  []string `json:"documentIds"`
}

// Result はクラスタリングの結果
// Converged が false の場合、反復上限で打ち切られた分割である
type Result struct {
	RecordID   uuid.UUID `json:"recordId"`
	K          int       `json:"k"`
	Clusters   []Cluster `json:"clusters"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	Silhouette float64   `json:"silhouette"`
	Inertia    float64   `json:"inertia"`
}

// EmbeddingSource は複数文書の Embedding を文書IDをキーに返す
type EmbeddingSource interface {
	EnsureAll(ctx context.Context, docs []*document.Document) (map[string]*embedding.Record, error)
}

// Engine は文書集合を Embedding でクラスタリングする
type Engine struct {
	docs       document.Store
	embeddings EmbeddingSource
	tracker    *record.Tracker
	maxK       int
	logger     *slog.Logger
}

// EngineOption は Engine のオプション設定
type EngineOption func(*Engine)

// WithEngineLogger はロガーを設定する
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxK は自動決定する k の上限を設定する
func WithMaxK(k int) EngineOption {
	return func(e *Engine) {
		e.maxK = k
	}
}

// NewEngine は新しい Engine を作成する
func NewEngine(docs document.Store, embeddings EmbeddingSource, tracker *record.Tracker, opts ...EngineOption) *Engine {
	e := &Engine{
		docs:       docs,
		embeddings: embeddings,
		tracker:    tracker,
		maxK:       DefaultMaxK,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.maxK <= 0 {
		e.maxK = DefaultMaxK
	}
	return e
}

// ChooseK は文書数から k を決める
func ChooseK(n, maxK int) int {
	k := (n + 2) / 3
	return max(1, min(k, maxK))
}

// Cluster は文書集合をクラスタリングし、各クラスタの主題を要約する
func (e *Engine) Cluster(ctx context.Context, documentIDs []string, opts Options) (*Result, error) {
	ids := dedupe(documentIDs)
	if len(ids) < 2 {
		return nil, errs.InvalidInput("cluster.Cluster", "at least two distinct document ids are required, got %d", len(ids))
	}

	k := ChooseK(len(ids), e.maxK)
	if override, ok := opts.K.Get(); ok {
		if override < 1 || override > len(ids) {
			return nil, errs.InvalidInput("cluster.Cluster", "k must be between 1 and %d, got %d", len(ids), override)
		}
		k = override
	}

	rec, err := e.tracker.Start(ctx, record.KindClustering, ids[0], "", opts.RequestID)
	if err != nil {
		return nil, err
	}

	result, err := e.run(ctx, rec, ids, k, opts)
	if err != nil {
		e.logger.Error("clustering failed", "recordId", rec.ID, "step", rec.Step, "error", err)
		if failErr := e.tracker.Fail(ctx, rec, err); failErr != nil {
			e.logger.Error("failed to mark clustering as failed", "recordId", rec.ID, "error", failErr)
		}
		return nil, err
	}

	if err := e.tracker.Complete(ctx, rec); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, rec *record.Record, ids []string, k int, opts Options) (*Result, error) {
	if err := e.tracker.Step(ctx, rec, StepLoadingDocuments); err != nil {
		return nil, err
	}
	docs := make([]*document.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := e.docs.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}

	if err := e.tracker.Step(ctx, rec, StepGeneratingEmbedding); err != nil {
		return nil, err
	}
	records, err := e.embeddings.EnsureAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(docs))
	for i, doc := range docs {
		vectors[i] = records[doc.ID].Vector
	}

	if err := e.tracker.Step(ctx, rec, StepClustering); err != nil {
		return nil, err
	}
	part, err := KMeans(vectors, k, opts.MaxIterations, newRand(opts.Seed))
	if err != nil {
		return nil, err
	}
	if !part.Converged {
		e.logger.Warn("k-means did not converge", "recordId", rec.ID, "iterations", part.Iterations)
	}
	silhouette, err := Silhouette(vectors, part.Assignments, k)
	if err != nil {
		return nil, err
	}

	if err := e.tracker.Step(ctx, rec, StepSummarizing); err != nil {
		return nil, err
	}
	result := &Result{
		RecordID:   rec.ID,
		K:          k,
		Clusters:   summarize(docs, part.Assignments, k),
		Iterations: part.Iterations,
		Converged:  part.Converged,
		Silhouette: silhouette,
		Inertia:    Inertia(vectors, part),
	}
	if err := e.tracker.SetResult(ctx, rec, ResultClusters, result); err != nil {
		return nil, err
	}

	e.logger.Info("clustering finished", "recordId", rec.ID, "documents", len(docs), "k", k, "silhouette", silhouette)
	return result, nil
}

func summarize(docs []*document.Document, assignments []int, k int) []Cluster {
	members := make([][]*document.Document, k)
	for i, c := range assignments {
		members[c] = append(members[c], docs[i])
	}

	clusters := make([]Cluster, 0, k)
	for c, group := range members {
		if len(group) == 0 {
			continue
		}
		ids := make([]string, 0, len(group))
		for _, doc := range group {
			ids = append(ids, doc.ID)
		}
		dominant := DominantType(group)
		themes := Themes(group, ThemeCount)
		clusters = append(clusters, Cluster{
			Index:        c,
			Label:        Label(dominant, themes),
			DominantType: dominant,
			Themes:       themes,
			DocumentIDs:  ids,
		})
	}
	return clusters
}

func newRand(seed mo.Option[uint64]) *rand.Rand {
	if s, ok := seed.Get(); ok {
		return rand.New(rand.NewPCG(s, s))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
