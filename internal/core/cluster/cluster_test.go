package cluster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBlobs() [][]float32 {
	return [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	vectors := twoBlobs()

	part, err := KMeans(vectors, 2, 0, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.True(t, part.Converged)
	assert.LessOrEqual(t, part.Iterations, DefaultMaxIterations)

	a := part.Assignments
	assert.Equal(t, a[0], a[1])
	assert.Equal(t, a[0], a[2])
	assert.Equal(t, a[3], a[4])
	assert.Equal(t, a[3], a[5])
	assert.NotEqual(t, a[0], a[3])

	s, err := Silhouette(vectors, a, 2)
	require.NoError(t, err)
	assert.Greater(t, s, 0.9)
	assert.Less(t, Inertia(vectors, part), 0.1)
}

func TestKMeans_DeterministicWithSeed(t *testing.T) {
	vectors := [][]float32{{0}, {1}, {2}, {5}, {6}, {9}, {10}}

	p1, err := KMeans(vectors, 3, 0, rand.New(rand.NewPCG(42, 42)))
	require.NoError(t, err)
	p2, err := KMeans(vectors, 3, 0, rand.New(rand.NewPCG(42, 42)))
	require.NoError(t, err)

	assert.Equal(t, p1.Assignments, p2.Assignments)
}

func TestKMeans_IterationCap(t *testing.T) {
	part, err := KMeans(twoBlobs(), 2, 1, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	// 1回目の割り当ては必ず変化するため、上限1では収束判定に至らない
	assert.False(t, part.Converged)
	assert.Equal(t, 1, part.Iterations)
}

func TestKMeans_InvalidInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := KMeans(nil, 1, 0, rng)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = KMeans([][]float32{{1}, {2}}, 3, 0, rng)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = KMeans([][]float32{{1, 2}, {2}}, 1, 0, rng)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSilhouette_SingletonsScoreZero(t *testing.T) {
	s, err := Silhouette([][]float32{{0}, {5}}, []int{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = Silhouette([][]float32{{0}, {1}}, []int{0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestChooseK(t *testing.T) {
	assert.Equal(t, 1, ChooseK(2, 5))
	assert.Equal(t, 1, ChooseK(3, 5))
	assert.Equal(t, 2, ChooseK(4, 5))
	assert.Equal(t, 4, ChooseK(12, 5))
	assert.Equal(t, 5, ChooseK(30, 5))
}

func TestThemesAndLabel(t *testing.T) {
	docs := []*document.Document{
		{Title: "Payment gateway", Type: "technical_specification", Content: "The payment gateway handles refunds. Refunds are audited in 2024."},
		{Title: "Refund policy", Type: "technical_specification", Content: "Refunds must be approved. This gateway is used."},
		{Title: "Notes", Type: "meeting_notes", Content: "Discussed refunds."},
	}

	themes := Themes(docs, ThemeCount)
	require.NotEmpty(t, themes)
	assert.Equal(t, "refunds", themes[0])
	assert.Equal(t, "gateway", themes[1])
	assert.NotContains(t, themes, "must")
	assert.NotContains(t, themes, "2024")
	assert.LessOrEqual(t, len(themes), ThemeCount)

	dominant := DominantType(docs)
	assert.Equal(t, "technical_specification", dominant)
	assert.Equal(t, "technical_specification: refunds, gateway, payment", Label(dominant, themes))
	assert.Equal(t, "unknown", Label(DominantType([]*document.Document{{}}), nil))
}

type stubDocs map[string]*document.Document

func (s stubDocs) Get(ctx context.Context, id string) (*document.Document, error) {
	doc, ok := s[id]
	if !ok {
		return nil, errs.NotFound("stubDocs.Get", "document %s not found", id)
	}
	return doc, nil
}

type stubEmbeddings struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbeddings) EnsureAll(ctx context.Context, docs []*document.Document) (map[string]*embedding.Record, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make(map[string]*embedding.Record, len(docs))
	for _, d := range docs {
		out[d.ID] = &embedding.Record{DocumentID: d.ID, Vector: e.vectors[d.ID]}
	}
	return out, nil
}

type recordStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*record.Record
}

func (s *recordStore) Put(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *recordStore) Get(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, errs.NotFound("recordStore.Get", "record %s not found", id)
	}
	return rec.Clone(), nil
}

func (s *recordStore) List(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error) {
	return record.Page{}, nil
}

func newTestEngine(embeds EmbeddingSource) (*Engine, *recordStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &recordStore{records: make(map[uuid.UUID]*record.Record)}
	docs := stubDocs{
		"a": {ID: "a", Type: "bug_report", Title: "Login crash", Content: "Login crash on submit"},
		"b": {ID: "b", Type: "bug_report", Title: "Login timeout", Content: "Login timeout after submit"},
		"c": {ID: "c", Type: "design_document", Title: "Storage layout", Content: "Storage shards and replicas"},
		"d": {ID: "d", Type: "design_document", Title: "Storage backups", Content: "Storage replicas backups"},
	}
	tracker := record.NewTracker(store, record.WithTrackerLogger(logger))
	return NewEngine(docs, embeds, tracker, WithEngineLogger(logger)), store
}

func TestEngine_Cluster(t *testing.T) {
	engine, store := newTestEngine(&stubEmbeddings{vectors: map[string][]float32{
		"a": {0, 0}, "b": {0, 0.2}, "c": {9, 9}, "d": {9, 9.2},
	}})

	result, err := engine.Cluster(context.Background(), []string{"a", "b", "c", "d", "a"}, Options{Seed: mo.Some[uint64](3)})
	require.NoError(t, err)

	assert.Equal(t, 2, result.K)
	require.Len(t, result.Clusters, 2)
	assert.True(t, result.Converged)
	assert.Greater(t, result.Silhouette, 0.9)

	byType := map[string][]string{}
	for _, c := range result.Clusters {
		byType[c.DominantType] = c.DocumentIDs
	}
	assert.ElementsMatch(t, []string{"a", "b"}, byType["bug_report"])
	assert.ElementsMatch(t, []string{"c", "d"}, byType["design_document"])

	stored, err := store.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusCompleted, stored.Status)
	assert.Equal(t, record.KindClustering, stored.Kind)
	assert.Contains(t, stored.Results, ResultClusters)
}

func TestEngine_KOverride(t *testing.T) {
	engine, _ := newTestEngine(&stubEmbeddings{vectors: map[string][]float32{
		"a": {0}, "b": {1}, "c": {2}, "d": {3},
	}})

	result, err := engine.Cluster(context.Background(), []string{"a", "b", "c", "d"}, Options{K: mo.Some(1)})
	require.NoError(t, err)
	require.Len(t, result.Clusters, 1)
	assert.Len(t, result.Clusters[0].DocumentIDs, 4)

	_, err = engine.Cluster(context.Background(), []string{"a", "b"}, Options{K: mo.Some(3)})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestEngine_EmbeddingFailureMarksRecordFailed(t *testing.T) {
	engine, store := newTestEngine(&stubEmbeddings{err: errs.Upstream("embedding.Embed", errors.New("quota"))})

	_, err := engine.Cluster(context.Background(), []string{"a", "b"}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUpstream)

	require.Len(t, store.records, 1)
	for _, rec := range store.records {
		assert.Equal(t, record.StatusFailed, rec.Status)
		assert.Equal(t, StepGeneratingEmbedding, rec.Step)
	}
}

func TestEngine_RequiresTwoDocuments(t *testing.T) {
	engine, _ := newTestEngine(&stubEmbeddings{})

	_, err := engine.Cluster(context.Background(), []string{"a", "a"}, Options{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
