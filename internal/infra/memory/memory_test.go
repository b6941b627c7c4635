package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
	"github.com/jinford/docroute/internal/core/routing"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(&document.Document{
		ID:           "doc-1",
		Title:        "Spec",
		Requirements: []document.Requirement{{ID: "R1", Description: "login"}},
	})

	doc, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	doc.Requirements[0].Description = "changed"

	again, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "login", again.Requirements[0].Description)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, &document.Document{}), errs.ErrInvalidInput)
	require.NoError(t, store.Put(ctx, &document.Document{ID: "doc-0"}))
	assert.Equal(t, []string{"doc-0", "doc-1"}, store.IDs())
}

func TestEmbeddingRepository_LatestWins(t *testing.T) {
	ctx := context.Background()
	repo := NewEmbeddingRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "a", Model: "m", ContentHash: "old", Vector: []float32{1, 0}, CreatedAt: base}))
	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "a", Model: "m", ContentHash: "new", Vector: []float32{0, 1}, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "a", Model: "other", ContentHash: "x", Vector: []float32{1, 1}, CreatedAt: base.Add(2 * time.Hour)}))

	latest, err := repo.Latest(ctx, "a", "m")
	require.NoError(t, err)
	rec, ok := latest.Get()
	require.True(t, ok)
	assert.Equal(t, "new", rec.ContentHash)

	none, err := repo.Latest(ctx, "b", "m")
	require.NoError(t, err)
	assert.True(t, none.IsAbsent())
}

func TestEmbeddingRepository_SimilarDocuments(t *testing.T) {
	ctx := context.Background()
	repo := NewEmbeddingRepository()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "same", Model: "m", Vector: []float32{1, 0}, CreatedAt: now}))
	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "near", Model: "m", Vector: []float32{1, 1}, CreatedAt: now}))
	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "far", Model: "m", Vector: []float32{0, 1}, CreatedAt: now}))
	require.NoError(t, repo.Save(ctx, &embedding.Record{DocumentID: "skip", Model: "m", Vector: []float32{1, 0, 0}, CreatedAt: now}))

	neighbors, err := repo.SimilarDocuments(ctx, []float32{1, 0}, "m", 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "same", neighbors[0].DocumentID)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-9)
	assert.Equal(t, "near", neighbors[1].DocumentID)
}

func newRecord(kind record.Kind, docID string, created time.Time, ttl time.Duration) *record.Record {
	return &record.Record{
		ID:         uuid.New(),
		Kind:       kind,
		DocumentID: docID,
		Status:     record.StatusCompleted,
		Results:    map[string]any{},
		CreatedAt:  created,
		UpdatedAt:  created,
		ExpiresAt:  created.Add(ttl),
	}
}

func TestRecordStore_ExpiredRecordsAreInvisible(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewRecordStore(WithRecordClock(func() time.Time { return now }))

	live := newRecord(record.KindRouting, "doc-1", now.Add(-time.Hour), record.DefaultTTL)
	stale := newRecord(record.KindRouting, "doc-1", now.Add(-31*24*time.Hour), record.DefaultTTL)
	require.NoError(t, store.Put(ctx, live))
	require.NoError(t, store.Put(ctx, stale))

	_, err := store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	page, err := store.List(ctx, record.Filter{}, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, live.ID, page.Records[0].ID)

	purged, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestRecordStore_FinalizedRecordsAreNotRewritten(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewRecordStore(WithRecordClock(func() time.Time { return now }))

	rec := newRecord(record.KindComparison, "doc-1", now, record.DefaultTTL)
	rec.Status = record.StatusProcessing
	require.NoError(t, store.Put(ctx, rec))

	rec.Status = record.StatusFailed
	rec.Error = "boom"
	require.NoError(t, store.Put(ctx, rec))

	rec.Status = record.StatusProcessing
	rec.Error = ""
	assert.ErrorIs(t, store.Put(ctx, rec), errs.ErrInvalidInput)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestRecordStore_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewRecordStore(WithRecordClock(func() time.Time { return now }))

	var routed []*record.Record
	for i := 0; i < 5; i++ {
		rec := newRecord(record.KindRouting, "doc-1", now.Add(-time.Duration(i)*time.Minute), record.DefaultTTL)
		routed = append(routed, rec)
		require.NoError(t, store.Put(ctx, rec))
	}
	require.NoError(t, store.Put(ctx, newRecord(record.KindComparison, "doc-1", now, record.DefaultTTL)))
	require.NoError(t, store.Put(ctx, newRecord(record.KindRouting, "doc-2", now, record.DefaultTTL)))

	filter := record.Filter{
		Kind:       mo.Some(record.KindRouting),
		DocumentID: mo.Some("doc-1"),
		Limit:      2,
	}

	var got []uuid.UUID
	token := ""
	for pages := 0; pages < 5; pages++ {
		page, err := store.List(ctx, filter, token)
		require.NoError(t, err)
		for _, rec := range page.Records {
			got = append(got, rec.ID)
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}

	require.Len(t, got, 5)
	for i, rec := range routed {
		assert.Equal(t, rec.ID, got[i], "position %d", i)
	}

	_, err := store.List(ctx, filter, "%%%")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestRuleRepository_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }

	rule := &routing.Rule{ID: "b", Status: routing.RuleActive, Priority: routing.RulePriorityMedium}
	require.NoError(t, repo.Upsert(ctx, rule))
	require.NoError(t, repo.Upsert(ctx, &routing.Rule{ID: "a", Status: routing.RuleInactive, Priority: routing.RulePriorityLow}))

	later := first.Add(time.Hour)
	repo.now = func() time.Time { return later }
	require.NoError(t, repo.Upsert(ctx, &routing.Rule{ID: "b", Name: "renamed", Status: routing.RuleActive, Priority: routing.RulePriorityHigh}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "renamed", all[1].Name)
	assert.Equal(t, first, all[1].CreatedAt)
	assert.Equal(t, later, all[1].UpdatedAt)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)
}
