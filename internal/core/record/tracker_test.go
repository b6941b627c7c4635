package record

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	putErr  error
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[uuid.UUID]*Record)}
}

func (s *mapStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *mapStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, errs.NotFound("mapStore.Get", "record %s not found", id)
	}
	return rec.Clone(), nil
}

func (s *mapStore) List(ctx context.Context, filter Filter, pageToken string) (Page, error) {
	return Page{}, nil
}

func newTestTracker(store Store) *Tracker {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewTracker(store,
		WithTrackerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTrackerClock(func() time.Time { return fixed }),
	)
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	tracker := newTestTracker(store)

	rec, err := tracker.Start(ctx, KindComparison, "src", "dst", "req-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, rec.CreatedAt.Add(DefaultTTL), rec.ExpiresAt)

	require.NoError(t, tracker.Step(ctx, rec, "analyzing_structure"))
	require.NoError(t, tracker.SetResult(ctx, rec, "structure", map[string]int{"sections": 3}))

	stored, err := tracker.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "analyzing_structure", stored.Step)
	assert.Contains(t, stored.Results, "structure")

	require.NoError(t, tracker.Complete(ctx, rec))
	stored, err = tracker.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestTracker_StatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	tracker := newTestTracker(store)

	rec, err := tracker.Start(ctx, KindComparison, "src", "dst", "")
	require.NoError(t, err)
	require.NoError(t, tracker.SetResult(ctx, rec, "structure", "partial"))
	require.NoError(t, tracker.Fail(ctx, rec, errors.New("insights exploded")))

	err = tracker.Complete(ctx, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	err = tracker.Step(ctx, rec, "generating_insights")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	stored, err := tracker.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "insights exploded", stored.Error)
	// 失敗前の部分結果は残る
	assert.Equal(t, "partial", stored.Results["structure"])
}

func TestTracker_StoredTerminalStateWins(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	tracker := newTestTracker(store)

	rec, err := tracker.Start(ctx, KindRouting, "doc", "", "")
	require.NoError(t, err)

	// 別の実行が先に完了させたケース
	other, err := tracker.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NoError(t, tracker.Complete(ctx, other))

	err = tracker.Fail(ctx, rec, errors.New("late failure"))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	stored, err := tracker.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestTracker_PersistenceFailure(t *testing.T) {
	store := newMapStore()
	store.putErr = errors.New("connection refused")
	tracker := newTestTracker(store)

	_, err := tracker.Start(context.Background(), KindClassification, "doc", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
}

func TestTracker_CustomTTL(t *testing.T) {
	store := newMapStore()
	tracker := NewTracker(store, WithTTL(time.Hour), WithTrackerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec, err := tracker.Start(context.Background(), KindClassification, "doc", "", "")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, rec.ExpiresAt.Sub(rec.CreatedAt))
}

func TestPageToken(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ID: uuid.New()}

	decoded, err := DecodePageToken(EncodePageToken(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	_, err = DecodePageToken("%%%")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestCursor_Admits(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Cursor{CreatedAt: at, ID: uuid.MustParse("88888888-8888-8888-8888-888888888888")}

	assert.True(t, c.Admits(&Record{CreatedAt: at.Add(-time.Minute), ID: uuid.New()}))
	assert.False(t, c.Admits(&Record{CreatedAt: at.Add(time.Minute), ID: uuid.New()}))
	assert.True(t, c.Admits(&Record{CreatedAt: at, ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}))
	assert.False(t, c.Admits(&Record{CreatedAt: at, ID: uuid.MustParse("99999999-9999-9999-9999-999999999999")}))
}
