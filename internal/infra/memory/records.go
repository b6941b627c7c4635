package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
)

// RecordStore は解析記録を保持する
// ExpiresAt を過ぎた記録は Get/List から見えず、Purge で削除される
type RecordStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*record.Record
	now     func() time.Time
}

// RecordStoreOption は RecordStore のオプション設定
type RecordStoreOption func(*RecordStore)

// WithRecordClock は時刻取得関数を差し替える（テスト用）
func WithRecordClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		s.now = now
	}
}

// NewRecordStore は新しい RecordStore を作成する
func NewRecordStore(opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		records: make(map[uuid.UUID]*record.Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put は記録を保存する（同じIDは上書き）
// completed / failed になった記録は更新せず InvalidInput を返す
func (s *RecordStore) Put(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.ID]; ok && existing.Status.IsTerminal() {
		return errs.InvalidInput("memory.RecordStore.Put", "record %s is already finalized", rec.ID)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Get は記録を取得する
func (s *RecordStore) Get(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || s.expired(rec) {
		return nil, errs.NotFound("memory.RecordStore.Get", "record %s not found", id)
	}
	return rec.Clone(), nil
}

// List は条件に合う記録を created_at の新しい順に返す
func (s *RecordStore) List(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error) {
	var cursor *record.Cursor
	if pageToken != "" {
		c, err := record.DecodePageToken(pageToken)
		if err != nil {
			return record.Page{}, err
		}
		cursor = &c
	}

	s.mu.RLock()
	matched := make([]*record.Record, 0)
	for _, rec := range s.records {
		if s.expired(rec) || !matches(rec, filter) {
			continue
		}
		if cursor != nil && !cursor.Admits(rec) {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	size := filter.PageSize()
	page := record.Page{Records: matched}
	if len(matched) > size {
		page.Records = matched[:size]
		last := page.Records[size-1]
		page.NextPageToken = record.EncodePageToken(record.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Purge は期限切れの記録を削除し、削除件数を返す
func (s *RecordStore) Purge(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if s.expired(rec) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *RecordStore) expired(rec *record.Record) bool {
	return !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt)
}

func matches(rec *record.Record, filter record.Filter) bool {
	if kind, ok := filter.Kind.Get(); ok && rec.Kind != kind {
		return false
	}
	if docID, ok := filter.DocumentID.Get(); ok && rec.DocumentID != docID && rec.TargetDocumentID != docID {
		return false
	}
	if status, ok := filter.Status.Get(); ok && rec.Status != status {
		return false
	}
	return true
}

var _ record.Store = (*RecordStore)(nil)
