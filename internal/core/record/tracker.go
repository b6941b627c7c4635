package record

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/docroute/internal/core/errs"
)

// Tracker は解析ジョブのライフサイクルを記録する
// 同一IDへの並行更新は後勝ちとなる（排他制御はしない）
type Tracker struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// TrackerOption は Tracker のオプション設定
type TrackerOption func(*Tracker)

// WithTrackerLogger はロガーを設定する
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithTTL は記録の保持期間を設定する
func WithTTL(ttl time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

// WithTrackerClock は時刻取得関数を差し替える（テスト用）
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker は新しい Tracker を作成する
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.ttl <= 0 {
		t.ttl = DefaultTTL
	}
	return t
}

// Start は processing 状態の新しい記録を作成して保存する
func (t *Tracker) Start(ctx context.Context, kind Kind, documentID, targetID, requestID string) (*Record, error) {
	now := t.now()
	rec := &Record{
		ID:               uuid.New(),
		Kind:             kind,
		DocumentID:       documentID,
		TargetDocumentID: targetID,
		RequestID:        requestID,
		Status:           StatusProcessing,
		Results:          map[string]any{},
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(t.ttl),
	}

	if err := t.store.Put(ctx, rec); err != nil {
		return nil, errs.Persistence("record.Start", err)
	}

	t.logger.Info("analysis started", "recordId", rec.ID, "kind", kind, "documentId", documentID)
	return rec, nil
}

// Step は実行前のステップ名を記録する（進捗を外部から観測できるようにする）
func (t *Tracker) Step(ctx context.Context, rec *Record, step string) error {
	if err := t.ensureProcessing(ctx, rec); err != nil {
		return err
	}
	rec.Step = step
	return t.save(ctx, rec, "record.Step")
}

// SetResult はステージの結果を記録に書き込む
func (t *Tracker) SetResult(ctx context.Context, rec *Record, key string, value any) error {
	if err := t.ensureProcessing(ctx, rec); err != nil {
		return err
	}
	rec.Results[key] = value
	return t.save(ctx, rec, "record.SetResult")
}

// Complete は記録を completed に遷移させる
func (t *Tracker) Complete(ctx context.Context, rec *Record) error {
	if err := t.ensureProcessing(ctx, rec); err != nil {
		return err
	}
	now := t.now()
	rec.Status = StatusCompleted
	rec.Step = string(StatusCompleted)
	rec.CompletedAt = &now
	if err := t.save(ctx, rec, "record.Complete"); err != nil {
		return err
	}
	t.logger.Info("analysis completed", "recordId", rec.ID, "kind", rec.Kind)
	return nil
}

// Fail は記録を failed に遷移させる
// それまでに書き込まれた部分結果は保持する
func (t *Tracker) Fail(ctx context.Context, rec *Record, cause error) error {
	if err := t.ensureProcessing(ctx, rec); err != nil {
		return err
	}
	now := t.now()
	rec.Status = StatusFailed
	rec.CompletedAt = &now
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := t.save(ctx, rec, "record.Fail"); err != nil {
		return err
	}
	t.logger.Warn("analysis failed", "recordId", rec.ID, "kind", rec.Kind, "step", rec.Step, "error", rec.Error)
	return nil
}

// Get は記録を取得する
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, errs.Persistence("record.Get", err)
	}
	return rec, nil
}

// List は記録の一覧を取得する
func (t *Tracker) List(ctx context.Context, filter Filter, pageToken string) (Page, error) {
	page, err := t.store.List(ctx, filter, pageToken)
	if err != nil {
		return Page{}, errs.Persistence("record.List", err)
	}
	return page, nil
}

// ensureProcessing は記録が終端状態でないことを確認する
// 手元のコピーとストア上の状態の両方を確認し、終端状態からの後退を防ぐ
func (t *Tracker) ensureProcessing(ctx context.Context, rec *Record) error {
	if rec.Status.IsTerminal() {
		return errs.InvalidInput("record.transition", "record %s is already %s", rec.ID, rec.Status)
	}

	stored, err := t.store.Get(ctx, rec.ID)
	if err != nil {
		return errs.Persistence("record.transition", err)
	}
	if stored.Status.IsTerminal() {
		return errs.InvalidInput("record.transition", "record %s is already %s", rec.ID, stored.Status)
	}
	return nil
}

func (t *Tracker) save(ctx context.Context, rec *Record, op string) error {
	rec.UpdatedAt = t.now()
	if err := t.store.Put(ctx, rec.Clone()); err != nil {
		return errs.Persistence(op, err)
	}
	return nil
}

// Cursor はページングの位置（created_at DESC, id DESC の順）
type Cursor struct {
	CreatedAt time.Time `json:"c"`
	ID        uuid.UUID `json:"i"`
}

// EncodePageToken はカーソルを不透明なページトークンに変換する
func EncodePageToken(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodePageToken はページトークンをカーソルに戻す
func DecodePageToken(token string) (Cursor, error) {
	var c Cursor
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, errs.InvalidInput("record.DecodePageToken", "malformed page token")
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errs.InvalidInput("record.DecodePageToken", "malformed page token: %v", err)
	}
	return c, nil
}

// Admits はレコードがカーソルより後ろ（次ページ側）にあるかを返す
func (c Cursor) Admits(rec *Record) bool {
	if rec.CreatedAt.Equal(c.CreatedAt) {
		return rec.ID.String() < c.ID.String()
	}
	return rec.CreatedAt.Before(c.CreatedAt)
}
