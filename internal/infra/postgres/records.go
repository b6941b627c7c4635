package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/jinford/docroute/internal/core/record"
)

// RecordRepository は analysis_records テーブルを扱う
// expires_at を過ぎた記録は読み取りから除外し、PurgeExpired で削除する
type RecordRepository struct {
	db  DBTX
	now func() time.Time
}

// NewRecordRepository は新しい RecordRepository を作成する
func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

const upsertRecordSQL = `
INSERT INTO analysis_records (
    id, kind, document_id, target_document_id, request_id, status, step,
    results, error, created_at, updated_at, completed_at, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    step = EXCLUDED.step,
    results = EXCLUDED.results,
    error = EXCLUDED.error,
    updated_at = EXCLUDED.updated_at,
    completed_at = EXCLUDED.completed_at,
    expires_at = EXCLUDED.expires_at
WHERE analysis_records.status = 'processing'`

// Put は記録を保存する（同じIDは上書き）
// completed / failed になった記録は更新せず InvalidInput を返す
func (r *RecordRepository) Put(ctx context.Context, rec *record.Record) error {
	results, err := marshalJSON(rec.Results)
	if err != nil {
		return errs.Persistence("postgres.RecordRepository.Put", err)
	}

	tag, err := r.db.Exec(ctx, upsertRecordSQL,
		rec.ID,
		string(rec.Kind),
		rec.DocumentID,
		rec.TargetDocumentID,
		rec.RequestID,
		string(rec.Status),
		rec.Step,
		results,
		rec.Error,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CompletedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return errs.Persistence("postgres.RecordRepository.Put", fmt.Errorf("failed to upsert record %s: %w", rec.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return errs.InvalidInput("postgres.RecordRepository.Put", "record %s is already finalized", rec.ID)
	}
	return nil
}

const selectRecordColumns = `
SELECT id, kind, document_id, target_document_id, request_id, status, step,
       results, error, created_at, updated_at, completed_at, expires_at
FROM analysis_records`

// Get は期限内の記録を取得する
func (r *RecordRepository) Get(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	row := r.db.QueryRow(ctx, selectRecordColumns+` WHERE id = $1 AND expires_at > $2`, id, r.now())
	rec, err := scanRecord(row)
	if err != nil {
		return nil, wrapError("postgres.RecordRepository.Get", err, fmt.Sprintf("record %s not found", id))
	}
	return rec, nil
}

// List は条件に合う記録を created_at DESC, id DESC の順にページングして返す
func (r *RecordRepository) List(ctx context.Context, filter record.Filter, pageToken string) (record.Page, error) {
	where := []string{"expires_at > $1"}
	args := []any{r.now()}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if kind, ok := filter.Kind.Get(); ok {
		where = append(where, "kind = "+arg(string(kind)))
	}
	if docID, ok := filter.DocumentID.Get(); ok {
		p := arg(docID)
		where = append(where, fmt.Sprintf("(document_id = %s OR target_document_id = %s)", p, p))
	}
	if status, ok := filter.Status.Get(); ok {
		where = append(where, "status = "+arg(string(status)))
	}
	if pageToken != "" {
		cursor, err := record.DecodePageToken(pageToken)
		if err != nil {
			return record.Page{}, err
		}
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(cursor.CreatedAt), arg(cursor.ID)))
	}

	size := filter.PageSize()
	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %s",
		selectRecordColumns, strings.Join(where, " AND "), arg(size+1))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return record.Page{}, errs.Persistence("postgres.RecordRepository.List", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*record.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return record.Page{}, errs.Persistence("postgres.RecordRepository.List", err)
	}

	page := record.Page{Records: records}
	if len(records) > size {
		page.Records = records[:size]
		last := page.Records[size-1]
		page.NextPageToken = record.EncodePageToken(record.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// PurgeExpired は期限切れの記録を削除し、削除件数を返す
func (r *RecordRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM analysis_records WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, errs.Persistence("postgres.RecordRepository.PurgeExpired", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*record.Record, error) {
	var (
		rec     record.Record
		kind    string
		status  string
		results []byte
	)
	err := row.Scan(
		&rec.ID,
		&kind,
		&rec.DocumentID,
		&rec.TargetDocumentID,
		&rec.RequestID,
		&status,
		&rec.Step,
		&results,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CompletedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = record.Kind(kind)
	rec.Status = record.Status(status)
	rec.Results = map[string]any{}
	if err := unmarshalJSON(results, &rec.Results); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ record.Store = (*RecordRepository)(nil)
