// Package postgres は pgx / pgvector によるリポジトリ実装
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jinford/docroute/internal/core/errs"
)

//go:embed schema/schema.sql
var schemaSQL string

// DBTX は pgxpool.Pool と pgx.Tx の共通インターフェース
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Schema は埋め込まれたスキーマ定義を返す
func Schema() string {
	return schemaSQL
}

// Migrate はスキーマを適用する（冪等）
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// wrapError は pgx のエラーを errs の分類に変換する
func wrapError(op string, err error, notFound string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.NotFound(op, "%s", notFound)
	}
	return errs.Persistence(op, err)
}
