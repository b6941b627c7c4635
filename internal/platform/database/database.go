// Package database は PostgreSQL 接続プールとトランザクションを管理する
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinford/docroute/internal/infra/postgres"
	"github.com/jinford/docroute/internal/platform/config"
)

// Database はデータベース接続プールを保持する
type Database struct {
	Pool *pgxpool.Pool
}

// New は新しいデータベース接続を作成する
func New(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 接続テスト
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// Migrate はアドバイザリロックの下でスキーマを適用する
func (db *Database) Migrate(ctx context.Context) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := postgres.MigrateLocked(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる
func (db *Database) Close() {
	db.Pool.Close()
}

// Adapter は1つのトランザクション内で動くリポジトリ群
type Adapter struct {
	Documents *postgres.DocumentRepository
	Rules     *postgres.RuleRepository
	Records   *postgres.RecordRepository
}

func newAdapter(tx pgx.Tx) *Adapter {
	return &Adapter{
		Documents: postgres.NewDocumentRepository(tx),
		Rules:     postgres.NewRuleRepository(tx),
		Records:   postgres.NewRecordRepository(tx),
	}
}

// Transact はトランザクションを開始し、リポジトリ群を fn に渡す
// fn がエラーを返した場合はロールバックする
func Transact[T any](ctx context.Context, db *Database, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := fn(newAdapter(tx))
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}
