package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MigrationLockKey はスキーマ適用を直列化するアドバイザリロックのキー
const MigrationLockKey = "docroute:schema-migration"

// LockID は文字列から pg_advisory_xact_lock 用のロックIDを生成する
func LockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return int64(binary.BigEndian.Uint64(h.Sum(nil)[:8]))
}

// AcquireXactLock はトランザクションスコープのアドバイザリロックを取得する
// ロックはトランザクション終了時に解放される
func AcquireXactLock(ctx context.Context, tx pgx.Tx, lockID int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}

// MigrateLocked はアドバイザリロックを取ったトランザクション内でスキーマを適用する
// 複数プロセスが同時に起動しても DDL は1つずつ実行される
func MigrateLocked(ctx context.Context, tx pgx.Tx) error {
	if err := AcquireXactLock(ctx, tx, LockID(MigrationLockKey)); err != nil {
		return err
	}
	return Migrate(ctx, tx)
}
