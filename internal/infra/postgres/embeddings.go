package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/errs"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"
)

// EmbeddingRepository は document_embeddings テーブルを扱う
type EmbeddingRepository struct {
	db DBTX
}

// NewEmbeddingRepository は新しい EmbeddingRepository を作成する
func NewEmbeddingRepository(db DBTX) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

const latestEmbeddingSQL = `
SELECT document_id, model, content_hash, dimension, vector, created_at
FROM document_embeddings
WHERE document_id = $1 AND model = $2
ORDER BY created_at DESC, id DESC
LIMIT 1`

// Latest は文書・モデルごとの最新レコードを返す
func (r *EmbeddingRepository) Latest(ctx context.Context, documentID, model string) (mo.Option[*embedding.Record], error) {
	var (
		rec embedding.Record
		vec pgvector.Vector
	)
	err := r.db.QueryRow(ctx, latestEmbeddingSQL, documentID, model).Scan(
		&rec.DocumentID,
		&rec.Model,
		&rec.ContentHash,
		&rec.Dimension,
		&vec,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[*embedding.Record](), nil
	}
	if err != nil {
		return mo.None[*embedding.Record](), errs.Persistence("postgres.EmbeddingRepository.Latest", err)
	}
	rec.Vector = vec.Slice()
	return mo.Some(&rec), nil
}

const insertEmbeddingSQL = `
INSERT INTO document_embeddings (document_id, model, content_hash, dimension, vector, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Save は新しいレコードを追加する（古いレコードは残る）
func (r *EmbeddingRepository) Save(ctx context.Context, rec *embedding.Record) error {
	_, err := r.db.Exec(ctx, insertEmbeddingSQL,
		rec.DocumentID,
		rec.Model,
		rec.ContentHash,
		rec.Dimension,
		pgvector.NewVector(rec.Vector),
		rec.CreatedAt,
	)
	if err != nil {
		return errs.Persistence("postgres.EmbeddingRepository.Save", fmt.Errorf("failed to insert embedding: %w", err))
	}
	return nil
}

// 各文書の最新ベクトルだけを対象にコサイン距離で並べる
const similarDocumentsSQL = `
WITH latest AS (
    SELECT DISTINCT ON (document_id) document_id, vector
    FROM document_embeddings
    WHERE model = $2 AND dimension = $3
    ORDER BY document_id, created_at DESC, id DESC
)
SELECT document_id, 1 - (vector <=> $1) AS similarity
FROM latest
ORDER BY vector <=> $1, document_id
LIMIT $4`

// SimilarDocuments はベクトルに近い文書をコサイン類似度の高い順に返す
func (r *EmbeddingRepository) SimilarDocuments(ctx context.Context, vector []float32, model string, limit int) ([]embedding.Neighbor, error) {
	rows, err := r.db.Query(ctx, similarDocumentsSQL, pgvector.NewVector(vector), model, len(vector), limit)
	if err != nil {
		return nil, errs.Persistence("postgres.EmbeddingRepository.SimilarDocuments", err)
	}
	neighbors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (embedding.Neighbor, error) {
		var n embedding.Neighbor
		err := row.Scan(&n.DocumentID, &n.Similarity)
		return n, err
	})
	if err != nil {
		return nil, errs.Persistence("postgres.EmbeddingRepository.SimilarDocuments", err)
	}
	return neighbors, nil
}

var _ embedding.Repository = (*EmbeddingRepository)(nil)
