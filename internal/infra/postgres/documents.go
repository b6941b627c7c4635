package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/errs"
)

// DocumentRepository は documents / document_requirements テーブルを扱う
type DocumentRepository struct {
	db DBTX
}

// NewDocumentRepository は新しい DocumentRepository を作成する
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const getDocumentSQL = `
SELECT id, title, doc_type, content, processed_text, size_bytes, word_count, created_at, updated_at
FROM documents
WHERE id = $1`

const listRequirementsSQL = `
SELECT requirement_id, description, req_type, priority
FROM document_requirements
WHERE document_id = $1
ORDER BY position`

// Get は文書と抽出済み要件を取得する
func (r *DocumentRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	var doc document.Document
	err := r.db.QueryRow(ctx, getDocumentSQL, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.Type,
		&doc.Content,
		&doc.ProcessedText,
		&doc.Metadata.SizeBytes,
		&doc.Metadata.WordCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, wrapError("postgres.DocumentRepository.Get", err, fmt.Sprintf("document %s not found", id))
	}

	rows, err := r.db.Query(ctx, listRequirementsSQL, id)
	if err != nil {
		return nil, errs.Persistence("postgres.DocumentRepository.Get", fmt.Errorf("failed to query requirements: %w", err))
	}
	reqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (document.Requirement, error) {
		var req document.Requirement
		err := row.Scan(&req.ID, &req.Description, &req.Type, &req.Priority)
		return req, err
	})
	if err != nil {
		return nil, errs.Persistence("postgres.DocumentRepository.Get", fmt.Errorf("failed to scan requirements: %w", err))
	}
	doc.Requirements = reqs

	return &doc, nil
}

const upsertDocumentSQL = `
INSERT INTO documents (id, title, doc_type, content, processed_text, size_bytes, word_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), now())
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    doc_type = EXCLUDED.doc_type,
    content = EXCLUDED.content,
    processed_text = EXCLUDED.processed_text,
    size_bytes = EXCLUDED.size_bytes,
    word_count = EXCLUDED.word_count,
    updated_at = now()`

const insertRequirementSQL = `
INSERT INTO document_requirements (document_id, requirement_id, position, description, req_type, priority)
VALUES ($1, $2, $3, $4, $5, $6)`

// Put は文書を登録または更新し、要件を置き換える
// 1つのバッチで送るため、文書と要件は同じ暗黙トランザクションで反映される
func (r *DocumentRepository) Put(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return errs.InvalidInput("postgres.DocumentRepository.Put", "document id is required")
	}

	var createdAt any
	if !doc.CreatedAt.IsZero() {
		createdAt = doc.CreatedAt
	}

	batch := &pgx.Batch{}
	batch.Queue(upsertDocumentSQL,
		doc.ID, doc.Title, doc.Type, doc.Content, doc.ProcessedText,
		doc.Metadata.SizeBytes, doc.Metadata.WordCount, createdAt,
	)
	batch.Queue(`DELETE FROM document_requirements WHERE document_id = $1`, doc.ID)
	for i, req := range doc.Requirements {
		batch.Queue(insertRequirementSQL, doc.ID, req.ID, i, req.Description, string(req.Type), req.Priority)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return errs.Persistence("postgres.DocumentRepository.Put", fmt.Errorf("failed to save document %s: %w", doc.ID, err))
	}
	return nil
}

var _ document.Store = (*DocumentRepository)(nil)
