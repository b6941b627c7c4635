package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jinford/docroute/internal/core/embedding"
	"github.com/jinford/docroute/internal/core/similarity"
	"github.com/samber/mo"
)

// EmbeddingRepository は Embedding を追記型で保持する
type EmbeddingRepository struct {
	mu      sync.RWMutex
	records []*embedding.Record
}

// NewEmbeddingRepository は新しい EmbeddingRepository を作成する
func NewEmbeddingRepository() *EmbeddingRepository {
	return &EmbeddingRepository{}
}

// Latest は文書・モデルごとの最新レコードを返す
func (r *EmbeddingRepository) Latest(ctx context.Context, documentID, model string) (mo.Option[*embedding.Record], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec := r.latest(documentID, model); rec != nil {
		return mo.Some(cloneEmbedding(rec)), nil
	}
	return mo.None[*embedding.Record](), nil
}

// 後から追加したものを優先する
func (r *EmbeddingRepository) latest(documentID, model string) *embedding.Record {
	var found *embedding.Record
	for _, rec := range r.records {
		if rec.DocumentID != documentID || rec.Model != model {
			continue
		}
		if found == nil || !rec.CreatedAt.Before(found.CreatedAt) {
			found = rec
		}
	}
	return found
}

// Save はレコードを追加する
func (r *EmbeddingRepository) Save(ctx context.Context, rec *embedding.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, cloneEmbedding(rec))
	return nil
}

// SimilarDocuments は各文書の最新ベクトルとのコサイン類似度で近い順に返す
func (r *EmbeddingRepository) SimilarDocuments(ctx context.Context, vector []float32, model string, limit int) ([]embedding.Neighbor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	neighbors := []embedding.Neighbor{}
	for _, rec := range r.records {
		if rec.Model != model || seen[rec.DocumentID] || len(rec.Vector) != len(vector) {
			continue
		}
		seen[rec.DocumentID] = true

		latest := r.latest(rec.DocumentID, model)
		score, err := similarity.Cosine(vector, latest.Vector)
		if err != nil {
			continue
		}
		neighbors = append(neighbors, embedding.Neighbor{DocumentID: rec.DocumentID, Similarity: score})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity == neighbors[j].Similarity {
			return neighbors[i].DocumentID < neighbors[j].DocumentID
		}
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func cloneEmbedding(rec *embedding.Record) *embedding.Record {
	c := *rec
	c.Vector = append([]float32(nil), rec.Vector...)
	return &c
}

var _ embedding.Repository = (*EmbeddingRepository)(nil)
