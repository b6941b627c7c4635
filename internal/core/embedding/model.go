package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/mo"
)

// Record は文書ごと・モデルごとの Embedding
// content_hash が変わると新しいレコードで置き換える（古いものは削除しない）
type Record struct {
	DocumentID  string    `json:"documentId"`
	Vector      []float32 `json:"vector"`
	ContentHash string    `json:"contentHash"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Neighbor は近傍検索の結果
type Neighbor struct {
	DocumentID string  `json:"documentId"`
	Similarity float64 `json:"similarity"`
}

// Repository は Embedding の永続化インターフェース
type Repository interface {
	// Latest は文書の最新レコードを返す
	Latest(ctx context.Context, documentID, model string) (mo.Option[*Record], error)

	// Save は新しいレコードを追加する
	Save(ctx context.Context, record *Record) error

	// SimilarDocuments はベクトルに近い文書を返す
	SimilarDocuments(ctx context.Context, vector []float32, model string, limit int) ([]Neighbor, error)
}

// HashContent は整形済みテキストとモデル名から content_hash を計算する
func HashContent(text, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
