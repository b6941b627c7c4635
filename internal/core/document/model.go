package document

import (
	"context"
	"time"
)

// RequirementType は要件の種類
type RequirementType string

const (
	RequirementFunctional    RequirementType = "functional"
	RequirementNonFunctional RequirementType = "non_functional"
)

// Requirement は文書から抽出済みの要件（不変）
type Requirement struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Type        RequirementType `json:"type"`
	Priority    string          `json:"priority,omitempty"`
}

// Metadata はサイズ情報
type Metadata struct {
	SizeBytes int `json:"sizeBytes"`
	WordCount int `json:"wordCount"`
}

// Document は外部ドキュメントストアが所有する文書（このサブシステムでは読み取り専用）
type Document struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Type          string        `json:"type"`
	Content       string        `json:"content"`
	ProcessedText string        `json:"processedText,omitempty"`
	Requirements  []Requirement `json:"requirements,omitempty"`
	Metadata      Metadata      `json:"metadata"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Text は処理済みテキストがあればそれを、なければ生テキストを返す
func (d *Document) Text() string {
	if d.ProcessedText != "" {
		return d.ProcessedText
	}
	return d.Content
}

// Store はドキュメントストアの読み取りインターフェース
type Store interface {
	// Get は文書を取得する。存在しない場合は errs.ErrNotFound を返す
	Get(ctx context.Context, id string) (*Document, error)
}
