package classification

import (
	"fmt"

	"github.com/jinford/docroute/internal/core/similarity"
)

// Source は分類結果の出どころ
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// FallbackConfidence はルールベース分類で全分類軸に付与する固定の信頼度
// 下流で AI 由来の分類と区別できるようにする
const FallbackConfidence = 0.6

// Alternative は代替ラベルとその信頼度
type Alternative struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Assignment は1つの分類軸への割り当て
type Assignment struct {
	Primary      string        `json:"primary"`
	Confidence   float64       `json:"confidence"`
	Alternatives []Alternative `json:"alternatives"`
}

// Characteristics は文書の特徴
type Characteristics struct {
	RequiresReview             bool     `json:"requiresReview"`
	RequiresTechnicalExpertise bool     `json:"requiresTechnicalExpertise"`
	HasRequirements            bool     `json:"hasRequirements"`
	HasCodeBlocks              bool     `json:"hasCodeBlocks"`
	CodeLanguages              []string `json:"codeLanguages"`
	EstimatedEffort            string   `json:"estimatedEffort"`
}

// Map は特徴を json キー名のマップとして返す（ルール条件との照合に使う）
func (c Characteristics) Map() map[string]any {
	return map[string]any{
		"requiresReview":             c.RequiresReview,
		"requiresTechnicalExpertise": c.RequiresTechnicalExpertise,
		"hasRequirements":            c.HasRequirements,
		"hasCodeBlocks":              c.HasCodeBlocks,
		"codeLanguages":              c.CodeLanguages,
		"estimatedEffort":            c.EstimatedEffort,
	}
}

// Result は分類結果
type Result struct {
	DocumentID             string          `json:"documentId"`
	DocumentType           Assignment      `json:"documentType"`
	Domain                 Assignment      `json:"domain"`
	Priority               Assignment      `json:"priority"`
	Complexity             Assignment      `json:"complexity"`
	Characteristics        Characteristics `json:"characteristics"`
	RoutingRecommendations []string        `json:"routingRecommendations"`
	Source                 Source          `json:"source"`
	Error                  string          `json:"error,omitempty"`
}

// Assignment は分類軸の割り当てを返す
func (r *Result) Assignment(category Category) Assignment {
	switch category {
	case CategoryDocumentType:
		return r.DocumentType
	case CategoryDomain:
		return r.Domain
	case CategoryPriority:
		return r.Priority
	case CategoryComplexity:
		return r.Complexity
	default:
		return Assignment{}
	}
}

// Validate は全分類軸の信頼度（代替ラベルを含む）が [0, 1] に収まることを検証する
func (r *Result) Validate() error {
	for _, category := range Categories {
		a := r.Assignment(category)
		if err := similarity.ValidateScore(fmt.Sprintf("%s confidence", category), a.Confidence); err != nil {
			return err
		}
		for _, alt := range a.Alternatives {
			name := fmt.Sprintf("%s alternative %q confidence", category, alt.Label)
			if err := similarity.ValidateScore(name, alt.Confidence); err != nil {
				return err
			}
		}
	}
	return nil
}
