package comparison

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/jinford/docroute/internal/core/similarity"
)

const (
	// ComparisonPromptVersion は比較プロンプトのバージョン
	ComparisonPromptVersion = "1.0"

	// ComparisonTemperature は比較の温度設定
	ComparisonTemperature = 0.0

	// ComparisonMaxTokens は生成する最大トークン数
	ComparisonMaxTokens = 1000
)

const comparisonSystemPrompt = `You are a document analysis assistant.

Your task is to compare two documents and judge how similar they are.

Guidelines:
- Every score is a number between 0 and 1
- relationshipType is one of: duplicate, highly_similar, related, somewhat_related, unrelated
- List at most 5 items in each array
- Return a valid JSON response`

// aiJudgment は推論サービスが返す比較結果のスキーマ
type aiJudgment struct {
	OverallSimilarity      *float64 `json:"overallSimilarity" validate:"required,gte=0,lte=1"`
	StructuralSimilarity   *float64 `json:"structuralSimilarity" validate:"required,gte=0,lte=1"`
	ConceptualSimilarity   *float64 `json:"conceptualSimilarity" validate:"required,gte=0,lte=1"`
	TopicOverlap           *float64 `json:"topicOverlap" validate:"required,gte=0,lte=1"`
	RequirementsSimilarity *float64 `json:"requirementsSimilarity" validate:"required,gte=0,lte=1"`
	TerminologyConsistency *float64 `json:"terminologyConsistency" validate:"required,gte=0,lte=1"`
	RelationshipType       string   `json:"relationshipType" validate:"omitempty,oneof=duplicate highly_similar related somewhat_related unrelated"`
	SharedConcepts         []string `json:"sharedConcepts"`
	UniqueToSource         []string `json:"uniqueToSource"`
	UniqueToTarget         []string `json:"uniqueToTarget"`
	KeyDifferences         []string `json:"keyDifferences"`
	RecommendedActions     []string `json:"recommendedActions"`
}

// Comparator は文書ペアの意味比較を行う
type Comparator struct {
	client       llm.Client
	tokenCounter llm.TokenCounter
	excerptChars int
	logger       *slog.Logger
}

// ComparatorOption は Comparator のオプション設定
type ComparatorOption func(*Comparator)

// WithComparatorLogger はロガーを設定する
func WithComparatorLogger(logger *slog.Logger) ComparatorOption {
	return func(c *Comparator) {
		c.logger = logger
	}
}

// WithTokenCounter はプロンプトサイズ検査に使うトークンカウンタを設定する
func WithTokenCounter(counter llm.TokenCounter) ComparatorOption {
	return func(c *Comparator) {
		c.tokenCounter = counter
	}
}

// WithExcerptChars は本文抜粋の上限文字数を設定する
func WithExcerptChars(n int) ComparatorOption {
	return func(c *Comparator) {
		c.excerptChars = n
	}
}

// NewComparator は新しい Comparator を作成する
func NewComparator(client llm.Client, opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		client:       client,
		excerptChars: DefaultExcerptChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.excerptChars <= 0 {
		c.excerptChars = DefaultExcerptChars
	}
	return c
}

// Compare は2文書を比較する
// 推論サービスの失敗や応答の解析失敗はエラーにせず、決定論的なフォールバック結果を返す
// sourceVec / targetVec が nil の場合、フォールバックは語彙類似度を使う
func (c *Comparator) Compare(ctx context.Context, source, target *document.Prepared, sourceVec, targetVec []float32) SemanticResult {
	cosine, basis := c.baseline(source, target, sourceVec, targetVec)

	if source.Text == target.Text {
		return identicalResult(cosine, basis)
	}

	judgment, err := c.requestJudgment(ctx, source, target)
	if err != nil {
		c.logger.Warn("semantic comparison fell back to deterministic result",
			"sourceId", source.Document.ID,
			"targetId", target.Document.ID,
			"error", err,
		)
		return fallbackResult(cosine, basis, err)
	}

	return aiResult(judgment, cosine, basis)
}

// baseline はフォールバックとブレンドに使う基準類似度を返す（[0,1] に丸める）
func (c *Comparator) baseline(source, target *document.Prepared, sourceVec, targetVec []float32) (float64, SimilarityBasis) {
	if len(sourceVec) > 0 && len(targetVec) > 0 {
		cos, err := similarity.Cosine(sourceVec, targetVec)
		if err == nil {
			return similarity.Clamp01(cos), BasisEmbedding
		}
		c.logger.Warn("embedding cosine unavailable, using lexical similarity", "error", err)
	}
	return similarity.Lexical(source.Text, target.Text), BasisLexical
}

func (c *Comparator) requestJudgment(ctx context.Context, source, target *document.Prepared) (aiJudgment, error) {
	prompt := fmt.Sprintf("%s\n\n%s", comparisonSystemPrompt, c.buildPrompt(source, target))

	tokens, err := llm.CheckPromptSize(c.tokenCounter, prompt, llm.MaxInputTokens)
	if err != nil {
		return aiJudgment{}, err
	}
	c.logger.Debug("requesting semantic comparison", "promptTokens", tokens, "promptVersion", ComparisonPromptVersion)

	resp, err := c.client.GenerateCompletion(ctx, llm.CompletionRequest{
		Prompt:         prompt,
		Temperature:    ComparisonTemperature,
		MaxTokens:      ComparisonMaxTokens,
		ResponseFormat: "json",
	})
	if err != nil {
		return aiJudgment{}, fmt.Errorf("failed to generate completion: %w", err)
	}

	judgment, err := llm.DecodeStructured[aiJudgment](resp.Content)
	if err != nil {
		return aiJudgment{}, fmt.Errorf("failed to parse comparison response: %w", err)
	}
	return judgment, nil
}

func (c *Comparator) buildPrompt(source, target *document.Prepared) string {
	var sb strings.Builder

	sb.WriteString("Compare the following two documents.\n\n")

	sb.WriteString("Document A\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", source.Document.Title))
	sb.WriteString("Content:\n")
	sb.WriteString(source.Excerpt(c.excerptChars))
	sb.WriteString("\n\n")

	sb.WriteString("Document B\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", target.Document.Title))
	sb.WriteString("Content:\n")
	sb.WriteString(target.Excerpt(c.excerptChars))
	sb.WriteString("\n\n")

	sb.WriteString("Return a JSON response with the following structure:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "overallSimilarity": 0.75,` + "\n")
	sb.WriteString(`  "structuralSimilarity": 0.6,` + "\n")
	sb.WriteString(`  "conceptualSimilarity": 0.8,` + "\n")
	sb.WriteString(`  "topicOverlap": 0.7,` + "\n")
	sb.WriteString(`  "requirementsSimilarity": 0.65,` + "\n")
	sb.WriteString(`  "terminologyConsistency": 0.9,` + "\n")
	sb.WriteString(`  "relationshipType": "related",` + "\n")
	sb.WriteString(`  "sharedConcepts": ["..."],` + "\n")
	sb.WriteString(`  "uniqueToSource": ["..."],` + "\n")
	sb.WriteString(`  "uniqueToTarget": ["..."],` + "\n")
	sb.WriteString(`  "keyDifferences": ["..."],` + "\n")
	sb.WriteString(`  "recommendedActions": ["..."]` + "\n")
	sb.WriteString("}")

	return sb.String()
}

func aiResult(j aiJudgment, cosine float64, basis SimilarityBasis) SemanticResult {
	rel := RelationshipType(j.RelationshipType)
	if rel == "" {
		rel = DeriveRelationship(cosine)
	}

	return SemanticResult{
		OverallSimilarity:      *j.OverallSimilarity,
		StructuralSimilarity:   *j.StructuralSimilarity,
		ConceptualSimilarity:   *j.ConceptualSimilarity,
		TopicOverlap:           *j.TopicOverlap,
		RequirementsSimilarity: *j.RequirementsSimilarity,
		TerminologyConsistency: *j.TerminologyConsistency,
		RelationshipType:       rel,
		KeyDifferences:         nonNil(j.KeyDifferences),
		RecommendedActions:     nonNil(j.RecommendedActions),
		SharedConcepts:         nonNil(j.SharedConcepts),
		UniqueToSource:         nonNil(j.UniqueToSource),
		UniqueToTarget:         nonNil(j.UniqueToTarget),
		CosineSimilarity:       cosine,
		Basis:                  basis,
		Confidence: similarity.Clamp01(BlendConfidence(
			cosine, *j.OverallSimilarity, *j.StructuralSimilarity, *j.ConceptualSimilarity,
		)),
		Source: SourceAI,
	}
}

func fallbackResult(cosine float64, basis SimilarityBasis, cause error) SemanticResult {
	p := FallbackPlaceholderScore
	return SemanticResult{
		OverallSimilarity:      cosine,
		StructuralSimilarity:   p,
		ConceptualSimilarity:   cosine,
		TopicOverlap:           p,
		RequirementsSimilarity: p,
		TerminologyConsistency: p,
		RelationshipType:       DeriveRelationship(cosine),
		KeyDifferences:         []string{},
		RecommendedActions:     []string{"Review both documents manually; automated semantic analysis was unavailable"},
		SharedConcepts:         []string{},
		UniqueToSource:         []string{},
		UniqueToTarget:         []string{},
		CosineSimilarity:       cosine,
		Basis:                  basis,
		Confidence:             similarity.Clamp01(BlendConfidence(cosine, cosine, p, cosine)),
		Source:                 SourceFallback,
		Error:                  cause.Error(),
	}
}

// identicalResult は整形済みテキストが一致する場合の結果（推論サービスを呼ばない）
func identicalResult(cosine float64, basis SimilarityBasis) SemanticResult {
	return SemanticResult{
		OverallSimilarity:      1,
		StructuralSimilarity:   1,
		ConceptualSimilarity:   1,
		TopicOverlap:           1,
		RequirementsSimilarity: 1,
		TerminologyConsistency: 1,
		RelationshipType:       RelationshipDuplicate,
		KeyDifferences:         []string{},
		RecommendedActions:     []string{"Consolidate the duplicate documents"},
		SharedConcepts:         []string{},
		UniqueToSource:         []string{},
		UniqueToTarget:         []string{},
		CosineSimilarity:       cosine,
		Basis:                  basis,
		Confidence:             similarity.Clamp01(BlendConfidence(cosine, 1, 1, 1)),
		Source:                 SourceIdentical,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
