package classification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/llm"
)

const (
	// ClassificationPromptVersion は分類プロンプトのバージョン
	ClassificationPromptVersion = "1.0"

	// ClassificationTemperature は分類の温度設定
	ClassificationTemperature = 0.0

	// ClassificationMaxTokens は生成する最大トークン数
	ClassificationMaxTokens = 800

	// DefaultExcerptChars はプロンプトに含める本文抜粋の上限文字数
	DefaultExcerptChars = 3000
)

const classificationSystemPrompt = `You are a document classification assistant.

Your task is to classify a document along four categories and describe its characteristics.

Guidelines:
- Choose exactly one primary label per category from the allowed values
- Confidence values are numbers between 0 and 1
- List up to 2 alternative labels per category, each from the allowed values
- Return a valid JSON response`

type aiAlternative struct {
	Label      string   `json:"label" validate:"required"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

type aiAssignment struct {
	Primary      string          `json:"primary" validate:"required"`
	Confidence   *float64        `json:"confidence" validate:"required,gte=0,lte=1"`
	Alternatives []aiAlternative `json:"alternatives" validate:"dive"`
}

type aiCharacteristics struct {
	RequiresReview             *bool  `json:"requiresReview" validate:"required"`
	RequiresTechnicalExpertise *bool  `json:"requiresTechnicalExpertise" validate:"required"`
	EstimatedEffort            string `json:"estimatedEffort" validate:"omitempty,oneof=small medium large xlarge"`
}

// aiClassification は推論サービスが返す分類結果のスキーマ
type aiClassification struct {
	DocumentType           aiAssignment      `json:"documentType" validate:"required"`
	Domain                 aiAssignment      `json:"domain" validate:"required"`
	Priority               aiAssignment      `json:"priority" validate:"required"`
	Complexity             aiAssignment      `json:"complexity" validate:"required"`
	Characteristics        aiCharacteristics `json:"characteristics" validate:"required"`
	RoutingRecommendations []string          `json:"routingRecommendations"`
}

func (c *aiClassification) assignment(category Category) aiAssignment {
	switch category {
	case CategoryDocumentType:
		return c.DocumentType
	case CategoryDomain:
		return c.Domain
	case CategoryPriority:
		return c.Priority
	default:
		return c.Complexity
	}
}

// Engine は文書を分類する
type Engine struct {
	client       llm.Client
	tokenCounter llm.TokenCounter
	excerptChars int
	logger       *slog.Logger
}

// EngineOption は Engine のオプション設定
type EngineOption func(*Engine)

// WithEngineLogger はロガーを設定する
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTokenCounter はプロンプトサイズ検査に使うトークンカウンタを設定する
func WithTokenCounter(counter llm.TokenCounter) EngineOption {
	return func(e *Engine) {
		e.tokenCounter = counter
	}
}

// WithExcerptChars は本文抜粋の上限文字数を設定する
func WithExcerptChars(n int) EngineOption {
	return func(e *Engine) {
		e.excerptChars = n
	}
}

// NewEngine は新しい Engine を作成する
func NewEngine(client llm.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client:       client,
		excerptChars: DefaultExcerptChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.excerptChars <= 0 {
		e.excerptChars = DefaultExcerptChars
	}
	return e
}

// Classify は文書を分類する
// 推論サービスの失敗や応答の検証失敗時は Fallback の結果をそのまま返す（AI の部分結果は混ぜない）
func (e *Engine) Classify(ctx context.Context, doc *document.Document) Result {
	return e.ClassifyPrepared(ctx, document.Prepare(doc))
}

// ClassifyPrepared は整形済み文書を分類する
func (e *Engine) ClassifyPrepared(ctx context.Context, prepared *document.Prepared) Result {
	judgment, err := e.request(ctx, prepared)
	if err != nil {
		e.logger.Warn("classification fell back to keyword rules",
			"documentId", prepared.Document.ID,
			"error", err,
		)
		result := Fallback(prepared)
		result.Error = err.Error()
		return result
	}

	return fromJudgment(prepared, judgment)
}

func (e *Engine) request(ctx context.Context, prepared *document.Prepared) (aiClassification, error) {
	prompt := fmt.Sprintf("%s\n\n%s", classificationSystemPrompt, e.buildPrompt(prepared))

	tokens, err := llm.CheckPromptSize(e.tokenCounter, prompt, llm.MaxInputTokens)
	if err != nil {
		return aiClassification{}, err
	}
	e.logger.Debug("requesting classification", "promptTokens", tokens, "promptVersion", ClassificationPromptVersion)

	resp, err := e.client.GenerateCompletion(ctx, llm.CompletionRequest{
		Prompt:         prompt,
		Temperature:    ClassificationTemperature,
		MaxTokens:      ClassificationMaxTokens,
		ResponseFormat: "json",
	})
	if err != nil {
		return aiClassification{}, fmt.Errorf("failed to generate completion: %w", err)
	}

	judgment, err := llm.DecodeStructured[aiClassification](resp.Content)
	if err != nil {
		return aiClassification{}, fmt.Errorf("failed to parse classification response: %w", err)
	}
	if err := validateLabels(&judgment); err != nil {
		return aiClassification{}, err
	}
	return judgment, nil
}

// validateLabels はラベルが分類体系に含まれることを確認する
func validateLabels(j *aiClassification) error {
	for _, category := range Categories {
		a := j.assignment(category)
		if !IsValid(category, a.Primary) {
			return fmt.Errorf("%w: invalid %s %q", llm.ErrSchemaViolation, category, a.Primary)
		}
		for _, alt := range a.Alternatives {
			if !IsValid(category, alt.Label) {
				return fmt.Errorf("%w: invalid %s alternative %q", llm.ErrSchemaViolation, category, alt.Label)
			}
		}
	}
	return nil
}

func (e *Engine) buildPrompt(prepared *document.Prepared) string {
	var sb strings.Builder

	sb.WriteString("Classify the following document.\n\n")
	sb.WriteString("Allowed values:\n")
	for _, category := range Categories {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", category, strings.Join(Taxonomy[category], ", ")))
	}
	sb.WriteString("- estimatedEffort: small, medium, large, xlarge\n\n")

	sb.WriteString(fmt.Sprintf("Title: %s\n", prepared.Document.Title))
	if prepared.Document.Type != "" {
		sb.WriteString(fmt.Sprintf("Declared Type: %s\n", prepared.Document.Type))
	}
	sb.WriteString(fmt.Sprintf("Word Count: %d\n", prepared.Metrics.WordCount))
	if n := len(prepared.Document.Requirements); n > 0 {
		sb.WriteString(fmt.Sprintf("Extracted Requirements: %d\n", n))
	}
	if langs := prepared.Outline.CodeLanguages(); len(langs) > 0 {
		sb.WriteString(fmt.Sprintf("Code Languages: %s\n", strings.Join(langs, ", ")))
	}
	if titles := prepared.Outline.SectionTitles(); len(titles) > 0 {
		sb.WriteString(fmt.Sprintf("Sections: %s\n", strings.Join(titles, " | ")))
	}

	sb.WriteString("\nContent:\n")
	sb.WriteString(prepared.Excerpt(e.excerptChars))
	sb.WriteString("\n\n")

	sb.WriteString("Return a JSON response with the following structure:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "documentType": {"primary": "technical_specification", "confidence": 0.85, "alternatives": [{"label": "design_document", "confidence": 0.4}]},` + "\n")
	sb.WriteString(`  "domain": {"primary": "backend", "confidence": 0.8, "alternatives": []},` + "\n")
	sb.WriteString(`  "priority": {"primary": "medium", "confidence": 0.7, "alternatives": []},` + "\n")
	sb.WriteString(`  "complexity": {"primary": "moderate", "confidence": 0.75, "alternatives": []},` + "\n")
	sb.WriteString(`  "characteristics": {"requiresReview": false, "requiresTechnicalExpertise": true, "estimatedEffort": "medium"},` + "\n")
	sb.WriteString(`  "routingRecommendations": ["..."]` + "\n")
	sb.WriteString("}")

	return sb.String()
}

func fromJudgment(prepared *document.Prepared, j aiClassification) Result {
	chars := deterministicCharacteristics(prepared)
	chars.RequiresReview = *j.Characteristics.RequiresReview
	chars.RequiresTechnicalExpertise = *j.Characteristics.RequiresTechnicalExpertise || chars.HasCodeBlocks
	if j.Characteristics.EstimatedEffort != "" {
		chars.EstimatedEffort = j.Characteristics.EstimatedEffort
	}

	recs := j.RoutingRecommendations
	if recs == nil {
		recs = []string{}
	}

	return Result{
		DocumentID:             prepared.Document.ID,
		DocumentType:           toAssignment(j.DocumentType),
		Domain:                 toAssignment(j.Domain),
		Priority:               toAssignment(j.Priority),
		Complexity:             toAssignment(j.Complexity),
		Characteristics:        chars,
		RoutingRecommendations: recs,
		Source:                 SourceAI,
	}
}

func toAssignment(a aiAssignment) Assignment {
	alts := make([]Alternative, 0, len(a.Alternatives))
	for _, alt := range a.Alternatives {
		alts = append(alts, Alternative{Label: alt.Label, Confidence: *alt.Confidence})
	}
	return Assignment{Primary: a.Primary, Confidence: *a.Confidence, Alternatives: alts}
}
