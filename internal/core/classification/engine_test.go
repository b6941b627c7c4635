package classification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	content string
	err     error
	calls   int
	prompt  string
}

func (c *stubClient) GenerateCompletion(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.calls++
	c.prompt = req.Prompt
	if c.err != nil {
		return llm.CompletionResponse{}, c.err
	}
	return llm.CompletionResponse{Content: c.content}, nil
}

func newTestEngine(client llm.Client) *Engine {
	return NewEngine(client, WithEngineLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

const validClassification = `{
  "documentType": {"primary": "technical_specification", "confidence": 0.85, "alternatives": [{"label": "design_document", "confidence": 0.4}]},
  "domain": {"primary": "backend", "confidence": 0.8, "alternatives": []},
  "priority": {"primary": "medium", "confidence": 0.7},
  "complexity": {"primary": "complex", "confidence": 0.75, "alternatives": []},
  "characteristics": {"requiresReview": true, "requiresTechnicalExpertise": false, "estimatedEffort": "large"},
  "routingRecommendations": ["Assign to backend team"]
}`

func securitySpec() *document.Document {
	return &document.Document{
		ID:      "doc-1",
		Title:   "Access control",
		Content: "The service shall log every security event.\nOperators review the log daily.",
	}
}

func TestClassify_FallbackScenario(t *testing.T) {
	engine := newTestEngine(&stubClient{err: errors.New("service unavailable")})

	res := engine.Classify(context.Background(), securitySpec())

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, TypeRequirementsSpecification, res.DocumentType.Primary)
	assert.Equal(t, PriorityHigh, res.Priority.Primary)
	assert.Equal(t, DomainSecurity, res.Domain.Primary)
	assert.Equal(t, ComplexitySimple, res.Complexity.Primary)
	for _, c := range Categories {
		assert.Equal(t, FallbackConfidence, res.Assignment(c).Confidence, "category %s", c)
	}
	assert.True(t, res.Characteristics.HasRequirements)
	assert.True(t, res.Characteristics.RequiresReview)
	assert.Contains(t, res.Error, "service unavailable")
}

func TestClassify_AlwaysFailingServiceEqualsFallback(t *testing.T) {
	doc := securitySpec()
	engine := newTestEngine(&stubClient{err: errors.New("timeout")})

	res := engine.Classify(context.Background(), doc)
	require.NotEmpty(t, res.Error)

	res.Error = ""
	assert.Equal(t, Fallback(document.Prepare(doc)), res)
}

func TestClassify_AIPath(t *testing.T) {
	client := &stubClient{content: validClassification}
	engine := newTestEngine(client)

	doc := &document.Document{
		ID:      "doc-2",
		Title:   "Order service",
		Content: "# API\n```go\nfunc main() {}\n```\nThe order service exposes REST endpoints.",
	}
	res := engine.Classify(context.Background(), doc)

	assert.Equal(t, SourceAI, res.Source)
	assert.Empty(t, res.Error)
	assert.Equal(t, TypeTechnicalSpecification, res.DocumentType.Primary)
	assert.Equal(t, 0.85, res.DocumentType.Confidence)
	require.Len(t, res.DocumentType.Alternatives, 1)
	assert.Equal(t, TypeDesignDocument, res.DocumentType.Alternatives[0].Label)
	assert.Equal(t, []Alternative{}, res.Priority.Alternatives)
	assert.Equal(t, DomainBackend, res.Domain.Primary)
	assert.True(t, res.Characteristics.RequiresReview)
	// コードブロックがあれば技術的専門性が必要
	assert.True(t, res.Characteristics.RequiresTechnicalExpertise)
	assert.True(t, res.Characteristics.HasCodeBlocks)
	assert.Equal(t, []string{"Go"}, res.Characteristics.CodeLanguages)
	assert.Equal(t, EffortLarge, res.Characteristics.EstimatedEffort)

	assert.Contains(t, client.prompt, "Title: Order service")
	assert.Contains(t, client.prompt, "Code Languages: Go")
	assert.Contains(t, client.prompt, "requirements_specification, technical_specification")
}

func TestClassify_InvalidResponsesFallBack(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "technical_specification"},
		{name: "unknown label", content: strings.Replace(validClassification, `"backend"`, `"blockchain"`, 1)},
		{name: "unknown alternative", content: strings.Replace(validClassification, `"design_document"`, `"poem"`, 1)},
		{name: "confidence out of range", content: strings.Replace(validClassification, "0.85", "1.85", 1)},
		{name: "missing characteristics", content: `{
  "documentType": {"primary": "other", "confidence": 0.5},
  "domain": {"primary": "general", "confidence": 0.5},
  "priority": {"primary": "low", "confidence": 0.5},
  "complexity": {"primary": "simple", "confidence": 0.5}
}`},
		{name: "bad effort", content: strings.Replace(validClassification, `"large"`, `"huge"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&stubClient{content: tt.content})
			res := engine.Classify(context.Background(), securitySpec())

			assert.Equal(t, SourceFallback, res.Source)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestFallback_Heuristics(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		docType    string
		domain     string
		priority   string
		complexity string
	}{
		{
			name:       "plain note",
			content:    "Lunch is at noon.",
			docType:    TypeOther,
			domain:     DomainGeneral,
			priority:   PriorityMedium,
			complexity: ComplexitySimple,
		},
		{
			name:       "bug in frontend",
			content:    "Frontend crash when the page loads. Urgent.",
			docType:    TypeBugReport,
			domain:     DomainFrontend,
			priority:   PriorityHigh,
			complexity: ComplexitySimple,
		},
		{
			name:       "one indicator",
			content:    "Database migration notes.",
			docType:    TypeOther,
			domain:     DomainDatabase,
			priority:   PriorityMedium,
			complexity: ComplexityModerate,
		},
		{
			name:       "two indicators",
			content:    "Mobile integration with performance budget.",
			docType:    TypeOther,
			domain:     DomainMobile,
			priority:   PriorityMedium,
			complexity: ComplexityComplex,
		},
		{
			name:       "three indicators",
			content:    "Distributed architecture must meet compliance rules.",
			docType:    TypeRequirementsSpecification,
			domain:     DomainGeneral,
			priority:   PriorityMedium,
			complexity: ComplexityEnterprise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Fallback(document.Prepare(&document.Document{ID: "d", Content: tt.content}))

			assert.Equal(t, tt.docType, res.DocumentType.Primary)
			assert.Equal(t, tt.domain, res.Domain.Primary)
			assert.Equal(t, tt.priority, res.Priority.Primary)
			assert.Equal(t, tt.complexity, res.Complexity.Primary)
		})
	}
}

func TestCharacteristicsMap(t *testing.T) {
	m := Characteristics{RequiresReview: true, CodeLanguages: []string{"Go"}, EstimatedEffort: EffortSmall}.Map()
	assert.Equal(t, true, m["requiresReview"])
	assert.Equal(t, []string{"Go"}, m["codeLanguages"])
	assert.Equal(t, EffortSmall, m["estimatedEffort"])
}
