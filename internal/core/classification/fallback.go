package classification

import (
	"fmt"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/similarity"
)

var modalVerbs = []string{"shall", "must"}

// 法助動詞がない場合に種別を推定するキーワード（先に一致したものを採用）
var typeKeywords = []struct {
	label    string
	keywords []string
}{
	{TypeBugReport, []string{"bug", "crash", "defect", "regression"}},
	{TypeTestPlan, []string{"testing", "qa"}},
	{TypeAPIDocumentation, []string{"endpoint", "endpoints", "api"}},
	{TypeMeetingNotes, []string{"meeting", "agenda", "minutes"}},
	{TypeUserStory, []string{"story", "persona"}},
	{TypeDesignDocument, []string{"design", "architecture"}},
}

// ドメインキーワード（先に一致したものを採用）
var domainKeywords = []struct {
	label    string
	keywords []string
}{
	{DomainFrontend, []string{"frontend"}},
	{DomainDatabase, []string{"database"}},
	{DomainSecurity, []string{"security"}},
	{DomainMobile, []string{"mobile"}},
}

var highPriorityKeywords = []string{"critical", "urgent", "security"}

var complexityIndicators = []string{
	"integration", "distributed", "scalability", "microservices", "migration",
	"compliance", "concurrency", "architecture", "performance", "enterprise",
}

// Fallback はキーワード走査による決定論的な分類を返す
// 全分類軸の信頼度は FallbackConfidence に固定する
func Fallback(prepared *document.Prepared) Result {
	doc := prepared.Document
	tokens := similarity.TokenSet(doc.Title + "\n" + prepared.Text)

	hasModal := containsAny(tokens, modalVerbs)

	docType := TypeOther
	if hasModal {
		docType = TypeRequirementsSpecification
	} else {
		for _, tk := range typeKeywords {
			if containsAny(tokens, tk.keywords) {
				docType = tk.label
				break
			}
		}
	}

	domain := DomainGeneral
	for _, dk := range domainKeywords {
		if containsAny(tokens, dk.keywords) {
			domain = dk.label
			break
		}
	}

	priority := PriorityMedium
	if containsAny(tokens, highPriorityKeywords) {
		priority = PriorityHigh
	}

	complexity := complexityFromIndicators(countPresent(tokens, complexityIndicators))

	chars := deterministicCharacteristics(prepared)
	chars.HasRequirements = chars.HasRequirements || hasModal
	chars.RequiresReview = priority == PriorityHigh || isDemanding(complexity)
	chars.RequiresTechnicalExpertise = chars.HasCodeBlocks || isDemanding(complexity)

	result := Result{
		DocumentID:      doc.ID,
		DocumentType:    fixed(docType),
		Domain:          fixed(domain),
		Priority:        fixed(priority),
		Complexity:      fixed(complexity),
		Characteristics: chars,
		Source:          SourceFallback,
	}
	result.RoutingRecommendations = fallbackRecommendations(result)
	return result
}

func complexityFromIndicators(n int) string {
	switch {
	case n >= 3:
		return ComplexityEnterprise
	case n >= 2:
		return ComplexityComplex
	case n == 0:
		return ComplexitySimple
	default:
		return ComplexityModerate
	}
}

// deterministicCharacteristics は文書から直接分かる特徴を計算する（AI 経路でも使う）
func deterministicCharacteristics(prepared *document.Prepared) Characteristics {
	langs := prepared.Outline.CodeLanguages()
	if langs == nil {
		langs = []string{}
	}
	return Characteristics{
		HasRequirements: len(prepared.Document.Requirements) > 0,
		HasCodeBlocks:   len(prepared.Outline.CodeBlocks) > 0,
		CodeLanguages:   langs,
		EstimatedEffort: effortFromWords(prepared.Metrics.WordCount),
	}
}

func effortFromWords(words int) string {
	switch {
	case words < 500:
		return EffortSmall
	case words < 2000:
		return EffortMedium
	case words < 5000:
		return EffortLarge
	default:
		return EffortXLarge
	}
}

func fallbackRecommendations(r Result) []string {
	recs := []string{}
	if r.Domain.Primary != DomainGeneral {
		recs = append(recs, fmt.Sprintf("Assign to the %s team", r.Domain.Primary))
	}
	if r.Characteristics.RequiresReview {
		recs = append(recs, "Request a manual review")
	}
	if r.Characteristics.RequiresTechnicalExpertise {
		recs = append(recs, "Involve a technical expert")
	}
	return recs
}

func isDemanding(complexity string) bool {
	return complexity == ComplexityComplex || complexity == ComplexityEnterprise
}

func fixed(label string) Assignment {
	return Assignment{Primary: label, Confidence: FallbackConfidence, Alternatives: []Alternative{}}
}

func containsAny(tokens map[string]struct{}, words []string) bool {
	for _, w := range words {
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

func countPresent(tokens map[string]struct{}, words []string) int {
	n := 0
	for _, w := range words {
		if _, ok := tokens[w]; ok {
			n++
		}
	}
	return n
}
