package comparison

import (
	"github.com/jinford/docroute/internal/core/document"
	"github.com/samber/mo"
)

// RelationshipType は文書ペアの関係を表すラベル
type RelationshipType string

const (
	RelationshipDuplicate       RelationshipType = "duplicate"
	RelationshipHighlySimilar   RelationshipType = "highly_similar"
	RelationshipRelated         RelationshipType = "related"
	RelationshipSomewhatRelated RelationshipType = "somewhat_related"
	RelationshipUnrelated       RelationshipType = "unrelated"
)

// 関係ラベルを導出するコサイン類似度の閾値
const (
	DuplicateThreshold       = 0.9
	HighlySimilarThreshold   = 0.8
	RelatedThreshold         = 0.7
	SomewhatRelatedThreshold = 0.5
)

// 信頼度スコアのブレンド重み（経験的に調整された固定値）
const (
	ConfidenceWeightCosine     = 0.3
	ConfidenceWeightOverall    = 0.4
	ConfidenceWeightStructural = 0.2
	ConfidenceWeightConceptual = 0.1
)

// FallbackPlaceholderScore はフォールバック時に AI 固有の指標へ入れる値
const FallbackPlaceholderScore = 0.5

// DefaultExcerptChars はプロンプトに含める本文抜粋の上限文字数（片側）
const DefaultExcerptChars = 3000

// ResultSource は比較結果の出どころ
type ResultSource string

const (
	SourceAI        ResultSource = "ai"
	SourceFallback  ResultSource = "fallback"
	SourceIdentical ResultSource = "identical"
)

// SimilarityBasis はフォールバック類似度の計算元
type SimilarityBasis string

const (
	BasisEmbedding SimilarityBasis = "embedding"
	BasisLexical   SimilarityBasis = "lexical"
)

// DeriveRelationship はコサイン類似度から関係ラベルを導出する
func DeriveRelationship(cosine float64) RelationshipType {
	switch {
	case cosine >= DuplicateThreshold:
		return RelationshipDuplicate
	case cosine >= HighlySimilarThreshold:
		return RelationshipHighlySimilar
	case cosine >= RelatedThreshold:
		return RelationshipRelated
	case cosine >= SomewhatRelatedThreshold:
		return RelationshipSomewhatRelated
	default:
		return RelationshipUnrelated
	}
}

// BlendConfidence は固定重みで信頼度スコアを計算する
func BlendConfidence(cosine, overall, structural, conceptual float64) float64 {
	return ConfidenceWeightCosine*cosine +
		ConfidenceWeightOverall*overall +
		ConfidenceWeightStructural*structural +
		ConfidenceWeightConceptual*conceptual
}

// SemanticResult はペア比較の結果
// Source が fallback の場合、Error に失敗理由が入る
type SemanticResult struct {
	OverallSimilarity      float64          `json:"overallSimilarity"`
	StructuralSimilarity   float64          `json:"structuralSimilarity"`
	ConceptualSimilarity   float64          `json:"conceptualSimilarity"`
	TopicOverlap           float64          `json:"topicOverlap"`
	RequirementsSimilarity float64          `json:"requirementsSimilarity"`
	TerminologyConsistency float64          `json:"terminologyConsistency"`
	RelationshipType       RelationshipType `json:"relationshipType"`
	KeyDifferences         []string         `json:"keyDifferences"`
	RecommendedActions     []string         `json:"recommendedActions"`
	SharedConcepts         []string         `json:"sharedConcepts"`
	UniqueToSource         []string         `json:"uniqueToSource"`
	UniqueToTarget         []string         `json:"uniqueToTarget"`
	CosineSimilarity       float64          `json:"cosineSimilarity"`
	Basis                  SimilarityBasis  `json:"basis"`
	Confidence             float64          `json:"confidence"`
	Source                 ResultSource     `json:"source"`
	Error                  string           `json:"error,omitempty"`
}

// MatchKind は要件マッチの分類
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchSimilar  MatchKind = "similar"
	MatchModified MatchKind = "modified"
)

// 要件マッチの閾値（語彙類似度）
const (
	ExactMatchThreshold    = 0.9
	SimilarMatchThreshold  = 0.7
	ModifiedMatchThreshold = 0.5
)

// RequirementMatch はソース要件とその最良マッチ
type RequirementMatch struct {
	SourceID   string    `json:"sourceId"`
	TargetID   string    `json:"targetId"`
	Similarity float64   `json:"similarity"`
	Kind       MatchKind `json:"kind"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
}

// RequirementsDiff は要件リストの差分
type RequirementsDiff struct {
	Matches     []RequirementMatch     `json:"matches"`
	Exact       int                    `json:"exact"`
	Similar     int                    `json:"similar"`
	Modified    int                    `json:"modified"`
	Removed     []document.Requirement `json:"removed"`
	Added       []document.Requirement `json:"added"`
	ChangeRatio float64                `json:"changeRatio"`
	Similarity  float64                `json:"similarity"`
}

// StructuralComparison は構造面の比較結果
type StructuralComparison struct {
	Source               document.Metrics `json:"source"`
	Target               document.Metrics `json:"target"`
	SectionDiff          int              `json:"sectionDiff"`
	ParagraphDiff        int              `json:"paragraphDiff"`
	WordCountDiff        int              `json:"wordCountDiff"`
	StructuralSimilarity float64          `json:"structuralSimilarity"`
	LexicalSimilarity    float64          `json:"lexicalSimilarity"`
	CommonSections       []string         `json:"commonSections"`
	SourceOnlySections   []string         `json:"sourceOnlySections"`
	TargetOnlySections   []string         `json:"targetOnlySections"`
}

// RiskLevel は変更リスクの段階
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Insights は比較結果から合成した所見
type Insights struct {
	Summary         string    `json:"summary"`
	KeyFindings     []string  `json:"keyFindings"`
	Recommendations []string  `json:"recommendations"`
	RiskLevel       RiskLevel `json:"riskLevel"`
}

// Options は比較パイプラインのオプション
type Options struct {
	// IncludeRequirements は要件差分を計算するか（未指定なら true）
	IncludeRequirements mo.Option[bool]
	// IncludeSemantic は意味比較を行うか（未指定なら true）
	IncludeSemantic mo.Option[bool]
	// Async はバックグラウンドで実行し、processing 状態の記録をすぐに返す
	Async     bool
	RequestID string
}

func (o Options) includeRequirements() bool { return o.IncludeRequirements.OrElse(true) }
func (o Options) includeSemantic() bool     { return o.IncludeSemantic.OrElse(true) }
