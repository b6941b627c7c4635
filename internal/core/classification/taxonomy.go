package classification

// 文書種別
const (
	TypeRequirementsSpecification = "requirements_specification"
	TypeTechnicalSpecification    = "technical_specification"
	TypeDesignDocument            = "design_document"
	TypeUserStory                 = "user_story"
	TypeBugReport                 = "bug_report"
	TypeTestPlan                  = "test_plan"
	TypeAPIDocumentation          = "api_documentation"
	TypeUserManual                = "user_manual"
	TypeProjectPlan               = "project_plan"
	TypeMeetingNotes              = "meeting_notes"
	TypeOther                     = "other"
)

// ドメイン
const (
	DomainFrontend       = "frontend"
	DomainBackend        = "backend"
	DomainDatabase       = "database"
	DomainSecurity       = "security"
	DomainMobile         = "mobile"
	DomainInfrastructure = "infrastructure"
	DomainDataAnalytics  = "data_analytics"
	DomainGeneral        = "general"
)

// 優先度
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// 複雑度
const (
	ComplexitySimple     = "simple"
	ComplexityModerate   = "moderate"
	ComplexityComplex    = "complex"
	ComplexityEnterprise = "enterprise"
)

// 見積もり工数
const (
	EffortSmall  = "small"
	EffortMedium = "medium"
	EffortLarge  = "large"
	EffortXLarge = "xlarge"
)

// Category は分類の軸
type Category string

const (
	CategoryDocumentType Category = "documentType"
	CategoryDomain       Category = "domain"
	CategoryPriority     Category = "priority"
	CategoryComplexity   Category = "complexity"
)

// Taxonomy は分類軸ごとの許容ラベル（プロンプトに載せる順序を保持する）
var Taxonomy = map[Category][]string{
	CategoryDocumentType: {
		TypeRequirementsSpecification, TypeTechnicalSpecification, TypeDesignDocument,
		TypeUserStory, TypeBugReport, TypeTestPlan, TypeAPIDocumentation,
		TypeUserManual, TypeProjectPlan, TypeMeetingNotes, TypeOther,
	},
	CategoryDomain: {
		DomainFrontend, DomainBackend, DomainDatabase, DomainSecurity,
		DomainMobile, DomainInfrastructure, DomainDataAnalytics, DomainGeneral,
	},
	CategoryPriority: {
		PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow,
	},
	CategoryComplexity: {
		ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityEnterprise,
	},
}

// Categories はプロンプトと検証で使う分類軸の順序
var Categories = []Category{CategoryDocumentType, CategoryDomain, CategoryPriority, CategoryComplexity}

// IsValid はラベルが分類軸の許容値かどうかを返す
func IsValid(category Category, label string) bool {
	for _, l := range Taxonomy[category] {
		if l == label {
			return true
		}
	}
	return false
}
