package routing

import (
	"fmt"

	"github.com/jinford/docroute/internal/core/classification"
)

// 文書種別から推定するワークフロー名
var workflowByType = map[string]string{
	classification.TypeRequirementsSpecification: "requirements_review",
	classification.TypeTechnicalSpecification:    "technical_review",
	classification.TypeDesignDocument:            "technical_review",
	classification.TypeAPIDocumentation:          "technical_review",
	classification.TypeBugReport:                 "bug_triage",
	classification.TypeTestPlan:                  "qa_review",
	classification.TypeUserStory:                 "backlog_grooming",
	classification.TypeProjectPlan:               "planning_review",
}

const defaultWorkflow = "standard_review"

// ドメインから決める主担当チーム
var teamByDomain = map[string]string{
	classification.DomainFrontend:       "frontend-team",
	classification.DomainBackend:        "backend-team",
	classification.DomainDatabase:       "data-platform-team",
	classification.DomainSecurity:       "security-team",
	classification.DomainMobile:         "mobile-team",
	classification.DomainInfrastructure: "platform-team",
	classification.DomainDataAnalytics:  "analytics-team",
	classification.DomainGeneral:        "general-team",
}

const expertReviewTarget = "technical-experts"

// Suggest は分類結果から直接導く推奨ルートを返す（常に承認待ち扱い）
func Suggest(cls *classification.Result) []Route {
	routes := make([]Route, 0, 3)

	workflow, ok := workflowByType[cls.DocumentType.Primary]
	if !ok {
		workflow = defaultWorkflow
	}
	params := map[string]any{
		"complexity": cls.Complexity.Primary,
		"priority":   cls.Priority.Primary,
	}
	if cls.Priority.Primary == classification.PriorityCritical || cls.Priority.Primary == classification.PriorityHigh {
		params["expedite"] = true
	}
	routes = append(routes, Route{
		Type:       ActionWorkflow,
		Target:     workflow,
		Parameters: params,
		Confidence: cls.DocumentType.Confidence,
		Origin:     OriginAI,
		Reason:     fmt.Sprintf("workflow inferred from %s document with %s complexity", cls.DocumentType.Primary, cls.Complexity.Primary),
	})

	team, ok := teamByDomain[cls.Domain.Primary]
	if !ok {
		team = teamByDomain[classification.DomainGeneral]
	}
	routes = append(routes, Route{
		Type:       ActionTeamAssignment,
		Target:     team,
		Confidence: cls.Domain.Confidence,
		Origin:     OriginAI,
		Reason:     fmt.Sprintf("primary team for %s domain", cls.Domain.Primary),
	})

	if cls.Characteristics.RequiresTechnicalExpertise {
		params := map[string]any{"domain": cls.Domain.Primary}
		if len(cls.Characteristics.CodeLanguages) > 0 {
			params["languages"] = cls.Characteristics.CodeLanguages
		}
		routes = append(routes, Route{
			Type:       ActionExpertReview,
			Target:     expertReviewTarget,
			Parameters: params,
			Confidence: cls.Complexity.Confidence,
			Origin:     OriginAI,
			Reason:     "document requires technical expertise",
		})
	}

	return routes
}
