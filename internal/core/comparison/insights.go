package comparison

import "fmt"

// リスク判定の閾値
const (
	mediumRiskSemanticBelow   = 0.8
	mediumRiskChangeRatioOver = 0.2
	highRiskSemanticBelow     = 0.5
	highRiskChangeRatioOver   = 0.5
)

// OverallSimilarity は比較レポート全体の類似度
// 意味比較があればその総合値、なければ構造と語彙の平均を使う
func OverallSimilarity(structure StructuralComparison, semantic *SemanticResult) float64 {
	if semantic != nil {
		return semantic.OverallSimilarity
	}
	return (structure.StructuralSimilarity + structure.LexicalSimilarity) / 2
}

// AssessRisk は意味類似度と要件変更率からリスクを判定する
func AssessRisk(semanticSimilarity, changeRatio float64) RiskLevel {
	switch {
	case semanticSimilarity < highRiskSemanticBelow && changeRatio > highRiskChangeRatioOver:
		return RiskHigh
	case semanticSimilarity < mediumRiskSemanticBelow || changeRatio > mediumRiskChangeRatioOver:
		return RiskMedium
	default:
		return RiskLow
	}
}

// GenerateInsights は各ステージの結果から所見をまとめる
// semantic / requirements はステージを省略した場合 nil
func GenerateInsights(structure StructuralComparison, semantic *SemanticResult, requirements *RequirementsDiff) Insights {
	overall := OverallSimilarity(structure, semantic)

	changeRatio := 0.0
	if requirements != nil {
		changeRatio = requirements.ChangeRatio
	}

	ins := Insights{
		KeyFindings:     []string{},
		Recommendations: []string{},
		RiskLevel:       AssessRisk(overall, changeRatio),
	}

	relationship := DeriveRelationship(overall)
	if semantic != nil {
		relationship = semantic.RelationshipType
	}
	ins.Summary = fmt.Sprintf("Documents are %s (overall similarity %.0f%%, risk %s).",
		describeRelationship(relationship), overall*100, ins.RiskLevel)

	if structure.SectionDiff != 0 {
		ins.KeyFindings = append(ins.KeyFindings,
			fmt.Sprintf("Section count changed by %+d", structure.SectionDiff))
	}
	if n := len(structure.TargetOnlySections); n > 0 {
		ins.KeyFindings = append(ins.KeyFindings, fmt.Sprintf("%d new section(s) in target", n))
	}
	if n := len(structure.SourceOnlySections); n > 0 {
		ins.KeyFindings = append(ins.KeyFindings, fmt.Sprintf("%d section(s) missing from target", n))
	}

	if semantic != nil {
		ins.KeyFindings = append(ins.KeyFindings, semantic.KeyDifferences...)
		ins.Recommendations = append(ins.Recommendations, semantic.RecommendedActions...)
		if semantic.Source == SourceFallback {
			ins.KeyFindings = append(ins.KeyFindings, "Semantic analysis used the deterministic fallback")
		}
	}

	if requirements != nil {
		ins.KeyFindings = append(ins.KeyFindings, fmt.Sprintf(
			"Requirements: %d exact, %d similar, %d modified, %d removed, %d added",
			requirements.Exact, requirements.Similar, requirements.Modified,
			len(requirements.Removed), len(requirements.Added),
		))
		if len(requirements.Removed) > 0 {
			ins.Recommendations = append(ins.Recommendations, "Confirm that removed requirements are intentionally dropped")
		}
		if requirements.Modified > 0 {
			ins.Recommendations = append(ins.Recommendations, "Review modified requirements with stakeholders")
		}
	}

	switch ins.RiskLevel {
	case RiskHigh:
		ins.Recommendations = append(ins.Recommendations, "Treat the target as a substantial rewrite and schedule a full review")
	case RiskMedium:
		ins.Recommendations = append(ins.Recommendations, "Review the changed areas before approval")
	}

	return ins
}

func describeRelationship(r RelationshipType) string {
	switch r {
	case RelationshipDuplicate:
		return "duplicates"
	case RelationshipHighlySimilar:
		return "highly similar"
	case RelationshipRelated:
		return "related"
	case RelationshipSomewhatRelated:
		return "somewhat related"
	default:
		return "unrelated"
	}
}
