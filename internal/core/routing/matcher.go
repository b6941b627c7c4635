package routing

import (
	"fmt"

	"github.com/jinford/docroute/internal/core/classification"
)

// スコアの基本重み（経験的に調整された固定値）
const (
	ScoreWeightType       = 0.3
	ScoreWeightDomain     = 0.3
	ScoreWeightPriority   = 0.2
	ScoreWeightComplexity = 0.2

	// ExactMatchBonus はルールが種別・ドメインを明示して一致した場合の加点
	ExactMatchBonus = 0.1
)

// Match はルール条件が分類結果に一致するかを返す
// 一致しない場合は理由を返す
func Match(rule *Rule, cls *classification.Result) (bool, string) {
	c := rule.Conditions

	fields := []struct {
		name string
		want string
		got  string
	}{
		{"documentType", c.DocumentType, cls.DocumentType.Primary},
		{"domain", c.Domain, cls.Domain.Primary},
		{"priority", c.Priority, cls.Priority.Primary},
		{"complexity", c.Complexity, cls.Complexity.Primary},
	}
	for _, f := range fields {
		if f.want != "" && f.want != f.got {
			return false, fmt.Sprintf("%s %q does not match %q", f.name, f.got, f.want)
		}
	}

	if len(c.Characteristics) > 0 {
		actual := cls.Characteristics.Map()
		for key, want := range c.Characteristics {
			if !characteristicMatches(actual[key], want) {
				return false, fmt.Sprintf("characteristic %s does not match %v", key, want)
			}
		}
	}

	if c.MinConfidence > cls.DocumentType.Confidence {
		return false, fmt.Sprintf("minConfidence %.2f exceeds documentType confidence %.2f",
			c.MinConfidence, cls.DocumentType.Confidence)
	}

	return true, ""
}

// characteristicMatches は特徴値とルールの期待値を比較する
// リスト値（codeLanguages）は期待値を含めば一致とする
func characteristicMatches(actual, want any) bool {
	switch a := actual.(type) {
	case bool:
		w, ok := want.(bool)
		return ok && a == w
	case string:
		w, ok := want.(string)
		return ok && a == w
	case []string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		for _, v := range a {
			if v == w {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Score はルールのスコアを計算する（1.0 で頭打ち）
func Score(rule *Rule, cls *classification.Result) float64 {
	score := ScoreWeightType*cls.DocumentType.Confidence +
		ScoreWeightDomain*cls.Domain.Confidence +
		ScoreWeightPriority*cls.Priority.Confidence +
		ScoreWeightComplexity*cls.Complexity.Confidence

	if rule.Conditions.DocumentType != "" && rule.Conditions.DocumentType == cls.DocumentType.Primary {
		score += ExactMatchBonus
	}
	if rule.Conditions.Domain != "" && rule.Conditions.Domain == cls.Domain.Primary {
		score += ExactMatchBonus
	}

	score *= rule.Priority.Weight()
	if score > 1 {
		score = 1
	}
	return score
}
