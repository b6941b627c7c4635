package comparison

import (
	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/similarity"
)

// DiffRequirements はソース要件ごとにターゲット要件から最良マッチを貪欲に選び、差分を返す
//
// exact は語彙類似度が ExactMatchThreshold 以上かつ正規化後のトークン集合が一致する場合に限る。
// 閾値を超えても語が一つでも違えば similar として扱う。
// どのソース要件からも最良マッチ（modified 以上）として選ばれなかったターゲット要件は added になる。
func DiffRequirements(source, target []document.Requirement) RequirementsDiff {
	diff := RequirementsDiff{
		Matches: []RequirementMatch{},
		Removed: []document.Requirement{},
		Added:   []document.Requirement{},
	}

	targetSets := make([]map[string]struct{}, len(target))
	for i, t := range target {
		targetSets[i] = similarity.TokenSet(t.Description)
	}

	matched := make([]bool, len(target))
	scoreSum := 0.0

	for _, s := range source {
		sourceSet := similarity.TokenSet(s.Description)

		best, bestScore := -1, 0.0
		for i, t := range target {
			score := similarity.Lexical(s.Description, t.Description)
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		scoreSum += bestScore

		if best < 0 || bestScore < ModifiedMatchThreshold {
			diff.Removed = append(diff.Removed, s)
			continue
		}

		kind := classifyMatch(bestScore, sameTokens(sourceSet, targetSets[best]))
		switch kind {
		case MatchExact:
			diff.Exact++
		case MatchSimilar:
			diff.Similar++
		case MatchModified:
			diff.Modified++
		}
		matched[best] = true

		diff.Matches = append(diff.Matches, RequirementMatch{
			SourceID:   s.ID,
			TargetID:   target[best].ID,
			Similarity: bestScore,
			Kind:       kind,
			Source:     s.Description,
			Target:     target[best].Description,
		})
	}

	for i, t := range target {
		if !matched[i] {
			diff.Added = append(diff.Added, t)
		}
	}

	changes := len(diff.Added) + len(diff.Removed) + diff.Modified
	diff.ChangeRatio = float64(changes) / float64(max(1, len(source)))

	switch {
	case len(source) == 0 && len(target) == 0:
		diff.Similarity = 1
	case len(source) == 0:
		diff.Similarity = 0
	default:
		diff.Similarity = similarity.Clamp01(scoreSum / float64(len(source)))
	}

	return diff
}

func classifyMatch(score float64, identical bool) MatchKind {
	switch {
	case score >= ExactMatchThreshold && identical:
		return MatchExact
	case score >= SimilarMatchThreshold:
		return MatchSimilar
	default:
		return MatchModified
	}
}

func sameTokens(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
