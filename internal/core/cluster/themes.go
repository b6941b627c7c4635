package cluster

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/similarity"
)

const (
	// ThemeCount はクラスタごとに返すテーマ語の数
	ThemeCount = 5

	// MinThemeWordLength はテーマ語とみなす最小文字数
	MinThemeWordLength = 4

	labelThemeCount = 3
	unknownType     = "unknown"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		about above after again against also among another because been before being below
		between both could does doing down during each either every from further have having
		here hers herself himself however into itself just more most must never none only other
		ours ourselves over same shall should some such than that their theirs them themselves
		then there these they this those through under until upon very was were what when where
		which while whom whose will with within without would your yours yourself yourselves
		document documents section sections page pages using used use`) {
		stopwords[w] = struct{}{}
	}
}

// Themes は文書群のタイトルと本文から頻出語を数え、上位 n 語を返す
// 4文字未満の語、ストップワード、数字のみの語は除外する
func Themes(docs []*document.Document, n int) []string {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, tok := range similarity.Tokens(doc.Title + "\n" + doc.Text()) {
			if !isThemeWord(tok) {
				continue
			}
			counts[tok]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

func isThemeWord(tok string) bool {
	if utf8.RuneCountInString(tok) < MinThemeWordLength {
		return false
	}
	if _, stop := stopwords[tok]; stop {
		return false
	}
	return strings.IndexFunc(tok, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}

// DominantType は最も多い文書種別を返す（同数なら辞書順）
func DominantType(docs []*document.Document) string {
	counts := make(map[string]int)
	for _, doc := range docs {
		t := doc.Type
		if t == "" {
			t = unknownType
		}
		counts[t]++
	}

	best, bestCount := unknownType, 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	return best
}

// Label はクラスタの表示名を組み立てる（"<種別>: 語1, 語2, 語3"）
func Label(dominantType string, themes []string) string {
	if len(themes) == 0 {
		return dominantType
	}
	return fmt.Sprintf("%s: %s", dominantType, strings.Join(themes[:min(labelThemeCount, len(themes))], ", "))
}
