// Package similarity は外部呼び出しを伴わない類似度計算を提供する
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/jinford/docroute/internal/core/errs"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Outline は構造類似度の計算に必要な文書構造の要約
type Outline interface {
	SectionCount() int
	ParagraphCount() int
}

// Cosine はベクトル間のコサイン類似度を返す（範囲 [-1, 1]）
// 長さが異なるベクトルはエラーとする
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidInput("similarity.Cosine", "vector length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errs.InvalidInput("similarity.Cosine", "empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮動小数点誤差で範囲外になることがあるため丸める
	return math.Max(-1, math.Min(1, sim)), nil
}

// Euclidean はベクトル間のユークリッド距離を返す
func Euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidInput("similarity.Euclidean", "vector length mismatch: %d != %d", len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Lexical は大文字小文字を区別しないトークン集合の Jaccard 係数を返す
// 両方とも空の場合は慣例として 1.0、片方のみ空の場合は 0.0 を返す
func Lexical(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// Structural はセクション数・段落数の一致率の平均を返す
func Structural(a, b Outline) float64 {
	sections := countRatio(a.SectionCount(), b.SectionCount())
	paragraphs := countRatio(a.ParagraphCount(), b.ParagraphCount())
	return (sections + paragraphs) / 2
}

func countRatio(x, y int) float64 {
	lo, hi := x, y
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		// どちらも0件なら一致とみなす
		return 1.0
	}
	return float64(lo) / float64(max(1, hi))
}

// Tokens は NFKC 正規化と case folding を行った上で英数字の連続をトークンとして返す
func Tokens(text string) []string {
	// Caser は goroutine 間で共有できないため呼び出しごとに生成する
	normalized := cases.Fold().String(norm.NFKC.String(text))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet はトークンの集合を返す
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ValidateScore はスコアが [0, 1] の範囲内であることを検証する
func ValidateScore(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errs.InvalidInput("similarity.ValidateScore", "%s out of range [0,1]: %v", name, v)
	}
	return nil
}

// Clamp01 はスコアを [0, 1] に丸める
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
