package document

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// WordsPerMinute は読了時間の算出に使う読書速度
const WordsPerMinute = 200

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// Metrics は文書の規模を表す指標
type Metrics struct {
	WordCount            int     `json:"wordCount"`
	CharacterCount       int     `json:"characterCount"`
	LineCount            int     `json:"lineCount"`
	SectionCount         int     `json:"sectionCount"`
	ParagraphCount       int     `json:"paragraphCount"`
	ListItemCount        int     `json:"listItemCount"`
	TableCount           int     `json:"tableCount"`
	CodeBlockCount       int     `json:"codeBlockCount"`
	RequirementCount     int     `json:"requirementCount"`
	AvgWordsPerParagraph float64 `json:"avgWordsPerParagraph"`
	ReadingTimeMinutes   int     `json:"readingTimeMinutes"`
}

// Prepared は下流処理向けに整形済みの文書
type Prepared struct {
	Document *Document `json:"-"`
	Text     string    `json:"-"`
	Outline  *Outline  `json:"outline"`
	Metrics  Metrics   `json:"metrics"`
}

// Prepare は文書テキストを正規化し、構造と指標を計算する
func Prepare(doc *Document) *Prepared {
	text := Normalize(doc.Text())
	outline := ParseOutline(text)

	metrics := Metrics{
		WordCount:        len(strings.Fields(text)),
		CharacterCount:   utf8.RuneCountInString(text),
		SectionCount:     outline.SectionCount(),
		ParagraphCount:   outline.ParagraphCount(),
		ListItemCount:    outline.ListItemCount(),
		TableCount:       len(outline.Tables),
		CodeBlockCount:   len(outline.CodeBlocks),
		RequirementCount: len(doc.Requirements),
	}
	if text != "" {
		metrics.LineCount = strings.Count(text, "\n") + 1
	}
	if metrics.ParagraphCount > 0 {
		words := 0
		for _, p := range outline.Paragraphs {
			words += len(strings.Fields(p.Text))
		}
		metrics.AvgWordsPerParagraph = float64(words) / float64(metrics.ParagraphCount)
	}
	if metrics.WordCount > 0 {
		metrics.ReadingTimeMinutes = (metrics.WordCount + WordsPerMinute - 1) / WordsPerMinute
	}

	return &Prepared{
		Document: doc,
		Text:     text,
		Outline:  outline,
		Metrics:  metrics,
	}
}

// Excerpt は整形済みテキストを先頭から最大 n 文字に切り詰める
func (p *Prepared) Excerpt(n int) string {
	return Truncate(p.Text, n)
}

// Normalize は NFKC 正規化、改行コードの統一、行末空白の除去、連続空行の圧縮を行う
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Truncate は文字列をルーン単位で最大 n 文字に切り詰め、省略記号を付与する
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "... (truncated)"
}
