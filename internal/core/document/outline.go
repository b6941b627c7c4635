package document

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
)

// LineKind は行の分類
type LineKind string

const (
	LineHeading   LineKind = "heading"
	LineListItem  LineKind = "list_item"
	LineTableRow  LineKind = "table_row"
	LineParagraph LineKind = "paragraph"
	LineCode      LineKind = "code"
	LineBlank     LineKind = "blank"
)

const (
	maxNumberedHeadingLen = 80
	maxCapsHeadingLen     = 60
)

var (
	markdownHeadingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	numberedHeadingPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)
	listItemPattern        = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+(.+)$`)
	numberedItemPattern    = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	tableSeparatorPattern  = regexp.MustCompile(`^\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)*\|?$`)
)

// Section は見出しと、その配下の段落
type Section struct {
	Title      string   `json:"title"`
	Level      int      `json:"level"`
	Line       int      `json:"line"`
	Paragraphs []string `json:"paragraphs,omitempty"`
	ListItems  int      `json:"listItems"`
}

// Paragraph は連続する段落行をまとめたもの
// Section は所属セクションのインデックス（見出し前の前文は -1）
type Paragraph struct {
	Text    string `json:"text"`
	Line    int    `json:"line"`
	Section int    `json:"section"`
}

// List は連続するリスト項目
type List struct {
	Items []string `json:"items"`
	Line  int      `json:"line"`
}

// Table はパイプ区切りの表
type Table struct {
	Rows    [][]string `json:"rows"`
	Columns int        `json:"columns"`
	Line    int        `json:"line"`
}

// CodeBlock はフェンス付きコードブロック
type CodeBlock struct {
	Alias    string `json:"alias,omitempty"`
	Language string `json:"language,omitempty"`
	Lines    int    `json:"lines"`
	Line     int    `json:"line"`
}

// Outline は文書の構造
type Outline struct {
	Sections   []Section   `json:"sections"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Lists      []List      `json:"lists"`
	Tables     []Table     `json:"tables"`
	CodeBlocks []CodeBlock `json:"codeBlocks"`
}

// SectionCount はセクション数を返す
func (o *Outline) SectionCount() int { return len(o.Sections) }

// ParagraphCount は段落数を返す
func (o *Outline) ParagraphCount() int { return len(o.Paragraphs) }

// ListItemCount はリスト項目の総数を返す
func (o *Outline) ListItemCount() int {
	n := 0
	for _, l := range o.Lists {
		n += len(l.Items)
	}
	return n
}

// CodeLanguages はコードブロックで検出された言語の一覧を返す（重複なし、出現順）
func (o *Outline) CodeLanguages() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, cb := range o.CodeBlocks {
		if cb.Language == "" || seen[cb.Language] {
			continue
		}
		seen[cb.Language] = true
		langs = append(langs, cb.Language)
	}
	return langs
}

// SectionTitles はセクション見出しの一覧を返す
func (o *Outline) SectionTitles() []string {
	titles := make([]string, 0, len(o.Sections))
	for _, s := range o.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

// ParseOutline はテキストを行単位で解析して Outline を構築する
// 完全な文法ではなくヒューリスティックであり、曖昧な行は段落として扱う
func ParseOutline(text string) *Outline {
	o := &Outline{}
	p := &outlineParser{out: o, section: -1}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		p.feed(i+1, line, next)
	}
	p.finish()

	return o
}

type outlineParser struct {
	out     *Outline
	section int

	paragraph []string
	paraLine  int

	list  *List
	table *Table

	code *CodeBlock
}

func (p *outlineParser) feed(lineNo int, raw, next string) {
	trimmed := strings.TrimSpace(raw)

	// コードブロック内はフェンスが閉じるまで分類しない
	if p.code != nil {
		if strings.HasPrefix(trimmed, "```") {
			p.out.CodeBlocks = append(p.out.CodeBlocks, *p.code)
			p.code = nil
			return
		}
		p.code.Lines++
		return
	}

	kind, payload := ClassifyLine(raw)
	if kind == LineCode {
		p.flush()
		alias := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		p.code = &CodeBlock{Alias: alias, Language: resolveLanguage(alias), Line: lineNo}
		return
	}

	// 連続する番号付き行は、句読点で終わらない短い行でも見出しではなくリストとする
	if kind == LineHeading {
		if item, ok := p.numberedRunItem(raw, next); ok {
			kind, payload = LineListItem, item
		}
	}

	switch kind {
	case LineBlank:
		p.flushParagraph()
		p.flushList()
		p.flushTable()
	case LineHeading:
		p.flush()
		level := headingLevel(trimmed)
		p.out.Sections = append(p.out.Sections, Section{Title: payload, Level: level, Line: lineNo})
		p.section = len(p.out.Sections) - 1
	case LineListItem:
		p.flushParagraph()
		p.flushTable()
		if p.list == nil {
			p.list = &List{Line: lineNo}
		}
		p.list.Items = append(p.list.Items, payload)
		if p.section >= 0 {
			p.out.Sections[p.section].ListItems++
		}
	case LineTableRow:
		p.flushParagraph()
		p.flushList()
		if tableSeparatorPattern.MatchString(trimmed) {
			return
		}
		cells := splitCells(trimmed)
		if p.table == nil {
			p.table = &Table{Line: lineNo}
		}
		p.table.Rows = append(p.table.Rows, cells)
		p.table.Columns = max(p.table.Columns, len(cells))
	default:
		p.flushList()
		p.flushTable()
		if len(p.paragraph) == 0 {
			p.paraLine = lineNo
		}
		p.paragraph = append(p.paragraph, trimmed)
	}
}

// numberedRunItem は raw が番号付きリストの連続の一部ならその本文を返す
func (p *outlineParser) numberedRunItem(raw, next string) (string, bool) {
	m := numberedItemPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	if p.list == nil && !numberedItemPattern.MatchString(next) {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// finish は入力末尾で開いたままの要素を確定する
// 閉じられていないコードフェンスも末尾までを1つのコードブロックとして残す
func (p *outlineParser) finish() {
	if p.code != nil {
		p.out.CodeBlocks = append(p.out.CodeBlocks, *p.code)
		p.code = nil
	}
	p.flush()
}

func (p *outlineParser) flush() {
	p.flushParagraph()
	p.flushList()
	p.flushTable()
}

func (p *outlineParser) flushParagraph() {
	if len(p.paragraph) == 0 {
		return
	}
	text := strings.Join(p.paragraph, " ")
	p.out.Paragraphs = append(p.out.Paragraphs, Paragraph{Text: text, Line: p.paraLine, Section: p.section})
	if p.section >= 0 {
		p.out.Sections[p.section].Paragraphs = append(p.out.Sections[p.section].Paragraphs, text)
	}
	p.paragraph = nil
}

func (p *outlineParser) flushList() {
	if p.list == nil {
		return
	}
	p.out.Lists = append(p.out.Lists, *p.list)
	p.list = nil
}

func (p *outlineParser) flushTable() {
	if p.table == nil {
		return
	}
	p.out.Tables = append(p.out.Tables, *p.table)
	p.table = nil
}

// ClassifyLine は1行を分類し、見出しやリスト項目の本文を返す
func ClassifyLine(raw string) (LineKind, string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return LineBlank, ""
	}
	if strings.HasPrefix(line, "```") {
		return LineCode, ""
	}

	if m := markdownHeadingPattern.FindStringSubmatch(line); m != nil {
		return LineHeading, strings.TrimSpace(m[2])
	}
	if m := numberedHeadingPattern.FindStringSubmatch(line); m != nil && isShortTitle(line, m[2]) {
		return LineHeading, strings.TrimSpace(m[2])
	}
	if isCapsHeading(line) {
		return LineHeading, line
	}
	if m := listItemPattern.FindStringSubmatch(raw); m != nil {
		return LineListItem, strings.TrimSpace(m[1])
	}
	if isTableRow(line) {
		return LineTableRow, line
	}
	return LineParagraph, line
}

func isShortTitle(line, title string) bool {
	if utf8.RuneCountInString(line) > maxNumberedHeadingLen {
		return false
	}
	// 文末が句読点の行は番号付きリストの文とみなす
	return !strings.HasSuffix(title, ".") && !strings.HasSuffix(title, ";") && !strings.HasSuffix(title, ",")
}

func isCapsHeading(line string) bool {
	if utf8.RuneCountInString(line) > maxCapsHeadingLen || strings.ContainsAny(line[:1], "-*+") || strings.HasPrefix(line, "•") {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2 && !strings.ContainsRune(line, '|')
}

func isTableRow(line string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	if tableSeparatorPattern.MatchString(line) {
		return true
	}
	return len(splitCells(line)) >= 2
}

func splitCells(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		if cell := strings.TrimSpace(part); cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

func headingLevel(line string) int {
	if m := markdownHeadingPattern.FindStringSubmatch(line); m != nil {
		return len(m[1])
	}
	if m := numberedHeadingPattern.FindStringSubmatch(line); m != nil {
		return strings.Count(m[1], ".") + 1
	}
	return 1
}

// resolveLanguage はコードフェンスの info string から言語名を解決する
func resolveLanguage(alias string) string {
	if alias == "" {
		return ""
	}
	if fields := strings.Fields(alias); len(fields) > 0 {
		alias = fields[0]
	}
	if lang, ok := enry.GetLanguageByAlias(alias); ok {
		return lang
	}
	return ""
}
