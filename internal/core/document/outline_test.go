package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `# Login Service

The login service authenticates users.
It issues session tokens.

## 1. Requirements

1. The system shall lock accounts after five failed attempts.
2. The system must log every login.

| Field | Type | Required |
|-------|------|----------|
| email | string | yes |

SECURITY CONSIDERATIONS

Tokens expire after one hour.

` + "```go" + `
func main() {}
` + "```" + `
`

func TestParseOutline(t *testing.T) {
	o := ParseOutline(sampleSpec)

	require.Len(t, o.Sections, 3)
	assert.Equal(t, "Login Service", o.Sections[0].Title)
	assert.Equal(t, 1, o.Sections[0].Level)
	assert.Equal(t, "1. Requirements", o.Sections[1].Title)
	assert.Equal(t, 2, o.Sections[1].Level)
	assert.Equal(t, "SECURITY CONSIDERATIONS", o.Sections[2].Title)

	// 連続する段落行は1段落にまとめられ、直前の見出しに紐づく
	require.Len(t, o.Paragraphs, 2)
	assert.Equal(t, "The login service authenticates users. It issues session tokens.", o.Paragraphs[0].Text)
	assert.Equal(t, 0, o.Paragraphs[0].Section)
	assert.Equal(t, 2, o.Paragraphs[1].Section)
	assert.Len(t, o.Sections[0].Paragraphs, 1)

	require.Len(t, o.Lists, 1)
	assert.Len(t, o.Lists[0].Items, 2)
	assert.Equal(t, 2, o.Sections[1].ListItems)

	require.Len(t, o.Tables, 1)
	assert.Len(t, o.Tables[0].Rows, 2) // 区切り行は除外
	assert.Equal(t, 3, o.Tables[0].Columns)

	require.Len(t, o.CodeBlocks, 1)
	assert.Equal(t, "Go", o.CodeBlocks[0].Language)
	assert.Equal(t, 1, o.CodeBlocks[0].Lines)
	assert.Equal(t, []string{"Go"}, o.CodeLanguages())
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		kind LineKind
	}{
		{"## Overview", LineHeading},
		{"3.1 Data Model", LineHeading},
		{"INTRODUCTION", LineHeading},
		{"3. The service shall retry failed calls.", LineListItem},
		{"- bullet item", LineListItem},
		{"• unicode bullet", LineListItem},
		{"2) second option", LineListItem},
		{"- ALL CAPS BULLET", LineListItem},
		{"a | b", LineTableRow},
		{"| only one |", LineParagraph},
		{"A normal sentence with Mixed case.", LineParagraph},
		{"   ", LineBlank},
		{"```python", LineCode},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kind, _ := ClassifyLine(tt.line)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestParseOutline_PreambleParagraph(t *testing.T) {
	o := ParseOutline("just some text\n\nmore text")

	assert.Empty(t, o.Sections)
	require.Len(t, o.Paragraphs, 2)
	assert.Equal(t, -1, o.Paragraphs[0].Section)
}

func TestParseOutline_UnclosedFenceRunsToEnd(t *testing.T) {
	o := ParseOutline("intro\n```python\nimport os\nprint(os.getcwd())")
	assert.Len(t, o.Paragraphs, 1)
	require.Len(t, o.CodeBlocks, 1)
	assert.Equal(t, 2, o.CodeBlocks[0].Lines)
	assert.Equal(t, 2, o.CodeBlocks[0].Line)
	assert.Equal(t, []string{"Python"}, o.CodeLanguages())
}

func TestParseOutline_NumberedRunIsList(t *testing.T) {
	text := "## Setup\n1. Install the package\n2. Run the server\n3. Open the browser\n\n2. Usage\nCall the endpoint."
	o := ParseOutline(text)

	assert.Equal(t, []string{"Setup", "Usage"}, o.SectionTitles())
	require.Len(t, o.Lists, 1)
	assert.Equal(t, []string{"Install the package", "Run the server", "Open the browser"}, o.Lists[0].Items)
	assert.Equal(t, 3, o.Sections[0].ListItems)
	require.Len(t, o.Paragraphs, 1)
	assert.Equal(t, 1, o.Paragraphs[0].Section)

	// 単独の番号付き行は従来どおり見出し
	single := ParseOutline("1. Introduction\nThis document describes the API.")
	assert.Equal(t, []string{"Introduction"}, single.SectionTitles())
	assert.Empty(t, single.Lists)
}

func TestPrepare(t *testing.T) {
	doc := &Document{
		ID:      "doc-1",
		Title:   "Login",
		Content: "# Title\r\n\r\n\r\n\r\nfirst paragraph words here   \r\n",
		Requirements: []Requirement{
			{ID: "r1", Description: "shall log in", Type: RequirementFunctional},
		},
	}

	p := Prepare(doc)

	assert.Equal(t, "# Title\n\nfirst paragraph words here", p.Text)
	assert.Equal(t, 1, p.Metrics.SectionCount)
	assert.Equal(t, 1, p.Metrics.ParagraphCount)
	assert.Equal(t, 6, p.Metrics.WordCount)
	assert.Equal(t, 3, p.Metrics.LineCount)
	assert.Equal(t, 1, p.Metrics.RequirementCount)
	assert.Equal(t, 1, p.Metrics.ReadingTimeMinutes)
	assert.InDelta(t, 4.0, p.Metrics.AvgWordsPerParagraph, 1e-9)
}

func TestPrepare_UsesProcessedText(t *testing.T) {
	doc := &Document{Content: "raw", ProcessedText: "processed"}
	assert.Equal(t, "processed", Prepare(doc).Text)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab... (truncated)", Truncate("abc", 2))
	assert.Equal(t, "日本... (truncated)", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))

	long := strings.Repeat("x", 5000)
	p := &Prepared{Text: long}
	assert.True(t, strings.HasPrefix(p.Excerpt(3000), strings.Repeat("x", 3000)))
}
