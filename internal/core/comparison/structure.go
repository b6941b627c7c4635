package comparison

import (
	"strings"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/jinford/docroute/internal/core/similarity"
)

// CompareStructure は2文書の構造指標と全文の語彙類似度を比較する
func CompareStructure(source, target *document.Prepared) StructuralComparison {
	common, sourceOnly, targetOnly := diffSections(source.Outline.SectionTitles(), target.Outline.SectionTitles())

	return StructuralComparison{
		Source:               source.Metrics,
		Target:               target.Metrics,
		SectionDiff:          target.Metrics.SectionCount - source.Metrics.SectionCount,
		ParagraphDiff:        target.Metrics.ParagraphCount - source.Metrics.ParagraphCount,
		WordCountDiff:        target.Metrics.WordCount - source.Metrics.WordCount,
		StructuralSimilarity: similarity.Structural(source.Outline, target.Outline),
		LexicalSimilarity:    similarity.Lexical(source.Text, target.Text),
		CommonSections:       common,
		SourceOnlySections:   sourceOnly,
		TargetOnlySections:   targetOnly,
	}
}

// diffSections は見出しを大文字小文字・記号を無視して突き合わせる
// 返す見出しは元の表記（ソース側を優先）
func diffSections(source, target []string) (common, sourceOnly, targetOnly []string) {
	common, sourceOnly, targetOnly = []string{}, []string{}, []string{}

	targetKeys := make(map[string]bool, len(target))
	for _, t := range target {
		targetKeys[sectionKey(t)] = true
	}

	seen := make(map[string]bool, len(source))
	for _, s := range source {
		key := sectionKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		if targetKeys[key] {
			common = append(common, s)
		} else {
			sourceOnly = append(sourceOnly, s)
		}
	}

	for _, t := range target {
		key := sectionKey(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		targetOnly = append(targetOnly, t)
	}

	return common, sourceOnly, targetOnly
}

func sectionKey(title string) string {
	return strings.Join(similarity.Tokens(title), " ")
}
