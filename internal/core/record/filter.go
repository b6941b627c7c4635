package record

import (
	"github.com/jinford/docroute/internal/core/errs"
	"github.com/samber/mo"
)

// ParseFilter は文字列の条件から Filter を組み立てる
// 空文字列の条件は指定なしとして扱う
func ParseFilter(kind, documentID, status string, limit int) (Filter, error) {
	f := Filter{Limit: limit}
	if limit < 0 || limit > MaxListLimit {
		return Filter{}, errs.InvalidInput("record.ParseFilter", "limit must be between 0 and %d", MaxListLimit)
	}

	switch k := Kind(kind); k {
	case "":
	case KindClassification, KindComparison, KindRouting, KindClustering:
		f.Kind = mo.Some(k)
	default:
		return Filter{}, errs.InvalidInput("record.ParseFilter", "unknown record kind %q", kind)
	}

	switch s := Status(status); s {
	case "":
	case StatusProcessing, StatusCompleted, StatusFailed:
		f.Status = mo.Some(s)
	default:
		return Filter{}, errs.InvalidInput("record.ParseFilter", "unknown record status %q", status)
	}

	if documentID != "" {
		f.DocumentID = mo.Some(documentID)
	}
	return f, nil
}
