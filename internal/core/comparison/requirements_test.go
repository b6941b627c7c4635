package comparison

import (
	"testing"

	"github.com/jinford/docroute/internal/core/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(id, desc string) document.Requirement {
	return document.Requirement{ID: id, Description: desc, Type: document.RequirementFunctional}
}

func TestDiffRequirements_Scenario(t *testing.T) {
	a := "The system shall allow administrators to export monthly billing reports in PDF format for finance"
	b := "Passwords must contain at least twelve characters"
	c := "Audit logs are retained seven years"
	d := "Users can reset credentials via an emailed link"

	source := []document.Requirement{req("A", a), req("B", b), req("C", c)}
	target := []document.Requirement{req("A2", a+" quickly"), req("B", b), req("D", d)}

	diff := DiffRequirements(source, target)

	assert.Equal(t, 1, diff.Exact)
	assert.Equal(t, 1, diff.Similar)
	assert.Equal(t, 0, diff.Modified)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "C", diff.Removed[0].ID)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "D", diff.Added[0].ID)

	require.Len(t, diff.Matches, 2)
	assert.Equal(t, "A2", diff.Matches[0].TargetID)
	assert.Equal(t, MatchSimilar, diff.Matches[0].Kind)
	assert.GreaterOrEqual(t, diff.Matches[0].Similarity, 0.9)
	assert.Equal(t, MatchExact, diff.Matches[1].Kind)

	// (1 added + 1 removed + 0 modified) / 3
	assert.InDelta(t, 2.0/3.0, diff.ChangeRatio, 1e-9)
}

func TestDiffRequirements_CaseInsensitiveExact(t *testing.T) {
	diff := DiffRequirements(
		[]document.Requirement{req("1", "The API MUST respond within 200ms")},
		[]document.Requirement{req("1", "the api must respond within 200ms.")},
	)
	assert.Equal(t, 1, diff.Exact)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.InDelta(t, 0.0, diff.ChangeRatio, 1e-9)
	assert.InDelta(t, 1.0, diff.Similarity, 1e-9)
}

func TestDiffRequirements_Modified(t *testing.T) {
	// Jaccard = 4/7
	diff := DiffRequirements(
		[]document.Requirement{req("1", "orders ship within two days")},
		[]document.Requirement{req("1", "orders ship within five business days")},
	)
	assert.Equal(t, 1, diff.Modified)
	assert.InDelta(t, 1.0, diff.ChangeRatio, 1e-9)
}

func TestDiffRequirements_Empty(t *testing.T) {
	diff := DiffRequirements(nil, nil)
	assert.Equal(t, 1.0, diff.Similarity)
	assert.Equal(t, 0.0, diff.ChangeRatio)

	diff = DiffRequirements(nil, []document.Requirement{req("x", "new thing")})
	assert.Len(t, diff.Added, 1)
	assert.Equal(t, 0.0, diff.Similarity)
	assert.Equal(t, 1.0, diff.ChangeRatio)

	diff = DiffRequirements([]document.Requirement{req("x", "old thing")}, nil)
	assert.Len(t, diff.Removed, 1)
}
