package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope(t *testing.T) {
	s, err := NewScope(map[string]string{
		"region": "EU",
		"market": "FR",
		"brand":  "BrandX",
	})
	require.NoError(t, err)
	assert.Equal(t, "EU", s[0])
	assert.Equal(t, "FR", s[1])
	assert.Equal(t, "BrandX", s[2])
	assert.Equal(t, Wildcard, s[3])

	_, err = NewScope(map[string]string{"country": "FR"})
	assert.Error(t, err)
}

func TestScopeMatches(t *testing.T) {
	full := Scope{"EU", "FR", "BrandX", "Retail", "Cardio", "SegA", "1"}

	tests := []struct {
		name    string
		partial Scope
		matches bool
	}{
		{
			name:    "empty scope matches everything",
			partial: Scope{},
			matches: true,
		},
		{
			name:    "brand level match",
			partial: Scope{"EU", "FR", "BrandX"},
			matches: true,
		},
		{
			name:    "interior wildcard",
			partial: Scope{"EU", Wildcard, "BrandX", Wildcard, "Cardio"},
			matches: true,
		},
		{
			name:    "full depth match",
			partial: full,
			matches: true,
		},
		{
			name:    "brand mismatch",
			partial: Scope{"EU", "FR", "BrandY"},
			matches: false,
		},
		{
			name:    "deep mismatch",
			partial: Scope{"EU", "FR", "BrandX", "Retail", "Cardio", "SegB"},
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.partial.Matches(full))
		})
	}
}

func TestScopeProject(t *testing.T) {
	full := Scope{"EU", "FR", "BrandX", "Retail", "Cardio", "SegA", "1"}

	p, err := full.Project([]string{"market", "brand"})
	require.NoError(t, err)
	assert.Equal(t, Scope{Wildcard, "FR", "BrandX"}, p)

	// Dimensions out of canonical order must be rejected, never reordered.
	_, err = full.Project([]string{"brand", "market"})
	assert.Error(t, err)

	_, err = full.Project([]string{"flavour"})
	assert.Error(t, err)
}

func TestScopeFullAndUplift(t *testing.T) {
	full := Scope{"EU", "FR", "BrandX", "Retail", "Cardio", "SegA", "2"}
	assert.True(t, full.Full())
	assert.Equal(t, "2", full.Uplift())
	assert.Equal(t, Wildcard, full.WithoutUplift().Uplift())
	assert.True(t, full.WithoutUplift().Full())

	partial := Scope{"EU", "FR"}
	assert.False(t, partial.Full())
}

func TestScopeSortKeyIsTotal(t *testing.T) {
	scopes := []Scope{
		{"EU", "FR", "BrandX"},
		{"EU", Wildcard, "BrandX"},
		{"EU"},
		{},
		{"US", "US", "BrandY", "Retail", "Onco", "SegB", "1"},
	}

	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = s.SortKey()
	}
	sort.Strings(keys)

	// Wildcards sort before any concrete value, so the empty scope comes first.
	assert.Equal(t, Scope{}.SortKey(), keys[0])
}

func TestSetName(t *testing.T) {
	assert.Equal(t, "market_brand", SetName([]string{"market", "brand"}))
	assert.Equal(t, "region", SetName([]string{"region"}))
}
