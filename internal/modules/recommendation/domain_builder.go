package recommendation

import (
	"fmt"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/rs/zerolog"
)

// ScopeSet is the set of distinct observed value tuples for one dimension
// subset. Tuples are stored padded to full hierarchy length, wildcards in
// the omitted positions.
type ScopeSet map[domain.Scope]struct{}

// Sorted returns the set's tuples in deterministic order.
func (s ScopeSet) Sorted() []domain.Scope {
	return sortScopes(s)
}

// DomainSets indexes every declared domain set by its deterministic name.
type DomainSets struct {
	sets map[string]ScopeSet
}

// Get returns a domain set by name.
func (d *DomainSets) Get(name string) (ScopeSet, bool) {
	s, ok := d.sets[name]
	return s, ok
}

// Full returns the full 7-dim domain (every curve point tuple).
func (d *DomainSets) Full() ScopeSet {
	return d.sets[domain.SetName(domain.Dimensions[:])]
}

// FullScopes returns the 6-dim domain: one tuple per curve, uplift excluded.
func (d *DomainSets) FullScopes() ScopeSet {
	return d.sets[domain.SetName(domain.Dimensions[:domain.NumScopeDims])]
}

// Names returns all declared set names.
func (d *DomainSets) Names() []string {
	names := make([]string, 0, len(d.sets))
	for name := range d.sets {
		names = append(names, name)
	}
	return names
}

// DomainBuilder enumerates every non-empty ordered subset of the hierarchy
// dimensions and the distinct value combinations observed in the
// response-curve table for each. The resulting sets declare the
// decision-variable index sets and the aggregation levels constraints may
// target. Built once per run, immutable afterwards.
type DomainBuilder struct {
	log zerolog.Logger
}

// NewDomainBuilder creates a new domain builder.
func NewDomainBuilder(log zerolog.Logger) *DomainBuilder {
	return &DomainBuilder{
		log: log.With().Str("component", "domain_builder").Logger(),
	}
}

// Build produces all 2^7 - 1 = 127 domain sets from the table.
// A dimension column missing from the table is a configuration error, not a
// silently skipped subset.
func (b *DomainBuilder) Build(table *curves.Table) (*DomainSets, error) {
	if len(table.Points) == 0 {
		return nil, fmt.Errorf("empty optimization scope: response-curve table has no rows")
	}

	for _, dim := range domain.Dimensions {
		if !table.HasColumn(dim) {
			return nil, fmt.Errorf("dimension column %q missing from response-curve table", dim)
		}
	}

	sets := make(map[string]ScopeSet)
	n := len(domain.Dimensions)

	for mask := 1; mask < 1<<n; mask++ {
		dims := make([]string, 0, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				dims = append(dims, domain.Dimensions[i])
			}
		}

		set := make(ScopeSet)
		for _, p := range table.Points {
			tuple, err := p.Scope().Project(dims)
			if err != nil {
				return nil, err
			}
			set[tuple] = struct{}{}
		}
		sets[domain.SetName(dims)] = set
	}

	b.log.Debug().
		Int("sets", len(sets)).
		Int("full_domain", len(sets[domain.SetName(domain.Dimensions[:])])).
		Msg("Built domain sets")

	return &DomainSets{sets: sets}, nil
}
