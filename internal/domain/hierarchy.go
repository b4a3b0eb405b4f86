// Package domain defines the business hierarchy vocabulary shared by the
// optimization engine: dimensions, scope tuples and wildcard matching.
package domain

import (
	"fmt"
	"strings"
)

// Hierarchy dimensions in canonical order. Scope tuples always follow this
// order; a scope over {market, brand} is never expressed as "brand, market".
const (
	DimRegion    = "region"
	DimMarket    = "market"
	DimBrand     = "brand"
	DimChannel   = "channel"
	DimSpecialty = "specialty"
	DimSegment   = "segment"
	DimUpliftIdx = "upliftidx"
)

// NumDims is the number of hierarchy dimensions, including the uplift index.
const NumDims = 7

// NumScopeDims is the number of dimensions of a full-granularity scope,
// i.e. everything except the uplift index.
const NumScopeDims = 6

// Dimensions lists all hierarchy dimensions in canonical order.
var Dimensions = [NumDims]string{
	DimRegion,
	DimMarket,
	DimBrand,
	DimChannel,
	DimSpecialty,
	DimSegment,
	DimUpliftIdx,
}

// DimIndex returns the canonical position of a dimension name.
func DimIndex(dim string) (int, error) {
	for i, d := range Dimensions {
		if d == dim {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown hierarchy dimension %q", dim)
}

// Wildcard marks an unspecified dimension inside a scope tuple.
const Wildcard = ""

// Scope is a tuple of hierarchy dimension values in canonical order.
// Unspecified dimensions hold Wildcard. Scope is comparable and can be used
// as a map key directly.
type Scope [NumDims]string

// NewScope builds a scope from dimension name/value pairs. Values for
// dimensions not mentioned remain wildcards. Unknown dimension names are a
// configuration error.
func NewScope(values map[string]string) (Scope, error) {
	var s Scope
	for dim, v := range values {
		i, err := DimIndex(dim)
		if err != nil {
			return Scope{}, err
		}
		s[i] = v
	}
	return s, nil
}

// Full reports whether every scope dimension (excluding the uplift index)
// is concrete.
func (s Scope) Full() bool {
	for i := 0; i < NumScopeDims; i++ {
		if s[i] == Wildcard {
			return false
		}
	}
	return true
}

// WithoutUplift returns the scope with the uplift index cleared.
func (s Scope) WithoutUplift() Scope {
	s[NumDims-1] = Wildcard
	return s
}

// Uplift returns the uplift index component.
func (s Scope) Uplift() string {
	return s[NumDims-1]
}

// Matches reports whether a full-granularity scope falls under this
// (possibly wildcarded) scope. Comparison is positional; wildcard positions
// match anything. This is the single wildcard-matching implementation used
// by constraint aggregation and result roll-ups.
func (s Scope) Matches(full Scope) bool {
	for i := 0; i < NumDims; i++ {
		if s[i] == Wildcard {
			continue
		}
		if s[i] != full[i] {
			return false
		}
	}
	return true
}

// Dims returns the canonical names of the concrete dimensions of the scope.
func (s Scope) Dims() []string {
	dims := make([]string, 0, NumDims)
	for i, v := range s {
		if v != Wildcard {
			dims = append(dims, Dimensions[i])
		}
	}
	return dims
}

// Project keeps only the named dimensions, wildcarding the rest. The dims
// slice must be in canonical order.
func (s Scope) Project(dims []string) (Scope, error) {
	var out Scope
	prev := -1
	for _, dim := range dims {
		i, err := DimIndex(dim)
		if err != nil {
			return Scope{}, err
		}
		if i <= prev {
			return Scope{}, fmt.Errorf("dimension %q out of canonical order", dim)
		}
		prev = i
		out[i] = s[i]
	}
	return out, nil
}

// SortKey returns a deterministic ordering key. Wildcards sort as empty
// strings so ordering is total even for partially specified scopes.
func (s Scope) SortKey() string {
	return strings.Join(s[:], "\x00")
}

// String renders the scope for logs and error messages.
func (s Scope) String() string {
	parts := make([]string, 0, NumDims)
	for i, v := range s {
		if v == Wildcard {
			continue
		}
		parts = append(parts, Dimensions[i]+"="+v)
	}
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, ",")
}

// SetName builds the deterministic name for a domain set over the given
// dimensions, e.g. "market_brand".
func SetName(dims []string) string {
	return strings.Join(dims, "_")
}
