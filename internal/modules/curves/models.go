// Package curves holds the response-curve input table: one row per scope and
// uplift point, describing spend levels and the outcomes they produce.
package curves

import (
	"strconv"
	"time"

	"github.com/reachplan/optimizer/internal/domain"
)

// ReferenceUplift is the uplift index of the reference (current spend) point.
// Every curve has exactly one point at this index.
const ReferenceUplift = 1

// Point is one discretized point on a response curve.
type Point struct {
	Region    string
	Market    string
	Brand     string
	Channel   string
	Specialty string
	Segment   string

	// UpliftIdx is a monotonic ordinal along one curve, sorted by
	// increasing spend. UpliftIdx == ReferenceUplift marks the current
	// spend point.
	UpliftIdx int

	Spend         float64
	SelloutValue  float64 // incremental sell-out value
	SelloutUnits  float64 // incremental sell-out units
	MarginValue   float64 // gross-margin-adjusted value
	IsReference   bool
	PeriodStart   time.Time
	PeriodEnd     time.Time
}

// Scope returns the full 7-dim tuple for the point, uplift index included.
func (p Point) Scope() domain.Scope {
	return domain.Scope{
		p.Region, p.Market, p.Brand, p.Channel, p.Specialty, p.Segment,
		strconv.Itoa(p.UpliftIdx),
	}
}

// CurveScope returns the 6-dim tuple identifying the curve the point
// belongs to.
func (p Point) CurveScope() domain.Scope {
	return domain.Scope{p.Region, p.Market, p.Brand, p.Channel, p.Specialty, p.Segment}
}

// DimValue returns the point's value for a hierarchy dimension by name.
func (p Point) DimValue(dim string) (string, bool) {
	switch dim {
	case domain.DimRegion:
		return p.Region, true
	case domain.DimMarket:
		return p.Market, true
	case domain.DimBrand:
		return p.Brand, true
	case domain.DimChannel:
		return p.Channel, true
	case domain.DimSpecialty:
		return p.Specialty, true
	case domain.DimSegment:
		return p.Segment, true
	case domain.DimUpliftIdx:
		return strconv.Itoa(p.UpliftIdx), true
	}
	return "", false
}

// Table is a loaded response-curve table. Columns lists the hierarchy
// dimension columns actually present in the source; unit columns are
// optional because some data sources do not report units.
type Table struct {
	Points   []Point
	Columns  []string
	HasUnits bool
}

// NewTable builds a table with the full canonical column set.
func NewTable(points []Point, hasUnits bool) *Table {
	cols := make([]string, len(domain.Dimensions))
	copy(cols, domain.Dimensions[:])
	return &Table{Points: points, Columns: cols, HasUnits: hasUnits}
}

// HasColumn reports whether a dimension column is present in the source.
func (t *Table) HasColumn(dim string) bool {
	for _, c := range t.Columns {
		if c == dim {
			return true
		}
	}
	return false
}

// ReferencePoints returns the subset of points at the reference uplift.
func (t *Table) ReferencePoints() []Point {
	out := make([]Point, 0, len(t.Points))
	for _, p := range t.Points {
		if p.UpliftIdx == ReferenceUplift {
			out = append(out, p)
		}
	}
	return out
}
