package curves

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
)

// Normalize divides every monetary column by factor, returning a new table.
// Curves are scaled down before optimization for numeric stability and
// scaled back afterwards. A non-positive factor is a configuration error.
func Normalize(t *Table, factor float64) (*Table, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("normalization factor must be positive, got %v", factor)
	}
	return scale(t, 1.0/factor), nil
}

// Denormalize multiplies every monetary column back by factor.
func Denormalize(t *Table, factor float64) (*Table, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("normalization factor must be positive, got %v", factor)
	}
	return scale(t, factor), nil
}

func scale(t *Table, mult float64) *Table {
	points := make([]Point, len(t.Points))
	copy(points, t.Points)
	for i := range points {
		points[i].Spend *= mult
		points[i].SelloutValue *= mult
		points[i].SelloutUnits *= mult
		points[i].MarginValue *= mult
	}
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	return &Table{Points: points, Columns: cols, HasUnits: t.HasUnits}
}

// EqualWithinTolerance reports whether two tables carry the same numeric
// values within floating-point tolerance. Used to verify the
// normalize/denormalize round trip.
func EqualWithinTolerance(a, b *Table, tol float64) bool {
	if len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		pa, pb := a.Points[i], b.Points[i]
		if pa.Scope() != pb.Scope() {
			return false
		}
		if !scalar.EqualWithinAbsOrRel(pa.Spend, pb.Spend, tol, tol) ||
			!scalar.EqualWithinAbsOrRel(pa.SelloutValue, pb.SelloutValue, tol, tol) ||
			!scalar.EqualWithinAbsOrRel(pa.SelloutUnits, pb.SelloutUnits, tol, tol) ||
			!scalar.EqualWithinAbsOrRel(pa.MarginValue, pb.MarginValue, tol, tol) {
			return false
		}
	}
	return true
}
