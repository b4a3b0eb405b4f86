package recommendation

import (
	"fmt"
	"math"

	"github.com/reachplan/optimizer/internal/domain"
)

// VarDecl declares one decision variable: a family name plus an index tuple.
type VarDecl struct {
	Family  string
	Scope   domain.Scope
	Lower   float64
	Upper   float64
	Integer bool
}

// Row is one linear constraint: Lower ≤ Σ coef·x ≤ Upper over column ids.
type Row struct {
	Name  string
	Coefs map[int]float64
	Lower float64
	Upper float64
}

// Objective is the assembled linear objective: Σ cost·x + Offset, maximized
// or minimized. The offset carries baseline constants that do not affect the
// optimum but keep reported objective values consistent.
type Objective struct {
	Maximize bool
	Costs    map[int]float64
	Offset   float64
}

// Model is the explicit builder context for one optimization run. Builder
// stages append variable declarations and constraint rows, install the
// objective, and the whole context is handed to a single solve call. Each
// run builds a fresh Model; nothing is shared across runs.
type Model struct {
	vars      []VarDecl
	index     map[string]map[domain.Scope]int
	rows      []Row
	objective *Objective
}

// NewModel creates an empty model context.
func NewModel() *Model {
	return &Model{
		index: make(map[string]map[domain.Scope]int),
	}
}

// AddVariable declares a variable and returns its column id. Re-declaring
// the same (family, tuple) is a build error.
func (m *Model) AddVariable(decl VarDecl) (int, error) {
	byScope, ok := m.index[decl.Family]
	if !ok {
		byScope = make(map[domain.Scope]int)
		m.index[decl.Family] = byScope
	}
	if _, exists := byScope[decl.Scope]; exists {
		return 0, fmt.Errorf("variable %s[%s] declared twice", decl.Family, decl.Scope)
	}

	col := len(m.vars)
	m.vars = append(m.vars, decl)
	byScope[decl.Scope] = col
	return col, nil
}

// AddBinary declares a 0/1 variable.
func (m *Model) AddBinary(family string, scope domain.Scope) (int, error) {
	return m.AddVariable(VarDecl{
		Family:  family,
		Scope:   scope,
		Lower:   0,
		Upper:   1,
		Integer: true,
	})
}

// AddNonNegative declares a continuous variable with lower bound zero.
func (m *Model) AddNonNegative(family string, scope domain.Scope) (int, error) {
	return m.AddVariable(VarDecl{
		Family: family,
		Scope:  scope,
		Lower:  0,
		Upper:  math.Inf(1),
	})
}

// Column resolves a declared variable to its column id.
func (m *Model) Column(family string, scope domain.Scope) (int, bool) {
	col, ok := m.index[family][scope]
	return col, ok
}

// Scopes returns every index tuple declared for a family.
func (m *Model) Scopes(family string) []domain.Scope {
	byScope := m.index[family]
	out := make([]domain.Scope, 0, len(byScope))
	for s := range byScope {
		out = append(out, s)
	}
	return out
}

// AddRow appends a constraint row.
func (m *Model) AddRow(row Row) {
	m.rows = append(m.rows, row)
}

// AddEquality appends coefs·x == rhs.
func (m *Model) AddEquality(name string, coefs map[int]float64, rhs float64) {
	m.AddRow(Row{Name: name, Coefs: coefs, Lower: rhs, Upper: rhs})
}

// SetObjective installs the objective; setting it twice is a build error.
func (m *Model) SetObjective(obj Objective) error {
	if m.objective != nil {
		return fmt.Errorf("objective already set")
	}
	m.objective = &obj
	return nil
}

// Objective returns the installed objective, nil if not yet set.
func (m *Model) Objective() *Objective {
	return m.objective
}

// Vars returns every variable declaration, ordered by column id.
func (m *Model) Vars() []VarDecl {
	return m.vars
}

// Rows returns every constraint row.
func (m *Model) Rows() []Row {
	return m.rows
}

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int {
	return len(m.vars)
}

// NumRows returns the number of constraint rows.
func (m *Model) NumRows() int {
	return len(m.rows)
}
