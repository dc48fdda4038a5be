// Package predicate builds boolean predicates over star columns and the
// compound predicates that restrict cell requests to a set of tuples.
package predicate

import (
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/bitkey"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

// StarPredicate is a boolean expression over star columns.
type StarPredicate interface {
	// ConstrainedColumns lists the columns the predicate reads, without duplicates.
	ConstrainedColumns() []*core.StarColumn
	// BitKey is the set of bit positions of ConstrainedColumns.
	BitKey() *bitkey.BitKey
	// Evaluate tests a row given as column bit position to value.
	Evaluate(row map[int]any) bool
	// ToSQL renders the predicate with d.
	ToSQL(d *dialect.Dialect) string
	// String is a canonical description; equal predicates describe equally.
	String() string
}

// Equal reports whether two predicates are structurally equal.
func Equal(a, b StarPredicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

func columnSQL(d *dialect.Dialect, c *core.StarColumn) string {
	return d.Column(c.Alias(), c.Name())
}

// ValueColumnPredicate is column = value.
type ValueColumnPredicate struct {
	column *core.StarColumn
	value  any
}

// NewValue constrains column to a single value. core.NullKey means IS NULL.
func NewValue(column *core.StarColumn, value any) *ValueColumnPredicate {
	return &ValueColumnPredicate{column: column, value: core.NormalizeKey(value)}
}

func (p *ValueColumnPredicate) Column() *core.StarColumn { return p.column }
func (p *ValueColumnPredicate) Value() any               { return p.value }

func (p *ValueColumnPredicate) ConstrainedColumns() []*core.StarColumn {
	return []*core.StarColumn{p.column}
}

func (p *ValueColumnPredicate) BitKey() *bitkey.BitKey { return bitkey.New(p.column.BitPosition()) }

func (p *ValueColumnPredicate) Evaluate(row map[int]any) bool {
	v, ok := row[p.column.BitPosition()]
	if !ok {
		return false
	}
	return core.CompareKeys(v, p.value) == 0
}

func (p *ValueColumnPredicate) ToSQL(d *dialect.Dialect) string {
	if core.IsNullKey(p.value) {
		return columnSQL(d, p.column) + " IS NULL"
	}
	return columnSQL(d, p.column) + " = " + d.Literal(p.value)
}

func (p *ValueColumnPredicate) String() string {
	return p.column.String() + "=" + core.KeyString(p.value)
}

// MemberColumnPredicate is a value predicate that remembers the member it
// was derived from.
type MemberColumnPredicate struct {
	ValueColumnPredicate
	member core.Member
}

// NewMemberValue constrains column to the key of m.
func NewMemberValue(column *core.StarColumn, m core.Member) *MemberColumnPredicate {
	return &MemberColumnPredicate{
		ValueColumnPredicate: ValueColumnPredicate{column: column, value: core.NormalizeKey(m.Key())},
		member:               m,
	}
}

func (p *MemberColumnPredicate) Member() core.Member { return p.member }

// RangeColumnPredicate bounds a column. A nil bound is open.
type RangeColumnPredicate struct {
	column         *core.StarColumn
	lower, upper   any
	lowerInclusive bool
	upperInclusive bool
}

// NewRange constrains column between lower and upper.
func NewRange(column *core.StarColumn, lower any, lowerInclusive bool, upper any, upperInclusive bool) *RangeColumnPredicate {
	return &RangeColumnPredicate{
		column:         column, lower: lower, upper: upper,
		lowerInclusive: lowerInclusive, upperInclusive: upperInclusive,
	}
}

func (p *RangeColumnPredicate) ConstrainedColumns() []*core.StarColumn {
	return []*core.StarColumn{p.column}
}

func (p *RangeColumnPredicate) BitKey() *bitkey.BitKey { return bitkey.New(p.column.BitPosition()) }

func (p *RangeColumnPredicate) Evaluate(row map[int]any) bool {
	v, ok := row[p.column.BitPosition()]
	if !ok || core.IsNullKey(v) {
		return false
	}
	if p.lower != nil {
		c := core.CompareKeys(v, p.lower)
		if c < 0 || (c == 0 && !p.lowerInclusive) {
			return false
		}
	}
	if p.upper != nil {
		c := core.CompareKeys(v, p.upper)
		if c > 0 || (c == 0 && !p.upperInclusive) {
			return false
		}
	}
	return true
}

func (p *RangeColumnPredicate) ToSQL(d *dialect.Dialect) string {
	col := columnSQL(d, p.column)
	var parts []string
	if p.lower != nil {
		op := " > "
		if p.lowerInclusive {
			op = " >= "
		}
		parts = append(parts, col+op+d.Literal(p.lower))
	}
	if p.upper != nil {
		op := " < "
		if p.upperInclusive {
			op = " <= "
		}
		parts = append(parts, col+op+d.Literal(p.upper))
	}
	switch len(parts) {
	case 0:
		return "1 = 1"
	case 1:
		return parts[0]
	default:
		return "(" + parts[0] + " AND " + parts[1] + ")"
	}
}

func (p *RangeColumnPredicate) String() string {
	lo, hi := "(", ")"
	if p.lowerInclusive {
		lo = "["
	}
	if p.upperInclusive {
		hi = "]"
	}
	bound := func(v any) string {
		if v == nil {
			return "*"
		}
		return core.KeyString(v)
	}
	return p.column.String() + " in " + lo + bound(p.lower) + "," + bound(p.upper) + hi
}

// ListColumnPredicate is column IN (values).
type ListColumnPredicate struct {
	column *core.StarColumn
	values []any
}

// NewList constrains column to any of values. Duplicates are dropped.
func NewList(column *core.StarColumn, values ...any) *ListColumnPredicate {
	p := &ListColumnPredicate{column: column}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = core.NormalizeKey(v)
		id := core.KeyString(v)
		if seen[id] {
			continue
		}
		seen[id] = true
		p.values = append(p.values, v)
	}
	return p
}

func (p *ListColumnPredicate) Values() []any { return p.values }

func (p *ListColumnPredicate) ConstrainedColumns() []*core.StarColumn {
	return []*core.StarColumn{p.column}
}

func (p *ListColumnPredicate) BitKey() *bitkey.BitKey { return bitkey.New(p.column.BitPosition()) }

func (p *ListColumnPredicate) Evaluate(row map[int]any) bool {
	v, ok := row[p.column.BitPosition()]
	if !ok {
		return false
	}
	for _, x := range p.values {
		if core.CompareKeys(v, x) == 0 {
			return true
		}
	}
	return false
}

func (p *ListColumnPredicate) ToSQL(d *dialect.Dialect) string {
	return InList(d, columnSQL(d, p.column), p.values)
}

func (p *ListColumnPredicate) String() string {
	ids := make([]string, len(p.values))
	for i, v := range p.values {
		ids[i] = core.KeyString(v)
	}
	return p.column.String() + " in {" + strings.Join(ids, ",") + "}"
}

// InList renders "col IN (...)" for values, handling NULL separately
// and collapsing a single value to equality.
func InList(d *dialect.Dialect, col string, values []any) string {
	var lits []string
	hasNull := false
	for _, v := range values {
		if core.IsNullKey(v) {
			hasNull = true
			continue
		}
		lits = append(lits, d.Literal(v))
	}
	var expr string
	switch len(lits) {
	case 0:
	case 1:
		expr = col + " = " + lits[0]
	default:
		expr = col + " IN (" + strings.Join(lits, ", ") + ")"
	}
	switch {
	case !hasNull && expr == "":
		return "1 = 0"
	case !hasNull:
		return expr
	case expr == "":
		return col + " IS NULL"
	default:
		return "(" + expr + " OR " + col + " IS NULL)"
	}
}

type junction struct {
	children []StarPredicate
	columns  []*core.StarColumn
	bk       *bitkey.BitKey
}

func newJunction(children []StarPredicate) junction {
	j := junction{children: children, bk: &bitkey.BitKey{}}
	for _, c := range children {
		for _, col := range c.ConstrainedColumns() {
			if !j.bk.Get(col.BitPosition()) {
				j.columns = append(j.columns, col)
			}
		}
		j.bk.Or(c.BitKey())
	}
	return j
}

func (j junction) Children() []StarPredicate              { return j.children }
func (j junction) ConstrainedColumns() []*core.StarColumn { return j.columns }
func (j junction) BitKey() *bitkey.BitKey                 { return j.bk.Clone() }

func (j junction) render(d *dialect.Dialect, op string) string {
	parts := make([]string, len(j.children))
	for i, c := range j.children {
		parts[i] = c.ToSQL(d)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, op) + ")"
}

func (j junction) describe(op string) string {
	parts := make([]string, len(j.children))
	for i, c := range j.children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, op) + ")"
}

// AndPredicate holds when every child holds.
type AndPredicate struct{ junction }

// NewAnd combines children with AND.
func NewAnd(children ...StarPredicate) *AndPredicate {
	return &AndPredicate{newJunction(children)}
}

func (p *AndPredicate) Evaluate(row map[int]any) bool {
	for _, c := range p.children {
		if !c.Evaluate(row) {
			return false
		}
	}
	return true
}

func (p *AndPredicate) ToSQL(d *dialect.Dialect) string { return p.render(d, " AND ") }
func (p *AndPredicate) String() string                  { return p.describe(" and ") }

// OrPredicate holds when any child holds.
type OrPredicate struct{ junction }

// NewOr combines children with OR.
func NewOr(children ...StarPredicate) *OrPredicate {
	return &OrPredicate{newJunction(children)}
}

func (p *OrPredicate) Evaluate(row map[int]any) bool {
	for _, c := range p.children {
		if c.Evaluate(row) {
			return true
		}
	}
	return false
}

func (p *OrPredicate) ToSQL(d *dialect.Dialect) string { return p.render(d, " OR ") }
func (p *OrPredicate) String() string                  { return p.describe(" or ") }
