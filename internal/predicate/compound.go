package predicate

import (
	"github.com/leapstack-labs/leapolap/internal/metrics"
	"github.com/leapstack-labs/leapolap/pkg/bitkey"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

// Group is a set of tuples that constrain the same star columns.
type Group struct {
	BitKey *bitkey.BitKey
	Tuples [][]core.Member
}

// CompoundPredicateInfo restricts a cell request to a list of tuples.
//
// A nil Predicate with IsSatisfiable true means the tuples cannot be
// expressed against a star (calculated measure); the caller evaluates
// member by member. A nil Predicate with IsSatisfiable false means no
// tuple can match and the request contributes nothing.
type CompoundPredicateInfo struct {
	predicate     StarPredicate
	bitKey        *bitkey.BitKey
	sql           string
	satisfiable   bool
	groups        []Group
	unsatisfiable int
}

// NewCompoundPredicateInfo groups tuples by the star columns they
// constrain and builds one predicate over all of them.
func NewCompoundPredicateInfo(d *dialect.Dialect, tuples [][]core.Member, measure core.Member, eval core.Evaluator) (*CompoundPredicateInfo, error) {
	info := &CompoundPredicateInfo{bitKey: &bitkey.BitKey{}, satisfiable: true}

	stored, ok := measure.(*core.StoredMeasure)
	if !ok {
		metrics.CompoundPredicates.WithLabelValues("calculated_measure").Inc()
		return info, nil
	}
	baseCube := stored.Cube()
	if baseCube == nil || baseCube.Star() == nil {
		info.satisfiable = false
		metrics.CompoundPredicates.WithLabelValues("unsatisfiable").Inc()
		return info, nil
	}

	for _, tuple := range tuples {
		bk, ok := tupleBitKey(baseCube, tuple)
		if !ok {
			info.unsatisfiable++
			continue
		}
		info.addToGroup(bk, tuple)
	}
	if len(info.groups) == 0 {
		info.satisfiable = false
		metrics.CompoundPredicates.WithLabelValues("unsatisfiable").Inc()
		return info, nil
	}

	groupPreds := make([]StarPredicate, 0, len(info.groups))
	for _, g := range info.groups {
		p, err := groupPredicate(baseCube, g, eval)
		if err != nil {
			metrics.CompoundPredicates.WithLabelValues("unsupported").Inc()
			return nil, err
		}
		groupPreds = append(groupPreds, p)
		info.bitKey.Or(g.BitKey)
	}
	if len(groupPreds) == 1 {
		info.predicate = groupPreds[0]
	} else {
		info.predicate = NewOr(groupPreds...)
	}
	info.sql = info.predicate.ToSQL(d)
	metrics.CompoundPredicates.WithLabelValues("built").Inc()
	return info, nil
}

func (c *CompoundPredicateInfo) addToGroup(bk *bitkey.BitKey, tuple []core.Member) {
	for i := range c.groups {
		if c.groups[i].BitKey.Equals(bk) {
			c.groups[i].Tuples = append(c.groups[i].Tuples, tuple)
			return
		}
	}
	c.groups = append(c.groups, Group{BitKey: bk, Tuples: [][]core.Member{tuple}})
}

// Predicate returns the combined predicate, or nil.
func (c *CompoundPredicateInfo) Predicate() StarPredicate { return c.predicate }

// BitKey is the union of the bit keys of every group.
func (c *CompoundPredicateInfo) BitKey() *bitkey.BitKey { return c.bitKey.Clone() }

// PredicateString is the rendered SQL of the predicate, or "".
func (c *CompoundPredicateInfo) PredicateString() string { return c.sql }

func (c *CompoundPredicateInfo) IsSatisfiable() bool { return c.satisfiable }

// Groups lists the tuple groups in first-seen order.
func (c *CompoundPredicateInfo) Groups() []Group { return c.groups }

// UnsatisfiableCount is the number of tuples dropped because some level
// on a member's ancestor path has no star column.
func (c *CompoundPredicateInfo) UnsatisfiableCount() int { return c.unsatisfiable }

// tupleBitKey collects the star columns of every non-all level on each
// member's ancestor path. A tuple of all-members constrains nothing and
// is unsatisfiable.
func tupleBitKey(baseCube *core.Cube, tuple []core.Member) (*bitkey.BitKey, bool) {
	bk := &bitkey.BitKey{}
	for _, m := range tuple {
		m = Unwrap(m)
		if core.IsMeasure(m) {
			continue
		}
		for c := m; c != nil && !c.IsAll(); c = c.Parent() {
			col := baseCube.StarKeyColumn(c.Level())
			if col == nil {
				return nil, false
			}
			bk.Set(col.BitPosition())
		}
	}
	if bk.IsEmpty() {
		return nil, false
	}
	return bk, true
}

func groupPredicate(baseCube *core.Cube, g Group, eval core.Evaluator) (StarPredicate, error) {
	preds := make([]StarPredicate, 0, len(g.Tuples))
	for _, tuple := range g.Tuples {
		p, err := tuplePredicate(baseCube, tuple, eval)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	if col, values, ok := sameColumnValues(preds); ok {
		return NewList(col, values...), nil
	}
	return NewOr(preds...), nil
}

// sameColumnValues reports whether every predicate is an equality on one
// column, returning the column and the values.
func sameColumnValues(preds []StarPredicate) (*core.StarColumn, []any, bool) {
	var col *core.StarColumn
	values := make([]any, 0, len(preds))
	for _, p := range preds {
		var v *ValueColumnPredicate
		switch x := p.(type) {
		case *ValueColumnPredicate:
			v = x
		case *MemberColumnPredicate:
			v = &x.ValueColumnPredicate
		default:
			return nil, nil, false
		}
		if col == nil {
			col = v.column
		} else if col != v.column {
			return nil, nil, false
		}
		values = append(values, v.value)
	}
	return col, values, true
}

func tuplePredicate(baseCube *core.Cube, tuple []core.Member, eval core.Evaluator) (StarPredicate, error) {
	var preds []StarPredicate
	for _, m := range tuple {
		m = Unwrap(m)
		if core.IsMeasure(m) || m.IsAll() {
			continue
		}
		var (
			p   StarPredicate
			err error
		)
		if m.IsCalculated() {
			p, err = calculatedPredicate(baseCube, m, eval)
		} else {
			p, err = memberPredicate(baseCube, m)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
		return nil, core.Internalf("tuple %v constrains no columns", tuple)
	case 1:
		return preds[0], nil
	default:
		return NewAnd(preds...), nil
	}
}

// memberPredicate constrains m and its ancestors up to the first unique level.
func memberPredicate(baseCube *core.Cube, m core.Member) (StarPredicate, error) {
	var chain []StarPredicate
	for c := m; c != nil && !c.IsAll(); c = c.Parent() {
		col := baseCube.StarKeyColumn(c.Level())
		if col == nil {
			return nil, core.Internalf("level %s has no column in cube %s", c.Level(), baseCube)
		}
		chain = append(chain, NewMemberValue(col, c))
		if c.Level().IsUnique() {
			break
		}
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	// outermost ancestor first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return NewAnd(chain...), nil
}

func calculatedPredicate(baseCube *core.Cube, m core.Member, eval core.Evaluator) (StarPredicate, error) {
	expr, ok := core.CalculatedExpression(m)
	if !ok {
		return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: "no expression"}
	}
	var members []core.Member
	if f, ok := expr.(*core.FunCall); ok && len(f.Args) > 0 && f.Args[0].Type() == core.TypeSet {
		if eval == nil {
			return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: "set argument needs an evaluator"}
		}
		set, err := eval.EvaluateSet(f.Args[0])
		if err != nil {
			return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: err.Error()}
		}
		if members, err = ExpandSupportedCalculatedMembers(set, eval); err != nil {
			return nil, err
		}
	} else if expr.Arity() == 1 {
		var err error
		if members, err = ExpandSupportedCalculatedMembers([]core.Member{m}, eval); err != nil {
			return nil, err
		}
	} else {
		return nil, &core.UnsupportedCalculatedMemberError{
			Member: m.UniqueName(), Reason: "expression " + expr.String() + " has no single-member form",
		}
	}

	preds := make([]StarPredicate, 0, len(members))
	for _, x := range members {
		if x.IsCalculated() || core.IsMeasure(x) {
			return nil, &core.UnsupportedCalculatedMemberError{
				Member: m.UniqueName(), Reason: "expands to non-stored member " + x.UniqueName(),
			}
		}
		p, err := memberPredicate(baseCube, x)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
		return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: "expands to an empty set"}
	case 1:
		return preds[0], nil
	}
	if col, values, ok := sameColumnValues(preds); ok {
		return NewList(col, values...), nil
	}
	return NewOr(preds...), nil
}
