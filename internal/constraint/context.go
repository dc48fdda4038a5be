package constraint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/predicate"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// SqlContext restricts a load to members that have fact rows under the
// current evaluation context. It serves both as a tuple constraint and
// as a children constraint.
type SqlContext struct {
	eval     core.Evaluator
	strict   bool
	members  []core.Member
	cacheKey string
}

var (
	_ TupleConstraint          = (*SqlContext)(nil)
	_ MemberChildrenConstraint = (*SqlContext)(nil)
)

// NewSqlContext builds a context constraint from eval. Calculated context
// members are expanded; one that cannot be is an
// UnsupportedCalculatedMemberError. With strict, a context member of a
// hierarchy the base cube does not use makes the query unsupported
// instead of being ignored.
func NewSqlContext(eval core.Evaluator, strict bool) (*SqlContext, error) {
	members, err := predicate.ExpandSupportedCalculatedMembers(nonAllMembers(eval), eval)
	if err != nil {
		return nil, err
	}
	c := &SqlContext{eval: eval, strict: strict, members: members}
	c.cacheKey = c.buildCacheKey()
	return c, nil
}

// IsValidContext reports whether a context constraint can be built from
// eval for loading levels: the context must be non-empty, its calculated
// members expandable, and every level must belong to a cube the query
// reaches.
func IsValidContext(eval core.Evaluator, disallowVirtualCube bool, levels ...*core.Level) bool {
	if eval == nil || !eval.NonEmpty() || eval.Cube() == nil {
		return false
	}
	cube := eval.Cube()
	cubes := []*core.Cube{cube}
	if cube.IsVirtual() {
		if disallowVirtualCube || len(eval.BaseCubes()) == 0 {
			return false
		}
		cubes = eval.BaseCubes()
	}
	for _, l := range levels {
		used := false
		for _, c := range cubes {
			if c.UsesHierarchy(l.Hierarchy()) {
				used = true
				break
			}
		}
		if !used {
			return false
		}
	}
	_, err := predicate.ExpandSupportedCalculatedMembers(nonAllMembers(eval), eval)
	return err == nil
}

func nonAllMembers(eval core.Evaluator) []core.Member {
	var out []core.Member
	for _, m := range eval.Members() {
		if m != nil && !m.IsAll() {
			out = append(out, m)
		}
	}
	return out
}

func (c *SqlContext) buildCacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sqlcontext|strict=%t|cube=%s|members=", c.strict, c.eval.Cube().Name())
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.UniqueName()
	}
	slices.Sort(names)
	b.WriteString(strings.Join(names, ","))

	b.WriteString("|slicer=")
	for _, tuple := range c.eval.SlicerTuples() {
		b.WriteByte('(')
		for i, m := range tuple {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(m.UniqueName())
		}
		b.WriteByte(')')
	}

	if role := c.eval.Role(); role != nil {
		b.WriteString("|role=")
		for _, h := range c.eval.Cube().Hierarchies() {
			for _, l := range h.Levels() {
				granted, ok := role.RestrictedMembers(l)
				if !ok {
					continue
				}
				b.WriteString(l.UniqueName())
				b.WriteByte('{')
				for i, g := range granted {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteString(g.UniqueName())
				}
				b.WriteByte('}')
			}
		}
	}

	if c.eval.Cube().IsVirtual() {
		bases := make([]string, 0, len(c.eval.BaseCubes()))
		for _, bc := range c.eval.BaseCubes() {
			bases = append(bases, bc.Name())
		}
		slices.Sort(bases)
		b.WriteString("|base=")
		b.WriteString(strings.Join(bases, ","))
	}
	return b.String()
}

// isJoinRequired reports whether the constraint needs the fact table.
func (c *SqlContext) isJoinRequired() bool {
	if c.eval.NonEmpty() || len(c.eval.SlicerTuples()) > 0 {
		return true
	}
	for _, m := range c.members {
		if !core.IsMeasure(m) {
			return true
		}
	}
	return false
}

// AddConstraint joins the context hierarchies to the fact table and
// restricts them to the context members. Hierarchies whose table is
// already in q are the ones being loaded and are left unrestricted.
func (c *SqlContext) AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	if !c.isJoinRequired() {
		return nil
	}
	if baseCube == nil {
		baseCube = c.eval.Cube()
	}
	if baseCube.IsVirtual() {
		return core.Internalf("context constraint needs a base cube, got virtual cube %s", baseCube)
	}

	loading := make(map[*core.Hierarchy]bool)
	for _, m := range c.members {
		if _, alias := HierarchyTable(baseCube, m.Hierarchy()); q.HasFrom(alias) {
			loading[m.Hierarchy()] = true
		}
	}

	for _, m := range c.members {
		if core.IsMeasure(m) || m.IsAll() || loading[m.Hierarchy()] {
			continue
		}
		if !baseCube.UsesHierarchy(m.Hierarchy()) {
			if c.strict {
				q.MarkUnsupported(fmt.Sprintf("member %s is not in cube %s", m.UniqueName(), baseCube))
			}
			continue
		}
		if err := JoinToFact(q, baseCube, agg, m.Hierarchy()); err != nil {
			return err
		}
		if err := AddMemberListConstraint(q, baseCube, agg, []core.Member{m}, false); err != nil {
			return err
		}
	}
	return c.addSlicerConstraint(q, baseCube, agg)
}

func (c *SqlContext) addSlicerConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	tuples := c.eval.SlicerTuples()
	if len(tuples) == 0 {
		return nil
	}
	measure := baseMeasure(c.eval, baseCube)
	if measure == nil {
		q.MarkUnsupported("cube " + baseCube.Name() + " has no stored measure for the slicer")
		return nil
	}
	info, err := predicate.NewCompoundPredicateInfo(q.Dialect(), tuples, measure, c.eval)
	if err != nil {
		return err
	}
	if !info.IsSatisfiable() {
		q.AddWhere("1 = 0")
		return nil
	}
	if info.Predicate() == nil {
		return nil
	}
	for _, col := range info.Predicate().ConstrainedColumns() {
		for _, h := range baseCube.Hierarchies() {
			if _, alias := HierarchyTable(baseCube, h); alias == col.Alias() {
				if err := JoinToFact(q, baseCube, agg, h); err != nil {
					return err
				}
			}
		}
	}
	q.AddWhere(info.PredicateString())
	return nil
}

// baseMeasure picks the stored measure the slicer predicate is built for.
func baseMeasure(eval core.Evaluator, baseCube *core.Cube) *core.StoredMeasure {
	if sm, ok := core.CurrentMeasure(eval).(*core.StoredMeasure); ok && sm.Cube() == baseCube {
		return sm
	}
	for _, m := range baseCube.Measures() {
		if sm, ok := m.(*core.StoredMeasure); ok {
			return sm
		}
	}
	return nil
}

// AddLevelConstraint joins the level's table to the fact table so only
// members with fact rows are returned, and applies role grants.
func (c *SqlContext) AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error {
	if baseCube == nil {
		baseCube = c.eval.Cube()
	}
	if c.isJoinRequired() {
		if baseCube.UsesHierarchy(level.Hierarchy()) && !baseCube.IsVirtual() {
			if err := JoinToFact(q, baseCube, agg, level.Hierarchy()); err != nil {
				return err
			}
		} else if c.strict {
			q.MarkUnsupported(fmt.Sprintf("level %s is not in cube %s", level, baseCube))
		}
	}
	AddRoleAccessConstraints(q, baseCube, agg, c.eval.Role(), level)
	return nil
}

// AddMemberConstraint restricts a children load to the context and to parents.
func (c *SqlContext) AddMemberConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, parents []core.Member) error {
	if err := c.AddConstraint(q, baseCube, agg); err != nil {
		return err
	}
	return AddParentConstraint(q, baseCube, agg, parents)
}

func (c *SqlContext) MemberChildrenConstraint(core.Member) MemberChildrenConstraint { return c }

func (c *SqlContext) CacheKey() string          { return c.cacheKey }
func (c *SqlContext) Evaluator() core.Evaluator { return c.eval }
func (c *SqlContext) SupportsAggTables() bool   { return true }

// IsStrict reports whether out-of-cube context members make the query unsupported.
func (c *SqlContext) IsStrict() bool { return c.strict }
