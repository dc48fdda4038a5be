package constraint

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/predicate"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// HierarchyTable returns the table and alias that hold the columns of h.
// Degenerate hierarchies live on the fact table of baseCube.
func HierarchyTable(baseCube *core.Cube, h *core.Hierarchy) (table, alias string) {
	if h.Table() == "" && baseCube != nil {
		return baseCube.FactTable(), baseCube.FactAlias()
	}
	return h.Table(), h.TableAlias()
}

// LevelColumn renders a column of level. Key columns bound to a star
// column are read from agg when agg maps them.
func LevelColumn(d *dialect.Dialect, baseCube *core.Cube, agg *core.AggStar, level *core.Level, column string) string {
	if agg != nil && baseCube != nil && column == level.KeyColumn() {
		if sc := baseCube.StarKeyColumn(level); sc != nil {
			if aggCol, ok := agg.Column(sc); ok {
				return d.Column(agg.Alias(), aggCol)
			}
		}
	}
	_, alias := HierarchyTable(baseCube, level.Hierarchy())
	return d.Column(alias, column)
}

// ChildLevel is the level the children of m belong to.
func ChildLevel(m core.Member) *core.Level {
	if m.IsAll() {
		return m.Hierarchy().RootLevel()
	}
	if m.Level().IsParentChild() {
		return m.Level()
	}
	return m.Level().ChildLevel()
}

// AddParentConstraint restricts q to the children of parents.
func AddParentConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, parents []core.Member) error {
	if len(parents) == 0 {
		return nil
	}
	d := q.Dialect()
	var (
		regular []core.Member
		pcKeys  []any
		pcLevel *core.Level
		pcRoots bool
	)
	for _, p := range parents {
		if p.IsCalculated() {
			return core.Internalf("cannot restrict SQL to calculated member %s", p.UniqueName())
		}
		child := ChildLevel(p)
		if child == nil {
			return core.Internalf("member %s has no child level", p.UniqueName())
		}
		switch {
		case child.IsParentChild():
			pcLevel = child
			if p.IsAll() {
				pcRoots = true
			} else {
				pcKeys = append(pcKeys, p.Key())
			}
		case p.IsAll():
			// children of the all member are the whole root level
			return nil
		default:
			regular = append(regular, p)
		}
	}

	var conds []string
	if len(regular) > 0 {
		conds = append(conds, MemberListPredicate(d, baseCube, agg, regular, false))
	}
	if pcLevel != nil {
		col := LevelColumn(d, baseCube, agg, pcLevel, pcLevel.ParentColumn())
		if len(pcKeys) > 0 {
			conds = append(conds, predicate.InList(d, col, pcKeys))
		}
		if pcRoots {
			conds = append(conds, rootCondition(d, col, pcLevel))
		}
	}
	q.AddWhere(or(conds))
	return nil
}

// rootCondition matches rows of a parent-child level that have no parent.
func rootCondition(d *dialect.Dialect, parentCol string, level *core.Level) string {
	v := level.NullParentValue()
	if v == "" {
		return parentCol + " IS NULL"
	}
	lit := d.QuoteString(v)
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		lit = v
	}
	return "(" + parentCol + " IS NULL OR " + parentCol + " = " + lit + ")"
}

// AddMemberListConstraint restricts q to members, or with exclude to
// everything except members.
func AddMemberListConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, members []core.Member, exclude bool) error {
	for _, m := range members {
		if m.IsCalculated() {
			return core.Internalf("cannot restrict SQL to calculated member %s", m.UniqueName())
		}
	}
	q.AddWhere(MemberListPredicate(q.Dialect(), baseCube, agg, members, exclude))
	return nil
}

// MemberListPredicate renders a condition matching rows of any of members.
// Members are grouped by parent; each group constrains the members' key
// with IN and its ancestors up to the first unique level with equality.
// All members are skipped.
func MemberListPredicate(d *dialect.Dialect, baseCube *core.Cube, agg *core.AggStar, members []core.Member, exclude bool) string {
	type group struct {
		level   *core.Level
		parent  core.Member
		keys    []any
		hasNull bool
	}
	var groups []*group
	index := make(map[string]*group)
	for _, m := range members {
		if m.IsAll() {
			continue
		}
		pid := ""
		if p := m.Parent(); p != nil {
			pid = p.UniqueName()
		}
		id := m.Level().UniqueName() + "\x00" + pid
		g, ok := index[id]
		if !ok {
			g = &group{level: m.Level(), parent: m.Parent()}
			index[id] = g
			groups = append(groups, g)
		}
		g.keys = append(g.keys, m.Key())
		g.hasNull = g.hasNull || core.IsNullKey(m.Key())
	}
	if len(groups) == 0 {
		if exclude {
			return ""
		}
		return "1 = 0"
	}

	conds := make([]string, 0, len(groups))
	for _, g := range groups {
		var parts []string
		if !g.level.IsUnique() && !g.level.IsParentChild() {
			for p := g.parent; p != nil && !p.IsAll(); p = p.Parent() {
				parts = append(parts, keyPredicate(d, baseCube, agg, p.Level(), []any{p.Key()}))
				if p.Level().IsUnique() {
					break
				}
			}
			reverse(parts)
		}
		parts = append(parts, keyPredicate(d, baseCube, agg, g.level, g.keys))
		conds = append(conds, and(parts))
	}
	cond := or(conds)
	if !exclude {
		return cond
	}

	// NOT (x IN ...) is unknown for NULL keys; keep those rows unless a
	// null member is itself excluded.
	if len(groups) == 1 && !groups[0].level.IsComposite() && !groups[0].hasNull {
		col := LevelColumn(d, baseCube, agg, groups[0].level, groups[0].level.KeyColumn())
		return "(NOT (" + cond + ") OR " + col + " IS NULL)"
	}
	return "NOT (" + cond + ")"
}

// keyPredicate matches the key columns of level against keys.
func keyPredicate(d *dialect.Dialect, baseCube *core.Cube, agg *core.AggStar, level *core.Level, keys []any) string {
	cols := level.KeyColumns()
	if len(cols) <= 1 {
		return predicate.InList(d, LevelColumn(d, baseCube, agg, level, level.KeyColumn()), keys)
	}
	rendered := make([]string, len(cols))
	for i, c := range cols {
		rendered[i] = LevelColumn(d, baseCube, agg, level, c)
	}

	tuples := make([]core.CompositeKey, 0, len(keys))
	hasNull := false
	for _, k := range keys {
		ck, ok := core.NormalizeKey(k).(core.CompositeKey)
		if !ok || len(ck) != len(cols) {
			ck = make(core.CompositeKey, len(cols))
			for i := range ck {
				ck[i] = core.NullKey
			}
		}
		for _, v := range ck {
			hasNull = hasNull || core.IsNullKey(v)
		}
		tuples = append(tuples, ck)
	}

	if d.SupportsTupleIn() && !hasNull && len(tuples) > 1 {
		rows := make([]string, len(tuples))
		for i, t := range tuples {
			lits := make([]string, len(t))
			for j, v := range t {
				lits[j] = d.Literal(v)
			}
			rows[i] = "(" + strings.Join(lits, ", ") + ")"
		}
		return "(" + strings.Join(rendered, ", ") + ") IN (" + strings.Join(rows, ", ") + ")"
	}

	conds := make([]string, len(tuples))
	for i, t := range tuples {
		parts := make([]string, len(t))
		for j, v := range t {
			if core.IsNullKey(v) {
				parts[j] = rendered[j] + " IS NULL"
			} else {
				parts[j] = rendered[j] + " = " + d.Literal(v)
			}
		}
		conds[i] = and(parts)
	}
	return or(conds)
}

// JoinToFact joins the table of h to the fact table of baseCube, or to
// agg when one is given.
func JoinToFact(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, h *core.Hierarchy) error {
	if baseCube == nil || baseCube.IsVirtual() {
		return core.Internalf("cannot join %s to a cube without a fact table", h)
	}
	fk, ok := baseCube.ForeignKey(h)
	if !ok {
		return core.Internalf("hierarchy %s is not used by cube %s", h, baseCube)
	}
	d := q.Dialect()
	if agg != nil {
		q.AddFrom(agg.Table(), agg.Alias())
		return nil
	}
	q.AddFrom(baseCube.FactTable(), baseCube.FactAlias())
	if h.Table() != "" {
		q.AddFrom(h.Table(), h.TableAlias())
		q.AddWhere(d.Column(baseCube.FactAlias(), fk) + " = " + d.Column(h.TableAlias(), h.PrimaryKey()))
	}
	return nil
}

// AddRoleAccessConstraints limits a load of level to what role grants.
// Grants at or above level restrict their own columns; grants below it
// restrict level to their ancestors.
func AddRoleAccessConstraints(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, role core.Role, level *core.Level) {
	if role == nil || level == nil {
		return
	}
	d := q.Dialect()
	for _, gl := range level.Hierarchy().Levels() {
		granted, ok := role.RestrictedMembers(gl)
		if !ok {
			continue
		}
		if gl.Depth() <= level.Depth() {
			q.AddWhere(MemberListPredicate(d, baseCube, agg, granted, false))
			continue
		}
		var ancestors []core.Member
		seen := make(map[string]bool)
		for _, g := range granted {
			a := core.AncestorAt(g, level)
			if a == nil || seen[a.UniqueName()] {
				continue
			}
			seen[a.UniqueName()] = true
			ancestors = append(ancestors, a)
		}
		q.AddWhere(MemberListPredicate(d, baseCube, agg, ancestors, false))
	}
}

func and(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func or(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
