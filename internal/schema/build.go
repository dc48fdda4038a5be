package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/dag"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Schema is a built definition: the hierarchies, cubes in dependency
// order, and roles.
type Schema struct {
	Name       string
	Dimensions []*core.Dimension
	Cubes      []*core.Cube

	hierarchies []*core.Hierarchy
	byHierarchy map[string]*core.Hierarchy
	byLevel     map[string]*core.Level
	byCube      map[string]*core.Cube
	roles       map[string]*core.GrantRole
}

// Hierarchies lists every hierarchy in definition order.
func (s *Schema) Hierarchies() []*core.Hierarchy { return s.hierarchies }

// Hierarchy finds a hierarchy by unique name.
func (s *Schema) Hierarchy(uniqueName string) *core.Hierarchy { return s.byHierarchy[uniqueName] }

// Level finds a level by unique name.
func (s *Schema) Level(uniqueName string) *core.Level { return s.byLevel[uniqueName] }

func (s *Schema) Cube(name string) *core.Cube { return s.byCube[name] }

// Role returns the named role, or nil.
func (s *Schema) Role(name string) *core.GrantRole { return s.roles[name] }

// Build validates d and creates the model it describes.
func Build(d *Definition) (*Schema, error) {
	s := &Schema{
		Name:        d.Name,
		byHierarchy: make(map[string]*core.Hierarchy),
		byLevel:     make(map[string]*core.Level),
		byCube:      make(map[string]*core.Cube),
		roles:       make(map[string]*core.GrantRole),
	}
	for _, dd := range d.Dimensions {
		if err := s.addDimension(dd); err != nil {
			return nil, err
		}
	}

	g := dag.New[CubeDef]()
	for _, cd := range d.Cubes {
		if cd.Name == "" {
			return nil, errors.New("cube without a name")
		}
		if _, dup := g.Get(cd.Name); dup {
			return nil, fmt.Errorf("duplicate cube %q", cd.Name)
		}
		g.Add(cd.Name, cd)
	}
	for _, cd := range d.Cubes {
		for _, b := range cd.Base {
			if err := g.Depend(cd.Name, b); err != nil {
				return nil, fmt.Errorf("cube %q: %w", cd.Name, err)
			}
		}
	}
	ordered, err := g.Sort()
	if err != nil {
		return nil, err
	}
	for _, cd := range ordered {
		c, err := s.buildCube(cd)
		if err != nil {
			return nil, fmt.Errorf("cube %q: %w", cd.Name, err)
		}
		s.Cubes = append(s.Cubes, c)
		s.byCube[c.Name()] = c
	}

	for _, rd := range d.Roles {
		r, err := s.buildRole(rd)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", rd.Name, err)
		}
		s.roles[rd.Name] = r
	}
	return s, nil
}

func (s *Schema) addDimension(dd DimensionDef) error {
	if dd.Name == "" {
		return errors.New("dimension without a name")
	}
	if len(dd.Hierarchies) == 0 {
		return fmt.Errorf("dimension %q has no hierarchies", dd.Name)
	}
	dim := core.NewDimension(dd.Name)
	for _, hd := range dd.Hierarchies {
		h := dim.AddHierarchy(core.HierarchySpec{
			Name:          hd.Name,
			Table:         hd.Table,
			Alias:         hd.Alias,
			PrimaryKey:    hd.PrimaryKey,
			HasAll:        hd.HasAll,
			AllMemberName: hd.AllMemberName,
		})
		if _, dup := s.byHierarchy[h.UniqueName()]; dup {
			return fmt.Errorf("duplicate hierarchy %s", h.UniqueName())
		}
		if len(hd.Levels) == 0 {
			return fmt.Errorf("hierarchy %s has no levels", h.UniqueName())
		}
		for _, ld := range hd.Levels {
			spec, err := levelSpec(ld)
			if err != nil {
				return fmt.Errorf("hierarchy %s: %w", h.UniqueName(), err)
			}
			if spec.ParentColumn != "" && len(hd.Levels) > 1 {
				return fmt.Errorf("hierarchy %s: parent-child level %q must be the only level", h.UniqueName(), ld.Name)
			}
			l := h.AddLevel(spec)
			s.byLevel[l.UniqueName()] = l
		}
		s.hierarchies = append(s.hierarchies, h)
		s.byHierarchy[h.UniqueName()] = h
	}
	s.Dimensions = append(s.Dimensions, dim)
	return nil
}

func levelSpec(ld LevelDef) (core.LevelSpec, error) {
	if ld.Name == "" {
		return core.LevelSpec{}, errors.New("level without a name")
	}
	if len(ld.Columns) == 0 {
		return core.LevelSpec{}, fmt.Errorf("level %q has no key columns", ld.Name)
	}
	hide, err := parseHide(ld.HideMemberIf)
	if err != nil {
		return core.LevelSpec{}, fmt.Errorf("level %q: %w", ld.Name, err)
	}
	return core.LevelSpec{
		Name:            ld.Name,
		KeyColumns:      ld.Columns,
		NameColumn:      ld.NameColumn,
		OrdinalColumn:   ld.OrdinalColumn,
		ParentColumn:    ld.ParentColumn,
		NullParentValue: ld.NullParentValue,
		Unique:          ld.Unique,
		HideMemberIf:    hide,
		ApproxRowCount:  ld.ApproxRowCount,
	}, nil
}

func parseHide(s string) (core.HideMemberCondition, error) {
	switch strings.ToLower(s) {
	case "", "never":
		return core.HideNever, nil
	case "blank_name":
		return core.HideIfBlankName, nil
	case "parents_name":
		return core.HideIfParentsName, nil
	}
	return core.HideNever, fmt.Errorf("unknown hide_member_if %q", s)
}

func (s *Schema) buildCube(cd CubeDef) (*core.Cube, error) {
	if len(cd.Base) > 0 {
		if cd.FactTable != "" || len(cd.Dimensions) > 0 || len(cd.Measures) > 0 {
			return nil, errors.New("a virtual cube cannot declare a fact table, dimensions or measures")
		}
		bases := make([]*core.Cube, len(cd.Base))
		for i, b := range cd.Base {
			bases[i] = s.byCube[b]
		}
		c := core.NewVirtualCube(cd.Name, bases...)
		return c, s.addCalculated(c, cd.Calculated)
	}
	if cd.FactTable == "" {
		return nil, errors.New("fact_table is required")
	}
	c := core.NewCube(cd.Name, cd.FactTable, cd.Alias)
	for _, u := range cd.Dimensions {
		h := s.byHierarchy[u.Hierarchy]
		if h == nil {
			return nil, fmt.Errorf("unknown hierarchy %q", u.Hierarchy)
		}
		if c.UsesHierarchy(h) {
			return nil, fmt.Errorf("hierarchy %s used twice", u.Hierarchy)
		}
		if u.ForeignKey == "" {
			return nil, fmt.Errorf("hierarchy %s: foreign_key is required", u.Hierarchy)
		}
		c.AddHierarchy(h, u.ForeignKey)
	}
	for _, md := range cd.Measures {
		if md.Name == "" || md.Column == "" {
			return nil, fmt.Errorf("measure %q needs a name and a column", md.Name)
		}
		agg := strings.ToLower(md.Aggregator)
		switch agg {
		case "":
			agg = "sum"
		case "sum", "count", "min", "max", "avg", "distinct-count":
		default:
			return nil, fmt.Errorf("measure %q: unknown aggregator %q", md.Name, md.Aggregator)
		}
		c.AddMeasure(md.Name, md.Column, agg)
	}
	if err := s.addCalculated(c, cd.Calculated); err != nil {
		return nil, err
	}
	for _, ad := range cd.Aggregates {
		a, err := s.buildAggregate(c, ad)
		if err != nil {
			return nil, err
		}
		c.AddAggStar(a)
	}
	return c, nil
}

func (s *Schema) addCalculated(c *core.Cube, defs []CalculatedDef) error {
	for _, cd := range defs {
		switch cd.Operator {
		case "+", "-", "*", "/":
		default:
			return fmt.Errorf("calculated measure %q: unsupported operator %q", cd.Name, cd.Operator)
		}
		if len(cd.Operands) != 2 {
			return fmt.Errorf("calculated measure %q: want 2 operands, got %d", cd.Name, len(cd.Operands))
		}
		args := make([]core.Expression, len(cd.Operands))
		for i, name := range cd.Operands {
			m := c.Measure(name)
			if m == nil {
				return fmt.Errorf("calculated measure %q: unknown measure %q", cd.Name, name)
			}
			args[i] = &core.MemberExpr{Member: m}
		}
		c.AddCalculatedMeasure(cd.Name, &core.FunCall{Name: cd.Operator, Args: args, ResultType: core.TypeScalar})
	}
	return nil
}

func (s *Schema) buildAggregate(c *core.Cube, ad AggregateDef) (*core.AggStar, error) {
	if ad.Table == "" {
		return nil, errors.New("aggregate without a table")
	}
	a := core.NewAggStar(ad.Table, ad.Alias)
	for _, col := range ad.Columns {
		l := s.byLevel[col.Level]
		if l == nil {
			return nil, fmt.Errorf("aggregate %s: unknown level %q", ad.Table, col.Level)
		}
		sc := c.StarKeyColumn(l)
		if sc == nil {
			return nil, fmt.Errorf("aggregate %s: level %s is not in cube", ad.Table, col.Level)
		}
		a.MapColumn(sc, col.Column)
	}
	return a, nil
}

func (s *Schema) buildRole(rd RoleDef) (*core.GrantRole, error) {
	if rd.Name == "" {
		return nil, errors.New("role without a name")
	}
	r := core.NewRole(rd.Name)
	for _, ad := range rd.Access {
		h := s.byHierarchy[ad.Hierarchy]
		if h == nil {
			return nil, fmt.Errorf("unknown hierarchy %q", ad.Hierarchy)
		}
		switch strings.ToLower(ad.Access) {
		case "all":
			r.SetAccess(h, core.AccessAll)
		case "none":
			r.SetAccess(h, core.AccessNone)
		case "custom":
			r.SetAccess(h, core.AccessCustom)
		default:
			return nil, fmt.Errorf("hierarchy %s: unknown access %q", ad.Hierarchy, ad.Access)
		}
	}
	for _, gd := range rd.Grants {
		l := s.byLevel[gd.Level]
		if l == nil {
			return nil, fmt.Errorf("unknown level %q", gd.Level)
		}
		members := make([]core.Member, 0, len(gd.Members))
		for _, name := range gd.Members {
			m, err := s.MemberPath(name)
			if err != nil {
				return nil, err
			}
			if m.Level() != l {
				return nil, fmt.Errorf("member %s is not at level %s", name, gd.Level)
			}
			members = append(members, m)
		}
		r.Grant(l, members...)
	}
	return r, nil
}

// MemberPath builds a detached member from its unique name without
// reading the database. Keys are the names in the path, so the result
// only identifies the member; it is not the cached instance.
func (s *Schema) MemberPath(uniqueName string) (core.Member, error) {
	h, names, err := s.SplitMember(uniqueName)
	if err != nil {
		return nil, err
	}
	var parent core.Member = h.AllMember()
	if parent != nil && len(names) > 0 && names[0] == parent.Name() {
		names = names[1:]
	}
	if len(names) == 0 {
		if parent == nil {
			return nil, fmt.Errorf("%s has no all member", h.UniqueName())
		}
		return parent, nil
	}
	levels := h.Levels()
	if h.HasAll() {
		levels = levels[1:]
	}
	if len(names) > len(levels) && !h.IsParentChild() {
		return nil, fmt.Errorf("member %s is deeper than %s", uniqueName, h.UniqueName())
	}
	level := h.RootLevel()
	for _, n := range names {
		parent = core.NewMember(parent, level, n, n)
		if next := level.ChildLevel(); next != nil {
			level = next
		}
	}
	return parent, nil
}

// SplitMember resolves the hierarchy prefix of a member unique name and
// returns the remaining name segments.
func (s *Schema) SplitMember(uniqueName string) (*core.Hierarchy, []string, error) {
	parts, err := core.SplitUniqueName(uniqueName)
	if err != nil {
		return nil, nil, err
	}
	h := s.byHierarchy[core.QuoteName(parts[0])]
	if h == nil {
		return nil, nil, fmt.Errorf("unknown hierarchy in %q", uniqueName)
	}
	return h, parts[1:], nil
}
