package core

import "strings"

// Cube binds hierarchies to a fact table. A virtual cube has no fact
// table of its own and answers through its base cubes.
type Cube struct {
	name      string
	star      *Star
	baseCubes []*Cube

	hierarchies  []*Hierarchy
	foreignKeys  map[*Hierarchy]string
	levelColumns map[*Level]*StarColumn

	measuresDim   *Dimension
	measuresLevel *Level
	measures      []Member
	aggStars      []*AggStar
}

// NewCube creates a cube over factTable.
func NewCube(name, factTable, factAlias string) *Cube {
	c := newCube(name)
	c.star = NewStar(factTable, factAlias)
	return c
}

// NewVirtualCube creates a cube that combines the hierarchies and
// measures of its base cubes.
func NewVirtualCube(name string, bases ...*Cube) *Cube {
	c := newCube(name)
	c.baseCubes = append(c.baseCubes, bases...)
	seen := make(map[*Hierarchy]bool)
	for _, b := range bases {
		for _, h := range b.hierarchies {
			if !seen[h] {
				seen[h] = true
				c.hierarchies = append(c.hierarchies, h)
			}
		}
		c.measures = append(c.measures, b.measures...)
	}
	return c
}

func newCube(name string) *Cube {
	c := &Cube{
		name:         name,
		foreignKeys:  make(map[*Hierarchy]string),
		levelColumns: make(map[*Level]*StarColumn),
	}
	c.measuresDim = NewDimension("Measures")
	c.measuresDim.measures = true
	mh := c.measuresDim.AddHierarchy(HierarchySpec{Name: "Measures"})
	c.measuresLevel = mh.AddLevel(LevelSpec{Name: "MeasuresLevel", Unique: true})
	return c
}

func (c *Cube) Name() string       { return c.name }
func (c *Cube) Star() *Star        { return c.star }
func (c *Cube) IsVirtual() bool    { return c.star == nil }
func (c *Cube) BaseCubes() []*Cube { return c.baseCubes }

// FactTable returns the fact table name, or "" for a virtual cube.
func (c *Cube) FactTable() string {
	if c.star == nil {
		return ""
	}
	return c.star.FactTable()
}

// FactAlias returns the alias the fact table is queried under.
func (c *Cube) FactAlias() string {
	if c.star == nil {
		return ""
	}
	return c.star.FactAlias()
}

// AddHierarchy joins h to the fact table through foreignKey and binds
// each single-column level to a star column. Hierarchies without a table
// are degenerate: their columns live on the fact table.
func (c *Cube) AddHierarchy(h *Hierarchy, foreignKey string) {
	c.hierarchies = append(c.hierarchies, h)
	c.foreignKeys[h] = foreignKey
	if c.star == nil {
		return
	}
	table, alias := h.Table(), h.TableAlias()
	if table == "" {
		table, alias = c.star.FactTable(), c.star.FactAlias()
	}
	for _, l := range h.Levels() {
		if l.IsAll() || l.IsComposite() || l.KeyColumn() == "" {
			continue
		}
		c.levelColumns[l] = c.star.AddColumn(table, alias, l.KeyColumn())
	}
}

// Hierarchies lists the hierarchies used by the cube.
func (c *Cube) Hierarchies() []*Hierarchy { return c.hierarchies }

// UsesHierarchy reports whether h is part of the cube.
func (c *Cube) UsesHierarchy(h *Hierarchy) bool {
	if h == c.measuresDim.Hierarchy("") {
		return true
	}
	for _, x := range c.hierarchies {
		if x == h {
			return true
		}
	}
	return false
}

// ForeignKey returns the fact column joining to h.
func (c *Cube) ForeignKey(h *Hierarchy) (string, bool) {
	fk, ok := c.foreignKeys[h]
	return fk, ok
}

// StarKeyColumn returns the star column bound to the key of level, or nil.
func (c *Cube) StarKeyColumn(level *Level) *StarColumn {
	return c.levelColumns[level]
}

// AddMeasure defines a stored measure aggregating a fact column.
func (c *Cube) AddMeasure(name, column, aggregator string) *StoredMeasure {
	m := NewMember(nil, c.measuresLevel, name, name)
	m.memberType = MemberMeasure
	m.SetOrdinal(len(c.measures))
	sm := &StoredMeasure{RolapMember: m, column: column, aggregator: strings.ToLower(aggregator), cube: c}
	c.measures = append(c.measures, sm)
	return sm
}

// AddCalculatedMeasure defines a measure computed from an expression.
func (c *Cube) AddCalculatedMeasure(name string, expr Expression) *CalculatedMember {
	m := NewCalculatedMember(nil, c.measuresLevel, name, expr)
	m.SetOrdinal(len(c.measures))
	c.measures = append(c.measures, m)
	return m
}

// Measures lists stored and calculated measures.
func (c *Cube) Measures() []Member { return c.measures }

// Measure finds a measure by name.
func (c *Cube) Measure(name string) Member {
	for _, m := range c.measures {
		if strings.EqualFold(m.Name(), name) {
			return m
		}
	}
	return nil
}

// MeasuresHierarchy is the hierarchy holding the cube's measures.
func (c *Cube) MeasuresHierarchy() *Hierarchy { return c.measuresDim.Hierarchy("") }

// AddAggStar registers an aggregate table.
func (c *Cube) AddAggStar(a *AggStar) { c.aggStars = append(c.aggStars, a) }

func (c *Cube) AggStars() []*AggStar { return c.aggStars }

func (c *Cube) String() string { return c.name }

// StoredMeasure aggregates a fact column.
type StoredMeasure struct {
	*RolapMember
	column     string
	aggregator string
	cube       *Cube
}

func (m *StoredMeasure) Column() string     { return m.column }
func (m *StoredMeasure) Aggregator() string { return m.aggregator }
func (m *StoredMeasure) Cube() *Cube        { return m.cube }
