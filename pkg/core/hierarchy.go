package core

import (
	"fmt"
	"strings"
)

// Dimension groups one or more hierarchies.
type Dimension struct {
	name        string
	measures    bool
	hierarchies []*Hierarchy
}

// NewDimension creates an empty dimension.
func NewDimension(name string) *Dimension {
	return &Dimension{name: name}
}

func (d *Dimension) Name() string              { return d.name }
func (d *Dimension) UniqueName() string        { return QuoteName(d.name) }
func (d *Dimension) IsMeasures() bool          { return d.measures }
func (d *Dimension) Hierarchies() []*Hierarchy { return d.hierarchies }

// Hierarchy finds a hierarchy by name. An empty name returns the default hierarchy.
func (d *Dimension) Hierarchy(name string) *Hierarchy {
	for _, h := range d.hierarchies {
		if name == "" || h.name == name {
			return h
		}
	}
	return nil
}

// HierarchySpec describes a hierarchy when it is added to a dimension.
type HierarchySpec struct {
	Name string
	// Table is the dimension table. Empty means the levels are columns
	// of the fact table.
	Table         string
	Alias         string
	PrimaryKey    string
	HasAll        bool
	AllMemberName string
}

// Hierarchy is an ordered list of levels with a synthetic All level at
// depth 0 when HasAll is set.
type Hierarchy struct {
	name       string
	uniqueName string
	dimension  *Dimension
	table      string
	alias      string
	primaryKey string
	hasAll     bool

	levels     []*Level
	allMember  *RolapMember
	nullLevel  *Level
	nullMember *RolapMember
}

// AddHierarchy creates a hierarchy under d.
func (d *Dimension) AddHierarchy(spec HierarchySpec) *Hierarchy {
	name := spec.Name
	if name == "" {
		name = d.name
	}
	h := &Hierarchy{
		name:       name,
		dimension:  d,
		table:      spec.Table,
		alias:      spec.Alias,
		primaryKey: spec.PrimaryKey,
		hasAll:     spec.HasAll,
	}
	if name == d.name {
		h.uniqueName = QuoteName(d.name)
	} else {
		h.uniqueName = QuoteName(d.name + "." + name)
	}

	h.nullLevel = newLevel(h, 0, LevelNull, LevelSpec{Name: "(Null)"})
	h.nullMember = &RolapMember{
		key:        NullKey,
		name:       NullMemberName,
		uniqueName: h.uniqueName + "." + QuoteName(NullMemberName),
		level:      h.nullLevel,
		memberType: MemberNull,
	}
	h.nullMember.ordinal.Store(-1)

	if spec.HasAll {
		allLevel := newLevel(h, 0, LevelAll, LevelSpec{Name: "(All)"})
		h.levels = append(h.levels, allLevel)
		allName := spec.AllMemberName
		if allName == "" {
			allName = "All " + d.name + "s"
		}
		h.allMember = &RolapMember{
			key:        allName,
			name:       allName,
			uniqueName: h.uniqueName + "." + QuoteName(allName),
			level:      allLevel,
			memberType: MemberAll,
		}
	}
	d.hierarchies = append(d.hierarchies, h)
	return h
}

// AddLevel appends a level below the current leaf.
func (h *Hierarchy) AddLevel(spec LevelSpec) *Level {
	l := newLevel(h, len(h.levels), LevelRegular, spec)
	h.levels = append(h.levels, l)
	return l
}

func (h *Hierarchy) Name() string          { return h.name }
func (h *Hierarchy) UniqueName() string    { return h.uniqueName }
func (h *Hierarchy) Dimension() *Dimension { return h.dimension }
func (h *Hierarchy) Table() string         { return h.table }
func (h *Hierarchy) PrimaryKey() string    { return h.primaryKey }
func (h *Hierarchy) HasAll() bool          { return h.hasAll }
func (h *Hierarchy) Levels() []*Level      { return h.levels }

// TableAlias returns the alias the hierarchy table is joined under.
func (h *Hierarchy) TableAlias() string {
	if h.alias != "" {
		return h.alias
	}
	return h.table
}

// Level returns the level at depth, or nil.
func (h *Hierarchy) Level(depth int) *Level {
	if depth < 0 || depth >= len(h.levels) {
		return nil
	}
	return h.levels[depth]
}

// LevelByName finds a level by its name.
func (h *Hierarchy) LevelByName(name string) *Level {
	for _, l := range h.levels {
		if strings.EqualFold(l.name, name) {
			return l
		}
	}
	return nil
}

// AllMember returns the All member, or nil when the hierarchy has none.
func (h *Hierarchy) AllMember() Member {
	if h.allMember == nil {
		return nil
	}
	return h.allMember
}

// NullMember returns the sentinel member used for "no such member".
func (h *Hierarchy) NullMember() Member { return h.nullMember }

func (h *Hierarchy) NullLevel() *Level { return h.nullLevel }

// IsParentChild reports whether any level is parent-child.
func (h *Hierarchy) IsParentChild() bool {
	for _, l := range h.levels {
		if l.IsParentChild() {
			return true
		}
	}
	return false
}

// RootLevel returns the first level that holds real members.
func (h *Hierarchy) RootLevel() *Level {
	if h.hasAll {
		return h.Level(1)
	}
	return h.Level(0)
}

func (h *Hierarchy) String() string { return h.uniqueName }

// QuoteName brackets a name segment, doubling any closing bracket.
func QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// SplitUniqueName breaks a unique name such as "[Store].[USA].[CA]" into
// its unquoted segments.
func SplitUniqueName(s string) ([]string, error) {
	var parts []string
	for i := 0; i < len(s); {
		if s[i] != '[' {
			return nil, fmt.Errorf("invalid unique name %q: expected '[' at offset %d", s, i)
		}
		var b strings.Builder
		j := i + 1
		for ; j < len(s); j++ {
			if s[j] != ']' {
				b.WriteByte(s[j])
				continue
			}
			if j+1 < len(s) && s[j+1] == ']' {
				b.WriteByte(']')
				j++
				continue
			}
			break
		}
		if j >= len(s) {
			return nil, fmt.Errorf("invalid unique name %q: unterminated segment", s)
		}
		parts = append(parts, b.String())
		i = j + 1
		if i < len(s) {
			if s[i] != '.' || i+1 == len(s) {
				return nil, fmt.Errorf("invalid unique name %q: expected '.' at offset %d", s, i)
			}
			i++
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("invalid unique name %q: empty", s)
	}
	return parts, nil
}
