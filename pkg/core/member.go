package core

import (
	"maps"
	"sync/atomic"
)

// MemberType classifies members.
type MemberType int

const (
	MemberRegular MemberType = iota
	MemberAll
	MemberNull
	MemberMeasure
	MemberFormula
)

// Member is a node of a hierarchy. Two members are the same member when
// their unique names are equal.
type Member interface {
	Key() any
	Name() string
	UniqueName() string
	Ordinal() int
	Level() *Level
	Hierarchy() *Hierarchy
	Parent() Member
	Depth() int
	Type() MemberType
	IsAll() bool
	IsNull() bool
	IsCalculated() bool
	Property(name string) (any, bool)
}

// RolapMember is a member read from a dimension table.
type RolapMember struct {
	key        any
	name       string
	uniqueName string
	level      *Level
	parent     Member
	memberType MemberType
	ordinal    atomic.Int64
	props      map[string]any
}

// NewMember creates a regular member. An empty name is derived from the key.
func NewMember(parent Member, level *Level, key any, name string) *RolapMember {
	key = NormalizeKey(key)
	if name == "" {
		name = KeyName(key)
	}
	m := &RolapMember{
		key:        key,
		name:       name,
		uniqueName: childUniqueName(parent, level.Hierarchy(), name),
		level:      level,
		parent:     parent,
		memberType: MemberRegular,
	}
	m.ordinal.Store(-1)
	return m
}

func childUniqueName(parent Member, h *Hierarchy, name string) string {
	if parent == nil || parent.IsAll() {
		return h.UniqueName() + "." + QuoteName(name)
	}
	return parent.UniqueName() + "." + QuoteName(name)
}

// WithProperties attaches member properties. Call before the member is published.
func (m *RolapMember) WithProperties(props map[string]any) *RolapMember {
	if len(props) == 0 {
		return m
	}
	if m.props == nil {
		m.props = make(map[string]any, len(props))
	}
	maps.Copy(m.props, props)
	return m
}

func (m *RolapMember) Key() any              { return m.key }
func (m *RolapMember) Name() string          { return m.name }
func (m *RolapMember) UniqueName() string    { return m.uniqueName }
func (m *RolapMember) Ordinal() int          { return int(m.ordinal.Load()) }
func (m *RolapMember) SetOrdinal(ord int)    { m.ordinal.Store(int64(ord)) }
func (m *RolapMember) Level() *Level         { return m.level }
func (m *RolapMember) Hierarchy() *Hierarchy { return m.level.Hierarchy() }
func (m *RolapMember) Parent() Member        { return m.parent }
func (m *RolapMember) Type() MemberType      { return m.memberType }
func (m *RolapMember) IsAll() bool           { return m.memberType == MemberAll }
func (m *RolapMember) IsNull() bool          { return m.memberType == MemberNull }
func (m *RolapMember) IsCalculated() bool    { return m.memberType == MemberFormula }
func (m *RolapMember) String() string        { return m.uniqueName }

// Depth is the level depth, or for parent-child levels the number of
// ancestors within the level.
func (m *RolapMember) Depth() int {
	if m.level.IsParentChild() {
		d := m.level.Depth()
		for p := m.parent; p != nil && p.Level() == m.level; p = p.Parent() {
			d++
		}
		return d
	}
	return m.level.Depth()
}

func (m *RolapMember) Property(name string) (any, bool) {
	v, ok := m.props[name]
	return v, ok
}

// CalculatedMember is a member defined by an expression rather than a row.
type CalculatedMember struct {
	*RolapMember
	expr Expression
}

// NewCalculatedMember creates a formula member under parent at level.
func NewCalculatedMember(parent Member, level *Level, name string, expr Expression) *CalculatedMember {
	m := NewMember(parent, level, name, name)
	m.memberType = MemberFormula
	return &CalculatedMember{RolapMember: m, expr: expr}
}

func (m *CalculatedMember) Expression() Expression { return m.expr }

// VisualTotalMember presents another member as a subtotal of the visible
// members of a set.
type VisualTotalMember struct {
	Member
	name string
	expr Expression
}

// NewVisualTotalMember wraps m. An empty name keeps the wrapped name.
func NewVisualTotalMember(m Member, name string, expr Expression) *VisualTotalMember {
	return &VisualTotalMember{Member: m, name: name, expr: expr}
}

func (m *VisualTotalMember) Name() string {
	if m.name != "" {
		return m.name
	}
	return m.Member.Name()
}

func (m *VisualTotalMember) Expression() Expression { return m.expr }

// VisualTotalOf returns the member being totalled.
func (m *VisualTotalMember) VisualTotalOf() Member { return m.Member }

// CubeMember is the view of a shared-hierarchy member from inside one cube.
// Its parent chain consists of CubeMembers of the same cube.
type CubeMember struct {
	Member
	cube   *Cube
	parent Member
}

// NewCubeMember wraps a shared member. parent is the cube view of the
// member's parent and is nil for roots.
func NewCubeMember(parent Member, m Member, cube *Cube) *CubeMember {
	return &CubeMember{Member: m, cube: cube, parent: parent}
}

func (m *CubeMember) Parent() Member { return m.parent }
func (m *CubeMember) Cube() *Cube    { return m.cube }

// Shared returns the member the cube view was made from.
func (m *CubeMember) Shared() Member { return m.Member }

func (m *CubeMember) Expression() Expression {
	if e, ok := CalculatedExpression(m.Member); ok {
		return e
	}
	return nil
}

// CalculatedExpression returns the defining expression of a calculated member.
func CalculatedExpression(m Member) (Expression, bool) {
	if m == nil || !m.IsCalculated() {
		return nil, false
	}
	e, ok := m.(interface{ Expression() Expression })
	if !ok || e.Expression() == nil {
		return nil, false
	}
	return e.Expression(), true
}

// SameMember reports whether a and b denote the same member.
func SameMember(a, b Member) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UniqueName() == b.UniqueName()
}

// IsAncestorOf reports whether a is a strict ancestor of m.
func IsAncestorOf(a, m Member) bool {
	for p := m.Parent(); p != nil; p = p.Parent() {
		if SameMember(a, p) {
			return true
		}
	}
	return false
}

// AncestorAt walks up from m to the member at level, or nil.
func AncestorAt(m Member, level *Level) Member {
	for c := m; c != nil; c = c.Parent() {
		if c.Level() == level {
			return c
		}
	}
	return nil
}

// IsMeasure reports whether m belongs to a measures dimension.
func IsMeasure(m Member) bool {
	return m != nil && m.Hierarchy() != nil && m.Hierarchy().Dimension().IsMeasures()
}
