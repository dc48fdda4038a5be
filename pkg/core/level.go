package core

import (
	"math"
	"sync/atomic"
)

// UnknownRowCount marks a level whose approximate member count has not
// been measured yet.
const UnknownRowCount int64 = math.MinInt64

// LevelType distinguishes the synthetic levels from regular ones.
type LevelType int

const (
	LevelRegular LevelType = iota
	LevelAll
	LevelNull
)

// HideMemberCondition controls when members of a ragged level are skipped
// by sibling iteration.
type HideMemberCondition int

const (
	HideNever HideMemberCondition = iota
	// HideIfBlankName hides members whose name is empty or NULL.
	HideIfBlankName
	// HideIfParentsName hides members named the same as their parent.
	HideIfParentsName
)

// LevelSpec describes a level when it is added to a hierarchy.
type LevelSpec struct {
	Name string
	// KeyColumns identify a member within its parent. More than one
	// column makes the member key a CompositeKey.
	KeyColumns      []string
	NameColumn      string
	OrdinalColumn   string
	ParentColumn    string
	NullParentValue string
	Unique          bool
	HideMemberIf    HideMemberCondition
	ApproxRowCount  int64
}

// Level is one depth of a hierarchy.
type Level struct {
	name       string
	uniqueName string
	depth      int
	hierarchy  *Hierarchy
	levelType  LevelType

	keyColumns      []string
	nameColumn      string
	ordinalColumn   string
	parentColumn    string
	nullParentValue string
	unique          bool
	hideMemberIf    HideMemberCondition

	approxRowCount atomic.Int64
}

func newLevel(h *Hierarchy, depth int, lt LevelType, spec LevelSpec) *Level {
	l := &Level{
		name:            spec.Name,
		uniqueName:      h.UniqueName() + "." + QuoteName(spec.Name),
		depth:           depth,
		hierarchy:       h,
		levelType:       lt,
		keyColumns:      append([]string(nil), spec.KeyColumns...),
		nameColumn:      spec.NameColumn,
		ordinalColumn:   spec.OrdinalColumn,
		parentColumn:    spec.ParentColumn,
		nullParentValue: spec.NullParentValue,
		unique:          spec.Unique || lt == LevelAll,
		hideMemberIf:    spec.HideMemberIf,
	}
	if spec.ApproxRowCount > 0 {
		l.approxRowCount.Store(spec.ApproxRowCount)
	} else {
		l.approxRowCount.Store(UnknownRowCount)
	}
	return l
}

func (l *Level) Name() string            { return l.name }
func (l *Level) UniqueName() string      { return l.uniqueName }
func (l *Level) Depth() int              { return l.depth }
func (l *Level) Hierarchy() *Hierarchy   { return l.hierarchy }
func (l *Level) Type() LevelType         { return l.levelType }
func (l *Level) IsAll() bool             { return l.levelType == LevelAll }
func (l *Level) IsNull() bool            { return l.levelType == LevelNull }
func (l *Level) KeyColumns() []string    { return l.keyColumns }
func (l *Level) NameColumn() string      { return l.nameColumn }
func (l *Level) OrdinalColumn() string   { return l.ordinalColumn }
func (l *Level) ParentColumn() string    { return l.parentColumn }
func (l *Level) NullParentValue() string { return l.nullParentValue }

// IsParentChild reports whether members of this level nest inside the
// level itself through a self-referencing parent column.
func (l *Level) IsParentChild() bool { return l.parentColumn != "" }

// IsUnique reports whether a key identifies a member without its parent.
func (l *Level) IsUnique() bool { return l.unique }

func (l *Level) HideMemberIf() HideMemberCondition { return l.hideMemberIf }

// IsComposite reports whether members are keyed by more than one column.
func (l *Level) IsComposite() bool { return len(l.keyColumns) > 1 }

// KeyColumn returns the first key column, or "" for synthetic levels.
func (l *Level) KeyColumn() string {
	if len(l.keyColumns) == 0 {
		return ""
	}
	return l.keyColumns[0]
}

// NameExpression returns the column holding member names, falling back
// to the key column.
func (l *Level) NameExpression() string {
	if l.nameColumn != "" {
		return l.nameColumn
	}
	return l.KeyColumn()
}

// ChildLevel returns the next deeper level, or nil at the leaf.
func (l *Level) ChildLevel() *Level {
	if l.levelType == LevelNull {
		return nil
	}
	return l.hierarchy.Level(l.depth + 1)
}

// ParentLevel returns the next shallower level, or nil at the root.
func (l *Level) ParentLevel() *Level {
	if l.depth == 0 || l.levelType == LevelNull {
		return nil
	}
	return l.hierarchy.Level(l.depth - 1)
}

// ApproxRowCount returns the member count hint or UnknownRowCount.
func (l *Level) ApproxRowCount() int64 { return l.approxRowCount.Load() }

func (l *Level) SetApproxRowCount(n int64) { l.approxRowCount.Store(n) }

// ResetApproxRowCount forgets the member count hint.
func (l *Level) ResetApproxRowCount() { l.approxRowCount.Store(UnknownRowCount) }

func (l *Level) String() string { return l.uniqueName }
