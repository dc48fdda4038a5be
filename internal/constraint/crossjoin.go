package constraint

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// CrossJoinArg is one hierarchy's contribution to a SQL cross join: a
// level, optionally narrowed to a parent or to a member list.
type CrossJoinArg interface {
	Level() *core.Level
	// Members is the enumerated member list, or nil.
	Members() []core.Member
	AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error
	CacheKey() string
}

// DescendantsArg is every member of a level, or those under a parent.
type DescendantsArg struct {
	level  *core.Level
	parent core.Member
}

// NewDescendantsArg loads level under parent; a nil parent loads it all.
func NewDescendantsArg(level *core.Level, parent core.Member) *DescendantsArg {
	return &DescendantsArg{level: level, parent: parent}
}

func (a *DescendantsArg) Level() *core.Level     { return a.level }
func (a *DescendantsArg) Members() []core.Member { return nil }
func (a *DescendantsArg) Parent() core.Member    { return a.parent }

func (a *DescendantsArg) AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	if a.parent == nil || a.parent.IsAll() {
		return nil
	}
	return AddMemberListConstraint(q, baseCube, agg, []core.Member{a.parent}, false)
}

func (a *DescendantsArg) CacheKey() string {
	parent := ""
	if a.parent != nil {
		parent = a.parent.UniqueName()
	}
	return "descendants(" + a.level.UniqueName() + "," + parent + ")"
}

// MemberListArg is an enumerated list of members of one level.
type MemberListArg struct {
	level   *core.Level
	members []core.Member
	exclude bool
}

// NewMemberListArg builds an argument from members of a single level.
// Calculated members and mixed levels cannot be expressed in SQL.
func NewMemberListArg(members []core.Member, exclude bool) (*MemberListArg, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("member list argument needs at least one member")
	}
	level := members[0].Level()
	for _, m := range members {
		if m.IsCalculated() {
			return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: "in a cross-join member list"}
		}
		if m.Level() != level {
			return nil, fmt.Errorf("member list mixes levels %s and %s", level, m.Level())
		}
	}
	return &MemberListArg{level: level, members: append([]core.Member(nil), members...), exclude: exclude}, nil
}

func (a *MemberListArg) Level() *core.Level     { return a.level }
func (a *MemberListArg) Members() []core.Member { return a.members }
func (a *MemberListArg) IsExclude() bool        { return a.exclude }

func (a *MemberListArg) AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	return AddMemberListConstraint(q, baseCube, agg, a.members, a.exclude)
}

func (a *MemberListArg) CacheKey() string {
	names := make([]string, len(a.members))
	for i, m := range a.members {
		names[i] = m.UniqueName()
	}
	prefix := "members("
	if a.exclude {
		prefix = "!members("
	}
	return prefix + strings.Join(names, ",") + ")"
}

// SetConstraint restricts a tuple load to the cross-join arguments and,
// when an evaluator is given, to its context.
type SetConstraint struct {
	args     []CrossJoinArg
	ctx      *SqlContext
	eval     core.Evaluator
	cacheKey string
}

var _ TupleConstraint = (*SetConstraint)(nil)

// NewSetConstraint combines args with the context of eval (which may be nil).
func NewSetConstraint(args []CrossJoinArg, eval core.Evaluator, strict bool) (*SetConstraint, error) {
	c := &SetConstraint{args: append([]CrossJoinArg(nil), args...), eval: eval}
	ctxKey := DefaultKey
	if eval != nil {
		ctx, err := NewSqlContext(eval, strict)
		if err != nil {
			return nil, err
		}
		c.ctx = ctx
		ctxKey = ctx.CacheKey()
	}
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = a.CacheKey()
	}
	c.cacheKey = "set|" + ctxKey + "|" + strings.Join(keys, ";")
	return c, nil
}

func (c *SetConstraint) Args() []CrossJoinArg { return c.args }

func (c *SetConstraint) AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	if c.ctx != nil {
		if err := c.ctx.AddConstraint(q, baseCube, agg); err != nil {
			return err
		}
	}
	for _, a := range c.args {
		if err := a.AddConstraint(q, baseCube, agg); err != nil {
			return err
		}
	}
	return nil
}

func (c *SetConstraint) AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error {
	if c.ctx == nil {
		return nil
	}
	return c.ctx.AddLevelConstraint(q, baseCube, agg, level)
}

func (c *SetConstraint) MemberChildrenConstraint(core.Member) MemberChildrenConstraint {
	if c.ctx != nil {
		return c.ctx
	}
	return Default
}

func (c *SetConstraint) CacheKey() string          { return c.cacheKey }
func (c *SetConstraint) Evaluator() core.Evaluator { return c.eval }
func (c *SetConstraint) SupportsAggTables() bool   { return true }
