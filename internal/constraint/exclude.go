package constraint

import (
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// MemberExclude loads the members of a level that are not in a given
// list. It tops up a limited load that came back short, so it re-applies
// the cross-join arguments and role grants of the original load.
type MemberExclude struct {
	excludes []core.Member
	level    *core.Level
	set      *SetConstraint
	role     core.Role
	cacheKey string
}

var _ TupleConstraint = (*MemberExclude)(nil)

// NewMemberExclude excludes members at level. set is the constraint of
// the original load and may be nil.
func NewMemberExclude(excludes []core.Member, level *core.Level, set *SetConstraint) *MemberExclude {
	c := &MemberExclude{excludes: append([]core.Member(nil), excludes...), level: level, set: set}
	if set != nil && set.Evaluator() != nil {
		c.role = set.Evaluator().Role()
	}
	setKey := DefaultKey
	if set != nil {
		setKey = set.CacheKey()
	}
	if setKey != "" {
		names := make([]string, len(c.excludes))
		for i, m := range c.excludes {
			names[i] = m.UniqueName()
		}
		c.cacheKey = "exclude|" + level.UniqueName() + "|" + strings.Join(names, ",") + "|" + setKey
	}
	return c
}

// AddConstraint adds nothing: the top-up reads members the context
// filtered out, so the context is not re-applied.
func (c *MemberExclude) AddConstraint(*sqlquery.Query, *core.Cube, *core.AggStar) error {
	return nil
}

func (c *MemberExclude) AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error {
	if level == c.level {
		if err := AddMemberListConstraint(q, baseCube, agg, c.excludes, true); err != nil {
			return err
		}
	}
	if c.set != nil {
		for _, arg := range c.set.Args() {
			if arg.Level() == nil || arg.Level() == level {
				if err := arg.AddConstraint(q, baseCube, agg); err != nil {
					return err
				}
			}
		}
	}
	AddRoleAccessConstraints(q, baseCube, agg, c.role, level)
	return nil
}

func (c *MemberExclude) MemberChildrenConstraint(core.Member) MemberChildrenConstraint {
	return Default
}

func (c *MemberExclude) CacheKey() string { return c.cacheKey }

func (c *MemberExclude) Evaluator() core.Evaluator {
	if c.set == nil {
		return nil
	}
	return c.set.Evaluator()
}

func (*MemberExclude) SupportsAggTables() bool { return false }
