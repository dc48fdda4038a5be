package constraint

import (
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// Descendants restricts a level load to the children of a parent set.
// The parent list can be arbitrarily large, so the result is never cached.
type Descendants struct {
	parents []core.Member
	mcc     MemberChildrenConstraint
}

var _ TupleConstraint = (*Descendants)(nil)

// NewDescendants restricts to the children of parents, delegating the
// per-level restriction to mcc (Default when nil).
func NewDescendants(parents []core.Member, mcc MemberChildrenConstraint) *Descendants {
	if mcc == nil {
		mcc = Default
	}
	return &Descendants{parents: append([]core.Member(nil), parents...), mcc: mcc}
}

func (c *Descendants) AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error {
	return c.mcc.AddMemberConstraint(q, baseCube, agg, c.parents)
}

func (c *Descendants) AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error {
	return c.mcc.AddLevelConstraint(q, baseCube, agg, level)
}

func (c *Descendants) MemberChildrenConstraint(core.Member) MemberChildrenConstraint { return c.mcc }

func (c *Descendants) Parents() []core.Member { return c.parents }

func (*Descendants) CacheKey() string          { return "" }
func (*Descendants) Evaluator() core.Evaluator { return nil }
func (*Descendants) SupportsAggTables() bool   { return true }
