// Package constraint restricts the SQL that loads members and tuples, and
// names each restriction with a cache key so loaded lists can be reused.
//
// A TupleConstraint governs a level or multi-level load. A
// MemberChildrenConstraint governs the load of children of known parents.
// Constraints are immutable once built.
package constraint

import (
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// DefaultKey is the cache key of the unrestricted constraint.
const DefaultKey = "default"

// MemberChildrenConstraint restricts a children load.
type MemberChildrenConstraint interface {
	// AddMemberConstraint restricts q to the children of parents.
	AddMemberConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, parents []core.Member) error
	// AddLevelConstraint restricts q at the level being loaded.
	AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error
	// CacheKey identifies the restriction. "" means the result must not be cached.
	CacheKey() string
}

// TupleConstraint restricts a level or tuple load.
type TupleConstraint interface {
	// AddConstraint adds restrictions that do not depend on the level. It
	// leaves q alone when no fact join is needed.
	AddConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar) error
	AddLevelConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, level *core.Level) error
	// MemberChildrenConstraint is the constraint for loading children of parent.
	MemberChildrenConstraint(parent core.Member) MemberChildrenConstraint
	CacheKey() string
	// Evaluator is the context the constraint was built from, or nil.
	Evaluator() core.Evaluator
	// SupportsAggTables reports whether the SQL stays valid against an
	// aggregate table.
	SupportsAggTables() bool
}

// DefaultConstraint restricts nothing beyond the parent of a children load.
type DefaultConstraint struct{}

// Default is the shared unrestricted constraint.
var Default = &DefaultConstraint{}

var (
	_ TupleConstraint          = (*DefaultConstraint)(nil)
	_ MemberChildrenConstraint = (*DefaultConstraint)(nil)
)

func (*DefaultConstraint) AddConstraint(*sqlquery.Query, *core.Cube, *core.AggStar) error {
	return nil
}

func (*DefaultConstraint) AddMemberConstraint(q *sqlquery.Query, baseCube *core.Cube, agg *core.AggStar, parents []core.Member) error {
	return AddParentConstraint(q, baseCube, agg, parents)
}

func (*DefaultConstraint) AddLevelConstraint(*sqlquery.Query, *core.Cube, *core.AggStar, *core.Level) error {
	return nil
}

func (c *DefaultConstraint) MemberChildrenConstraint(core.Member) MemberChildrenConstraint {
	return c
}

func (*DefaultConstraint) CacheKey() string          { return DefaultKey }
func (*DefaultConstraint) Evaluator() core.Evaluator { return nil }
func (*DefaultConstraint) SupportsAggTables() bool   { return true }
