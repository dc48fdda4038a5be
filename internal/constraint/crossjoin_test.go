package constraint_test

import (
	"testing"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescendants(t *testing.T) {
	s := testutil.NewSales()
	ca := testutil.Path(s.Store, "USA", "CA")
	or := testutil.Path(s.Store, "USA", "OR")
	c := constraint.NewDescendants([]core.Member{ca, or}, nil)

	got := whereOf(t, func(q *sqlquery.Query) error {
		if err := c.AddConstraint(q, nil, nil); err != nil {
			return err
		}
		return c.AddLevelConstraint(q, nil, nil, s.City)
	})
	assert.Equal(t, `SELECT 1 AS "one" WHERE "store"."store_state" IN ('CA', 'OR')`, got)
	assert.Empty(t, c.CacheKey(), "parent lists are never cached")
	assert.Same(t, constraint.Default, c.MemberChildrenConstraint(nil))
	assert.Len(t, c.Parents(), 2)
}

func TestCrossJoinArgs(t *testing.T) {
	s := testutil.NewSales()
	usa := testutil.Path(s.Store, "USA")
	ca := testutil.Path(s.Store, "USA", "CA")
	wa := testutil.Path(s.Store, "USA", "WA")

	list, err := constraint.NewMemberListArg([]core.Member{ca, wa}, false)
	require.NoError(t, err)
	excl, err := constraint.NewMemberListArg([]core.Member{ca}, true)
	require.NoError(t, err)

	tests := []struct {
		name string
		arg  constraint.CrossJoinArg
		sql  string
		key  string
	}{
		{
			"whole level", constraint.NewDescendantsArg(s.State, nil),
			`SELECT 1 AS "one"`, "descendants([Store].[Store State],)",
		},
		{
			"under a parent", constraint.NewDescendantsArg(s.State, usa),
			`SELECT 1 AS "one" WHERE "store"."store_country" = 'USA'`, "descendants([Store].[Store State],[Store].[USA])",
		},
		{
			"member list", list,
			`SELECT 1 AS "one" WHERE "store"."store_state" IN ('CA', 'WA')`, "members([Store].[USA].[CA],[Store].[USA].[WA])",
		},
		{
			"excluded list", excl,
			`SELECT 1 AS "one" WHERE (NOT ("store"."store_state" = 'CA') OR "store"."store_state" IS NULL)`,
			"!members([Store].[USA].[CA])",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := whereOf(t, func(q *sqlquery.Query) error { return tt.arg.AddConstraint(q, nil, nil) })
			assert.Equal(t, tt.sql, got)
			assert.Equal(t, tt.key, tt.arg.CacheKey())
			assert.Equal(t, s.State, tt.arg.Level())
		})
	}
}

func TestNewMemberListArg_Errors(t *testing.T) {
	s := testutil.NewSales()
	ca := testutil.Path(s.Store, "USA", "CA")
	sf := testutil.Path(s.Store, "USA", "CA", "San Francisco")

	_, err := constraint.NewMemberListArg(nil, false)
	require.Error(t, err)

	_, err = constraint.NewMemberListArg([]core.Member{ca, sf}, false)
	require.ErrorContains(t, err, "mixes levels")

	_, err = constraint.NewMemberListArg([]core.Member{s.Profit}, false)
	var unsupported *core.UnsupportedCalculatedMemberError
	require.ErrorAs(t, err, &unsupported)
}

func TestSetConstraint(t *testing.T) {
	s := testutil.NewSales()
	usa := testutil.Path(s.Store, "USA")
	args := []constraint.CrossJoinArg{constraint.NewDescendantsArg(s.State, usa)}

	bare, err := constraint.NewSetConstraint(args, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "set|default|descendants([Store].[Store State],[Store].[USA])", bare.CacheKey())
	assert.Same(t, constraint.Default, bare.MemberChildrenConstraint(nil))
	assert.Nil(t, bare.Evaluator())

	eval := core.NewContext(s.Cube).WithMembers(testutil.Path(s.Time, 1997), s.UnitSales).WithNonEmpty(true)
	withCtx, err := constraint.NewSetConstraint(args, eval, false)
	require.NoError(t, err)
	assert.NotEqual(t, bare.CacheKey(), withCtx.CacheKey())
	assert.Equal(t, eval, withCtx.Evaluator())

	q := stateQuery(s)
	require.NoError(t, withCtx.AddConstraint(q, s.Cube, nil))
	require.NoError(t, withCtx.AddLevelConstraint(q, s.Cube, nil, s.State))
	sql := q.SQL()
	assert.Contains(t, sql, `"time_by_day"."the_year" = 1997`)
	assert.Contains(t, sql, `"store"."store_country" = 'USA'`)
	assert.Contains(t, sql, `"sales"."store_id" = "store"."store_id"`)
}

func TestMemberExclude(t *testing.T) {
	s := testutil.NewSales()
	usa := testutil.Path(s.Store, "USA")
	ca := testutil.Path(s.Store, "USA", "CA")
	or := testutil.Path(s.Store, "USA", "OR")
	role := core.NewRole("usa").Grant(s.Country, usa)
	eval := core.NewContext(s.Cube).WithMembers(testutil.Path(s.Time, 1997)).WithRole(role).WithNonEmpty(true)
	set, err := constraint.NewSetConstraint(
		[]constraint.CrossJoinArg{constraint.NewDescendantsArg(s.State, usa)}, eval, false)
	require.NoError(t, err)

	c := constraint.NewMemberExclude([]core.Member{ca, or}, s.State, set)

	got := whereOf(t, func(q *sqlquery.Query) error {
		if err := c.AddConstraint(q, s.Cube, nil); err != nil {
			return err
		}
		return c.AddLevelConstraint(q, s.Cube, nil, s.State)
	})
	assert.Equal(t,
		`SELECT 1 AS "one" WHERE (NOT ("store"."store_state" IN ('CA', 'OR')) OR "store"."store_state" IS NULL) `+
			`AND "store"."store_country" = 'USA'`,
		got, "context is dropped; argument and role restrictions stay")
	assert.Contains(t, c.CacheKey(), "exclude|[Store].[Store State]|[Store].[USA].[CA],[Store].[USA].[OR]|set|")
	assert.Equal(t, eval, c.Evaluator())
	assert.False(t, c.SupportsAggTables())

	other := whereOf(t, func(q *sqlquery.Query) error { return c.AddLevelConstraint(q, s.Cube, nil, s.City) })
	assert.Equal(t, `SELECT 1 AS "one" WHERE "store"."store_country" = 'USA'`, other, "role only below the excluded level")
}

func TestMemberExclude_WithoutSet(t *testing.T) {
	s := testutil.NewSales()
	ca := testutil.Path(s.Store, "USA", "CA")
	c := constraint.NewMemberExclude([]core.Member{ca}, s.State, nil)

	got := whereOf(t, func(q *sqlquery.Query) error { return c.AddLevelConstraint(q, nil, nil, s.State) })
	assert.Equal(t, `SELECT 1 AS "one" WHERE (NOT ("store"."store_state" = 'CA') OR "store"."store_state" IS NULL)`, got)
	assert.Nil(t, c.Evaluator())
	assert.Equal(t, "exclude|[Store].[Store State]|[Store].[USA].[CA]|default", c.CacheKey())
}
