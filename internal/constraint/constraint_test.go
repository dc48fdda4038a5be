package constraint_test

import (
	"testing"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whereOf(t *testing.T, build func(q *sqlquery.Query) error) string {
	t.Helper()
	q := sqlquery.New(dialect.ANSI)
	q.AddSelect("1", "one")
	require.NoError(t, build(q))
	return q.SQL()
}

func TestDefaultMemberConstraint(t *testing.T) {
	s := testutil.NewSales()
	usa := testutil.Path(s.Store, "USA")
	ca := testutil.Path(s.Store, "USA", "CA")
	sf := testutil.Path(s.Store, "USA", "CA", "San Francisco")
	boss := core.NewMember(s.Employee.AllMember(), s.EmployeeLevel, 1, "Sheri")

	tests := []struct {
		name    string
		parents []core.Member
		want    string
	}{
		{"children of all", []core.Member{s.Store.AllMember()}, `SELECT 1 AS "one"`},
		{"non-unique root", []core.Member{usa}, `SELECT 1 AS "one" WHERE "store"."store_country" = 'USA'`},
		{"unique level stops the ancestor walk", []core.Member{ca}, `SELECT 1 AS "one" WHERE "store"."store_state" = 'CA'`},
		{
			"non-unique level constrains ancestors",
			[]core.Member{sf},
			`SELECT 1 AS "one" WHERE ("store"."store_state" = 'CA' AND "store"."store_city" = 'San Francisco')`,
		},
		{
			"siblings batch into one IN",
			[]core.Member{ca, testutil.Path(s.Store, "USA", "OR")},
			`SELECT 1 AS "one" WHERE "store"."store_state" IN ('CA', 'OR')`,
		},
		{"parent-child children", []core.Member{boss}, `SELECT 1 AS "one" WHERE "employee"."supervisor_id" = 1`},
		{
			"parent-child roots",
			[]core.Member{s.Employee.AllMember()},
			`SELECT 1 AS "one" WHERE ("employee"."supervisor_id" IS NULL OR "employee"."supervisor_id" = 0)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := whereOf(t, func(q *sqlquery.Query) error {
				return constraint.Default.AddMemberConstraint(q, s.Cube, nil, tt.parents)
			})
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, constraint.DefaultKey, constraint.Default.CacheKey())
	assert.True(t, constraint.Default.SupportsAggTables())
	assert.Same(t, constraint.Default, constraint.Default.MemberChildrenConstraint(usa))
}

func TestDefaultMemberConstraint_RejectsCalculatedParent(t *testing.T) {
	s := testutil.NewSales()
	usa := testutil.Path(s.Store, "USA")
	west := core.NewCalculatedMember(usa, s.State, "West", nil)

	err := constraint.Default.AddMemberConstraint(sqlquery.New(dialect.ANSI), s.Cube, nil, []core.Member{west})
	var internal *core.InternalError
	assert.ErrorAs(t, err, &internal)
}

func TestChildByName(t *testing.T) {
	s := testutil.NewSales()

	a := constraint.NewChildByName("CA")
	b := constraint.NewChildByName("CA")
	c := constraint.NewChildByName("OR")
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
	assert.NotEqual(t, constraint.DefaultKey, a.CacheKey())
	assert.Equal(t, []string{"CA"}, a.ChildNames())

	tests := []struct {
		name  string
		c     *constraint.ChildByName
		level *core.Level
		want  string
	}{
		{"key column", a, s.State, `SELECT 1 AS "one" WHERE "store"."store_state" = 'CA'`},
		{
			"name column",
			constraint.NewChildByName("January", "February"),
			s.Month,
			`SELECT 1 AS "one" WHERE "time_by_day"."the_month" IN ('January', 'February')`,
		},
		{"null member", constraint.NewChildByName(core.NullMemberName), s.City, `SELECT 1 AS "one" WHERE "store"."store_city" IS NULL`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := whereOf(t, func(q *sqlquery.Query) error {
				return tt.c.AddLevelConstraint(q, s.Cube, nil, tt.level)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func compositeLevel() *core.Level {
	dim := core.NewDimension("Product")
	h := dim.AddHierarchy(core.HierarchySpec{Table: "product", PrimaryKey: "product_id", HasAll: true})
	return h.AddLevel(core.LevelSpec{Name: "SKU", KeyColumns: []string{"brand", "sku"}, Unique: true})
}

func TestChildByKey_Composite(t *testing.T) {
	level := compositeLevel()
	c := constraint.NewChildByKey(core.CompositeKey{"Acme", 1}, core.CompositeKey{"Acme", 2})
	assert.Equal(t, []string{"Acme 1", "Acme 2"}, c.ChildNames())

	got := whereOf(t, func(q *sqlquery.Query) error { return c.AddLevelConstraint(q, nil, nil, level) })
	assert.Equal(t,
		`SELECT 1 AS "one" WHERE (("product"."brand" = 'Acme' AND "product"."sku" = 1) OR `+
			`("product"."brand" = 'Acme' AND "product"."sku" = 2))`, got)

	tupleIn := dialect.NewDialect("tuples").
		Identifiers(`"`, `"`, `""`, dialect.NormCaseSensitive).
		TupleIn(true).
		Build()
	q := sqlquery.New(tupleIn)
	q.AddSelect("1", "one")
	require.NoError(t, c.AddLevelConstraint(q, nil, nil, level))
	assert.Equal(t,
		`SELECT 1 AS "one" WHERE ("product"."brand", "product"."sku") IN (('Acme', 1), ('Acme', 2))`, q.SQL())

	err := constraint.NewChildByName("Acme 1").AddLevelConstraint(sqlquery.New(dialect.ANSI), nil, nil, level)
	assert.Error(t, err)
}

func TestMemberListPredicate_Exclude(t *testing.T) {
	s := testutil.NewSales()
	ca := testutil.Path(s.Store, "USA", "CA")
	or := testutil.Path(s.Store, "USA", "OR")

	got := constraint.MemberListPredicate(dialect.ANSI, s.Cube, nil, []core.Member{ca, or}, true)
	assert.Equal(t, `(NOT ("store"."store_state" IN ('CA', 'OR')) OR "store"."store_state" IS NULL)`, got)

	assert.Equal(t, "1 = 0", constraint.MemberListPredicate(dialect.ANSI, s.Cube, nil, nil, false))
	assert.Equal(t, "", constraint.MemberListPredicate(dialect.ANSI, s.Cube, nil, nil, true))
}

func TestLevelColumn_AggStar(t *testing.T) {
	s := testutil.NewSales()
	agg := core.NewAggStar("agg_year_sales", "agg")
	agg.MapColumn(s.Cube.StarKeyColumn(s.Year), "year")

	assert.Equal(t, `"agg"."year"`, constraint.LevelColumn(dialect.ANSI, s.Cube, agg, s.Year, "the_year"))
	assert.Equal(t, `"time_by_day"."quarter"`, constraint.LevelColumn(dialect.ANSI, s.Cube, agg, s.Quarter, "quarter"))
	assert.Equal(t, `"time_by_day"."the_year"`, constraint.LevelColumn(dialect.ANSI, s.Cube, nil, s.Year, "the_year"))
}

func TestAddRoleAccessConstraints(t *testing.T) {
	s := testutil.NewSales()
	ca := testutil.Path(s.Store, "USA", "CA")
	role := core.NewRole("california").Grant(s.State, ca)

	tests := []struct {
		name  string
		level *core.Level
		want  string
	}{
		{"below the grant", s.City, `SELECT 1 AS "one" WHERE "store"."store_state" = 'CA'`},
		{"at the grant", s.State, `SELECT 1 AS "one" WHERE "store"."store_state" = 'CA'`},
		{"above the grant", s.Country, `SELECT 1 AS "one" WHERE "store"."store_country" = 'USA'`},
		{"other hierarchy", s.Year, `SELECT 1 AS "one"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := whereOf(t, func(q *sqlquery.Query) error {
				constraint.AddRoleAccessConstraints(q, s.Cube, nil, role, tt.level)
				return nil
			})
			assert.Equal(t, tt.want, got)
		})
	}
}
