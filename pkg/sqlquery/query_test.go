package sqlquery

import (
	"testing"

	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/stretchr/testify/assert"
)

func TestQuery_SQL(t *testing.T) {
	d := dialect.NewDialect("test").NullsOrdering(true).Build()

	tests := []struct {
		name  string
		build func(q *Query)
		want  string
	}{
		{
			name: "select from where",
			build: func(q *Query) {
				q.AddSelect(`"s"."store_state"`, "")
				q.AddFrom("store", "s")
				q.AddWhere(`"s"."store_country" = 'USA'`)
			},
			want: `SELECT "s"."store_state" AS "c0" FROM "store" AS "s" WHERE "s"."store_country" = 'USA'`,
		},
		{
			name: "distinct group order limit",
			build: func(q *Query) {
				q.SetDistinct(true)
				q.AddSelect("a", "x")
				q.AddFrom("t", "")
				q.AddGroupBy("a")
				q.AddGroupBy("a")
				q.AddOrderBy("a", true, false, true)
				q.SetLimit(10)
			},
			want: `SELECT DISTINCT a AS "x" FROM "t" GROUP BY a ORDER BY a ASC NULLS LAST LIMIT 10`,
		},
		{
			name: "comma tables and join dedupe",
			build: func(q *Query) {
				q.AddSelect("1", "one")
				q.AddFrom("sales_fact", "f")
				q.AddFrom("sales_fact", "f")
				q.AddJoin("store", "s", `"f"."store_id" = "s"."store_id"`)
				q.AddJoin("store", "s", "ignored")
				q.AddFrom("time_by_day", "t")
			},
			want: `SELECT 1 AS "one" FROM "sales_fact" AS "f" JOIN "store" AS "s" ON "f"."store_id" = "s"."store_id", "time_by_day" AS "t"`,
		},
		{
			name: "prepend order and having",
			build: func(q *Query) {
				q.AddSelect("a", "a")
				q.AddFrom("t", "t")
				q.AddOrderBy("b", true, false, false)
				q.AddOrderBy("a", false, true, false)
				q.AddHaving("COUNT(*) > 1")
				q.AddWhere("  ")
			},
			want: `SELECT a AS "a" FROM "t" HAVING COUNT(*) > 1 ORDER BY a DESC, b ASC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(d)
			tt.build(q)
			assert.Equal(t, tt.want, q.SQL())
		})
	}
}

func TestQuery_Unsupported(t *testing.T) {
	q := New(dialect.ANSI)
	assert.True(t, q.IsSupported())

	q.MarkUnsupported("calculated member in slicer")
	q.MarkUnsupported("second reason")

	assert.False(t, q.IsSupported())
	assert.Equal(t, "calculated member in slicer", q.UnsupportedReason())
}

func TestQuery_HasFrom(t *testing.T) {
	q := New(dialect.ANSI)
	assert.True(t, q.AddFrom("store", "s"))
	assert.False(t, q.AddFrom("other", "s"))
	assert.True(t, q.HasFrom("s"))
	assert.False(t, q.HasFrom("store"))
}
