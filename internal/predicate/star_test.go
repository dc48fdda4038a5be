package predicate_test

import (
	"testing"

	"github.com/leapstack-labs/leapolap/internal/predicate"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/stretchr/testify/assert"
)

func TestStarPredicates(t *testing.T) {
	star := core.NewStar("sales_fact", "sales")
	year := star.AddColumn("time_by_day", "t", "the_year")
	state := star.AddColumn("store", "s", "store_state")

	tests := []struct {
		name    string
		pred    predicate.StarPredicate
		wantSQL string
		match   map[int]any
		miss    map[int]any
	}{
		{
			name:    "value",
			pred:    predicate.NewValue(year, 1997),
			wantSQL: `"t"."the_year" = 1997`,
			match:   map[int]any{0: int64(1997)},
			miss:    map[int]any{0: 1998},
		},
		{
			name:    "null value",
			pred:    predicate.NewValue(state, nil),
			wantSQL: `"s"."store_state" IS NULL`,
			match:   map[int]any{1: core.NullKey},
			miss:    map[int]any{1: "CA"},
		},
		{
			name:    "closed-open range",
			pred:    predicate.NewRange(year, 1997, true, 1999, false),
			wantSQL: `("t"."the_year" >= 1997 AND "t"."the_year" < 1999)`,
			match:   map[int]any{0: 1998},
			miss:    map[int]any{0: 1999},
		},
		{
			name:    "open lower bound",
			pred:    predicate.NewRange(year, nil, false, 1997, true),
			wantSQL: `"t"."the_year" <= 1997`,
			match:   map[int]any{0: 1990},
			miss:    map[int]any{0: 1998},
		},
		{
			name:    "list with null",
			pred:    predicate.NewList(state, "CA", "OR", nil, "CA"),
			wantSQL: `("s"."store_state" IN ('CA', 'OR') OR "s"."store_state" IS NULL)`,
			match:   map[int]any{1: core.NullKey},
			miss:    map[int]any{1: "WA"},
		},
		{
			name:    "and",
			pred:    predicate.NewAnd(predicate.NewValue(year, 1997), predicate.NewValue(state, "CA")),
			wantSQL: `("t"."the_year" = 1997 AND "s"."store_state" = 'CA')`,
			match:   map[int]any{0: 1997, 1: "CA"},
			miss:    map[int]any{0: 1997, 1: "OR"},
		},
		{
			name:    "or",
			pred:    predicate.NewOr(predicate.NewValue(year, 1997), predicate.NewValue(state, "CA")),
			wantSQL: `("t"."the_year" = 1997 OR "s"."store_state" = 'CA')`,
			match:   map[int]any{0: 1998, 1: "CA"},
			miss:    map[int]any{0: 1998, 1: "OR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSQL, tt.pred.ToSQL(dialect.ANSI))
			assert.True(t, tt.pred.Evaluate(tt.match))
			assert.False(t, tt.pred.Evaluate(tt.miss))
		})
	}
}

func TestJunctionBitKey(t *testing.T) {
	star := core.NewStar("sales_fact", "sales")
	a := star.AddColumn("store", "s", "store_country")
	b := star.AddColumn("store", "s", "store_state")

	p := predicate.NewOr(
		predicate.NewAnd(predicate.NewValue(a, "USA"), predicate.NewValue(b, "CA")),
		predicate.NewValue(b, "BC"),
	)
	assert.Equal(t, []int{0, 1}, p.BitKey().Positions())
	assert.Len(t, p.ConstrainedColumns(), 2)
}

func TestInList(t *testing.T) {
	assert.Equal(t, "1 = 0", predicate.InList(dialect.ANSI, "x", nil))
	assert.Equal(t, "x IS NULL", predicate.InList(dialect.ANSI, "x", []any{core.NullKey}))
	assert.Equal(t, "x = 'a'", predicate.InList(dialect.ANSI, "x", []any{"a"}))
}
