// Package sqlquery assembles SELECT statements clause by clause. Member
// readers and constraints contribute to one Query; SQL renders it.
package sqlquery

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

type selectItem struct {
	expr  string
	alias string
}

type fromItem struct {
	table string
	alias string
	join  string // ON condition; empty for comma-joined tables
}

// Query is a SELECT statement under construction.
type Query struct {
	d        *dialect.Dialect
	distinct bool
	selects  []selectItem
	from     []fromItem
	aliases  map[string]bool
	where    []string
	groupBy  []string
	having   []string
	orderBy  []string
	limit    int

	unsupported string
}

// New creates an empty query rendered with d.
func New(d *dialect.Dialect) *Query {
	return &Query{d: d, aliases: make(map[string]bool)}
}

func (q *Query) Dialect() *dialect.Dialect { return q.d }

// SetDistinct toggles SELECT DISTINCT.
func (q *Query) SetDistinct(distinct bool) { q.distinct = distinct }

// SetLimit caps the result size. Zero or less means no limit.
func (q *Query) SetLimit(n int) { q.limit = n }

func (q *Query) Limit() int { return q.limit }

// AddSelect appends a select item and returns its alias. An empty alias
// is replaced by a positional one ("c0", "c1", ...).
func (q *Query) AddSelect(expr, alias string) string {
	if alias == "" {
		alias = "c" + strconv.Itoa(len(q.selects))
	}
	q.selects = append(q.selects, selectItem{expr: expr, alias: alias})
	return alias
}

// SelectCount is the number of select items added so far.
func (q *Query) SelectCount() int { return len(q.selects) }

// HasFrom reports whether a table is already in FROM under alias.
func (q *Query) HasFrom(alias string) bool { return q.aliases[alias] }

// AddFrom adds a comma-joined table. It returns false if the alias is
// already present, in which case nothing changes.
func (q *Query) AddFrom(table, alias string) bool {
	if alias == "" {
		alias = table
	}
	if q.aliases[alias] {
		return false
	}
	q.aliases[alias] = true
	q.from = append(q.from, fromItem{table: table, alias: alias})
	return true
}

// AddJoin inner-joins a table on a condition. Like AddFrom it is a no-op
// for an alias already present.
func (q *Query) AddJoin(table, alias, on string) bool {
	if alias == "" {
		alias = table
	}
	if q.aliases[alias] {
		return false
	}
	q.aliases[alias] = true
	q.from = append(q.from, fromItem{table: table, alias: alias, join: on})
	return true
}

// AddWhere appends a condition. Conditions are ANDed; a repeated
// condition is kept once.
func (q *Query) AddWhere(cond string) {
	if cond = strings.TrimSpace(cond); cond == "" {
		return
	}
	for _, w := range q.where {
		if w == cond {
			return
		}
	}
	q.where = append(q.where, cond)
}

func (q *Query) AddGroupBy(expr string) {
	for _, g := range q.groupBy {
		if g == expr {
			return
		}
	}
	q.groupBy = append(q.groupBy, expr)
}

func (q *Query) AddHaving(cond string) {
	if cond = strings.TrimSpace(cond); cond != "" {
		q.having = append(q.having, cond)
	}
}

// AddOrderBy appends (or with prepend, inserts first) an ORDER BY item.
// Nullable expressions sort NULLs last.
func (q *Query) AddOrderBy(expr string, ascending, prepend, nullable bool) {
	item := q.d.OrderItem(expr, ascending, nullable)
	for _, o := range q.orderBy {
		if o == item {
			return
		}
	}
	if prepend {
		q.orderBy = append([]string{item}, q.orderBy...)
		return
	}
	q.orderBy = append(q.orderBy, item)
}

// MarkUnsupported records that the query cannot be executed natively.
// The first reason wins.
func (q *Query) MarkUnsupported(reason string) {
	if q.unsupported == "" {
		q.unsupported = reason
	}
}

func (q *Query) IsSupported() bool { return q.unsupported == "" }

func (q *Query) UnsupportedReason() string { return q.unsupported }

// SQL renders the statement.
func (q *Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	for i, s := range q.selects {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.expr)
		b.WriteString(" AS ")
		b.WriteString(q.d.QuoteIdentifier(s.alias))
	}

	if len(q.from) > 0 {
		b.WriteString(" FROM ")
		for i, f := range q.from {
			switch {
			case i == 0:
			case f.join != "":
				b.WriteString(" JOIN ")
			default:
				b.WriteString(", ")
			}
			b.WriteString(q.d.QuoteTable(f.table))
			if f.alias != f.table {
				b.WriteString(" AS ")
				b.WriteString(q.d.QuoteIdentifier(f.alias))
			}
			if i > 0 && f.join != "" {
				b.WriteString(" ON ")
				b.WriteString(f.join)
			}
		}
	}

	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	if len(q.having) > 0 {
		b.WriteString(" HAVING ")
		b.WriteString(strings.Join(q.having, " AND "))
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	return b.String()
}

func (q *Query) String() string { return q.SQL() }
