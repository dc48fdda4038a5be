// Package dialect provides the SQLite SQL dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect configuration. Row values and NULLS LAST
// need SQLite 3.30 or newer.
var SQLite = dialect.NewDialect("sqlite").
	Identifiers(`"`, `"`, `""`, dialect.NormCaseInsensitive).
	DefaultSchema("main").
	NullsOrdering(true).
	TupleIn(true).
	Aggregates("SUM", "COUNT", "AVG", "MIN", "MAX", "TOTAL", "GROUP_CONCAT").
	Build()
