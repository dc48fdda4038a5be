// Package dialect provides the DuckDB SQL dialect definition.
// It has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/leapolap/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect configuration.
var DuckDB = dialect.NewDialect("duckdb").
	Identifiers(`"`, `"`, `""`, dialect.NormCaseInsensitive).
	DefaultSchema("main").
	NullsOrdering(true).
	TupleIn(true).
	BooleanLiterals(true).
	Aggregates(
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"STDDEV", "STDDEV_POP", "STDDEV_SAMP",
		"VARIANCE", "VAR_POP", "VAR_SAMP",
		"MEDIAN", "MODE", "APPROX_COUNT_DISTINCT",
		"FIRST", "LAST", "ANY_VALUE", "PRODUCT",
	).
	Build()
