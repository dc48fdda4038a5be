package dialect

func init() {
	Register(ANSI)
}

// ANSI is the fallback dialect: double-quoted identifiers, CASE-based
// null ordering, no row-value IN.
var ANSI = NewDialect("ansi").
	Identifiers(`"`, `"`, `""`, NormCaseSensitive).
	Aggregates("SUM", "COUNT", "AVG", "MIN", "MAX").
	BooleanLiterals(true).
	Build()
