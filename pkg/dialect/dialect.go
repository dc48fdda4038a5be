// Package dialect renders SQL fragments for a specific database: quoted
// identifiers, literals, placeholders and ORDER BY items.
//
// Concrete dialects register themselves from pkg/adapters/*/dialect so the
// rendering rules can be used without pulling in a database driver.
package dialect

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Re-exported configuration constants so dialect packages only import this one.
const (
	NormLowercase       = core.NormLowercase
	NormUppercase       = core.NormUppercase
	NormCaseSensitive   = core.NormCaseSensitive
	NormCaseInsensitive = core.NormCaseInsensitive

	PlaceholderQuestion = core.PlaceholderQuestion
	PlaceholderDollar   = core.PlaceholderDollar
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	nullsOrdering   bool
	tupleIn         bool
	booleanLiterals bool

	aggregates    map[string]struct{}
	reservedWords map[string]struct{} // All keywords that need quoting as identifiers
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	aggregates := make([]string, 0, len(d.aggregates))
	for f := range d.aggregates {
		aggregates = append(aggregates, f)
	}
	return &core.DialectConfig{
		Name:                  d.Name,
		Identifiers:           d.Identifiers,
		DefaultSchema:         d.DefaultSchema,
		Placeholder:           d.Placeholder,
		SupportsNullsOrdering: d.nullsOrdering,
		SupportsTupleIn:       d.tupleIn,
		BooleanLiterals:       d.booleanLiterals,
		Aggregates:            aggregates,
	}
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// IsAggregate returns true if the function is an aggregate function.
func (d *Dialect) IsAggregate(name string) bool {
	_, ok := d.aggregates[d.NormalizeName(name)]
	return ok
}

// SupportsTupleIn reports whether row-value IN lists are allowed.
func (d *Dialect) SupportsTupleIn() bool { return d.tupleIn }

// SupportsNullsOrdering reports whether ORDER BY accepts NULLS FIRST/LAST.
func (d *Dialect) SupportsNullsOrdering() bool { return d.nullsOrdering }

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[d.NormalizeName(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QuoteTable quotes a possibly schema-qualified table name.
func (d *Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// Column renders alias.column with both parts quoted. An empty alias
// renders the bare column.
func (d *Dialect) Column(alias, column string) string {
	if alias == "" {
		return d.QuoteIdentifier(column)
	}
	return d.QuoteIdentifier(alias) + "." + d.QuoteIdentifier(column)
}

// QuoteString renders a string literal, doubling embedded quotes.
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a member key or other value as a SQL literal.
func (d *Dialect) Literal(v any) string {
	v = core.NormalizeKey(v)
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "NULL"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return d.QuoteString(x)
	case bool:
		switch {
		case d.booleanLiterals && x:
			return "TRUE"
		case d.booleanLiterals:
			return "FALSE"
		case x:
			return "1"
		default:
			return "0"
		}
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return "DATE " + d.QuoteString(x.Format(time.DateOnly))
		}
		return "TIMESTAMP " + d.QuoteString(x.Format("2006-01-02 15:04:05.999999"))
	default:
		if core.IsNullKey(x) {
			return "NULL"
		}
		return d.QuoteString(fmt.Sprint(x))
	}
}

// OrderItem renders one ORDER BY item. Nullable expressions sort NULLs
// last, using a CASE prefix where the dialect has no NULLS LAST.
func (d *Dialect) OrderItem(expr string, ascending, nullable bool) string {
	dir := " ASC"
	if !ascending {
		dir = " DESC"
	}
	if !nullable {
		return expr + dir
	}
	if d.nullsOrdering {
		return expr + dir + " NULLS LAST"
	}
	return "CASE WHEN " + expr + " IS NULL THEN 1 ELSE 0 END, " + expr + dir
}

// ---------- Builder ----------

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: core.IdentifierConfig{
				Quote:         `"`,
				QuoteEnd:      `"`,
				Escape:        `""`,
				Normalization: core.NormLowercase,
			},
			aggregates:    make(map[string]struct{}),
			reservedWords: make(map[string]struct{}),
		},
	}
}

// New creates a dialect builder from a DialectConfig.
func New(cfg *core.DialectConfig) *Builder {
	b := NewDialect(cfg.Name)
	b.dialect.Identifiers = cfg.Identifiers
	b.dialect.DefaultSchema = cfg.DefaultSchema
	b.dialect.Placeholder = cfg.Placeholder
	b.dialect.nullsOrdering = cfg.SupportsNullsOrdering
	b.dialect.tupleIn = cfg.SupportsTupleIn
	b.dialect.booleanLiterals = cfg.BooleanLiterals
	return b.Aggregates(cfg.Aggregates...)
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// Aggregates registers aggregate function names.
func (b *Builder) Aggregates(funcs ...string) *Builder {
	for _, f := range funcs {
		b.dialect.aggregates[b.dialect.NormalizeName(f)] = struct{}{}
	}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// NullsOrdering enables NULLS FIRST/LAST in ORDER BY.
func (b *Builder) NullsOrdering(enabled bool) *Builder {
	b.dialect.nullsOrdering = enabled
	return b
}

// TupleIn enables row-value IN predicates.
func (b *Builder) TupleIn(enabled bool) *Builder {
	b.dialect.tupleIn = enabled
	return b
}

// BooleanLiterals renders booleans as TRUE/FALSE.
func (b *Builder) BooleanLiterals(enabled bool) *Builder {
	b.dialect.booleanLiterals = enabled
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[b.dialect.NormalizeName(w)] = struct{}{}
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
