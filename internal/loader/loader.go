// Package loader materializes tuples from a member query, crossing the
// SQL-driven columns of each row with enumerated member lists.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Cursor is an open result set. *exec.Rows satisfies it.
type Cursor interface {
	Next() bool
	Value(i int) any
	Err() error
	Close() error
}

// RowReader builds one member from the current row, starting at column
// col, and returns the column after the last one it consumed.
type RowReader interface {
	ReadMember(c Cursor, col int) (core.Member, int, error)
}

// Opener executes the query behind a load.
type Opener func(ctx context.Context) (Cursor, error)

// Target is one position of the loaded tuples: either read from SQL or
// enumerated from a fixed member list.
type Target struct {
	Name    string
	Reader  RowReader
	Members []core.Member
}

// SQLTarget is a target whose members come from result columns.
func SQLTarget(name string, r RowReader) Target {
	return Target{Name: name, Reader: r}
}

// EnumTarget is a target crossed with every row.
func EnumTarget(name string, members []core.Member) Target {
	return Target{Name: name, Members: members}
}

// IsEnumerated reports whether t has a fixed member list.
func (t Target) IsEnumerated() bool { return t.Reader == nil }

// Result is the output of a load.
type Result struct {
	// Tuples has one entry per row and enumerated combination, members in
	// target order.
	Tuples [][]core.Member
	// Partial holds the SQL-driven members of each row. Passing it back to
	// a later load replays it instead of running the query again.
	Partial [][]core.Member
}

// Column returns the members at target position i of every tuple.
func (r *Result) Column(i int) []core.Member {
	out := make([]core.Member, len(r.Tuples))
	for j, t := range r.Tuples {
		out[j] = t[i]
	}
	return out
}

// ResultLoader drives a single load.
type ResultLoader struct {
	targets []Target
	open    Opener
	partial [][]core.Member
	logger  *slog.Logger

	cursor Cursor
	closed bool
}

// Option configures a ResultLoader.
type Option func(*ResultLoader)

// WithPartial replays rows from an earlier load instead of querying.
func WithPartial(partial [][]core.Member) Option {
	return func(l *ResultLoader) { l.partial = partial }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ResultLoader) { l.logger = logger }
}

// New creates a loader over targets. open is only called when at least
// one target is SQL-driven and no partial result was given.
func New(targets []Target, open Opener, opts ...Option) *ResultLoader {
	l := &ResultLoader{targets: targets, open: open}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// Load runs the query, or replays the partial result, and returns every
// tuple. The cursor is closed before Load returns.
func (l *ResultLoader) Load(ctx context.Context) (*Result, error) {
	defer func() { _ = l.Close() }()

	var sqlTargets, enumTargets []int
	for i, t := range l.targets {
		if t.IsEnumerated() {
			enumTargets = append(enumTargets, i)
		} else {
			sqlTargets = append(sqlTargets, i)
		}
	}

	res := &Result{}
	emit := func(row []core.Member) {
		res.Partial = append(res.Partial, row)
		l.cross(res, sqlTargets, enumTargets, row)
	}

	switch {
	case len(l.targets) == 0:
		return res, nil
	case len(sqlTargets) == 0:
		l.cross(res, nil, enumTargets, nil)
		return res, nil
	case l.partial != nil:
		l.logger.Debug("replaying partial result", "targets", l.names(), "rows", len(l.partial))
		for _, row := range l.partial {
			if err := ctx.Err(); err != nil {
				return nil, l.wrap(err)
			}
			if len(row) != len(sqlTargets) {
				return nil, l.wrap(core.Internalf("partial row has %d members, want %d", len(row), len(sqlTargets)))
			}
			emit(row)
		}
		return res, nil
	}

	cursor, err := l.open(ctx)
	if err != nil {
		return nil, l.wrap(err)
	}
	l.cursor = cursor
	for cursor.Next() {
		row := make([]core.Member, len(sqlTargets))
		col := 0
		for j, ti := range sqlTargets {
			m, next, err := l.targets[ti].Reader.ReadMember(cursor, col)
			if err != nil {
				return nil, l.wrap(err)
			}
			row[j] = m
			col = next
		}
		emit(row)
	}
	if err := cursor.Err(); err != nil {
		return nil, l.wrap(err)
	}
	return res, nil
}

// cross emits one tuple per combination of the enumerated targets, with
// the SQL-driven members of row held fixed.
func (l *ResultLoader) cross(res *Result, sqlTargets, enumTargets []int, row []core.Member) {
	for _, ti := range enumTargets {
		if len(l.targets[ti].Members) == 0 {
			return
		}
	}
	idx := make([]int, len(enumTargets))
	for {
		tuple := make([]core.Member, len(l.targets))
		for j, ti := range sqlTargets {
			tuple[ti] = row[j]
		}
		for j, ti := range enumTargets {
			tuple[ti] = l.targets[ti].Members[idx[j]]
		}
		res.Tuples = append(res.Tuples, tuple)

		// advance the rightmost enumerated position first
		k := len(idx) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(l.targets[enumTargets[k]].Members) {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return
		}
	}
}

// Close releases the cursor. It is safe to call more than once.
func (l *ResultLoader) Close() error {
	if l.closed || l.cursor == nil {
		l.closed = true
		return nil
	}
	l.closed = true
	return l.cursor.Close()
}

func (l *ResultLoader) names() []string {
	names := make([]string, len(l.targets))
	for i, t := range l.targets {
		names[i] = t.Name
	}
	return names
}

func (l *ResultLoader) wrap(err error) error {
	return fmt.Errorf("populating member cache for targets [%s]: %w", strings.Join(l.names(), ", "), err)
}
