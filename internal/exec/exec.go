// Package exec runs member and tuple queries through a database adapter
// and hands back a cursor with typed accessors.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapolap/internal/metrics"
	"github.com/leapstack-labs/leapolap/pkg/adapter"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

var (
	// ErrCanceled is returned when the caller's context was canceled.
	ErrCanceled = errors.New("query canceled")
	// ErrTimeout is returned when the caller's context deadline passed.
	ErrTimeout = errors.New("query timed out")
)

// ExecutionError is a failed statement together with what it was for.
type ExecutionError struct {
	Purpose string
	SQL     string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: executing %q: %v", e.Purpose, e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs queries against one adapter.
type Executor struct {
	adapter adapter.Adapter
	logger  *slog.Logger
}

// New creates an executor. A nil logger discards output.
func New(a adapter.Adapter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{adapter: a, logger: logger}
}

// Dialect is the dialect queries for this executor are built in.
func (e *Executor) Dialect() *dialect.Dialect { return e.adapter.Dialect() }

// NewQuery starts a query in the executor's dialect.
func (e *Executor) NewQuery() *sqlquery.Query { return sqlquery.New(e.Dialect()) }

// Execute runs q. The purpose names the load in logs, metrics and errors.
// A query marked unsupported is refused without touching the database.
func (e *Executor) Execute(ctx context.Context, q *sqlquery.Query, purpose string) (*Rows, error) {
	if !q.IsSupported() {
		return nil, &ExecutionError{Purpose: purpose, SQL: q.SQL(), Err: fmt.Errorf("unsupported query: %s", q.UnsupportedReason())}
	}
	return e.ExecuteSQL(ctx, q.SQL(), purpose)
}

// ExecuteSQL runs a rendered statement.
func (e *Executor) ExecuteSQL(ctx context.Context, sqlText, purpose string) (*Rows, error) {
	e.logger.Debug("executing sql", "purpose", purpose, "sql", sqlText)
	start := time.Now()
	raw, err := e.adapter.Query(ctx, sqlText)
	if err != nil {
		metrics.SQLExecutions.WithLabelValues(purpose, "failed").Inc()
		return nil, &ExecutionError{Purpose: purpose, SQL: sqlText, Err: contextError(ctx, err)}
	}
	cols, err := raw.Columns()
	if err != nil {
		_ = raw.Close()
		metrics.SQLExecutions.WithLabelValues(purpose, "failed").Inc()
		return nil, &ExecutionError{Purpose: purpose, SQL: sqlText, Err: err}
	}
	return &Rows{
		ctx:     ctx,
		rows:    raw.Rows,
		purpose: purpose,
		sql:     sqlText,
		start:   start,
		logger:  e.logger,
		values:  make([]any, len(cols)),
		columns: cols,
	}, nil
}

// contextError maps a failure caused by ctx to ErrCanceled or ErrTimeout,
// keeping the driver error in the chain.
func contextError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return errors.Join(ErrCanceled, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// Rows is an open cursor. Close may be called any number of times.
type Rows struct {
	ctx     context.Context
	rows    *sql.Rows
	purpose string
	sql     string
	start   time.Time
	logger  *slog.Logger

	columns []string
	values  []any
	count   int
	err     error
	closed  bool
}

// Next advances to the next row. It returns false at the end of the
// result or on failure; Err tells the two apart.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = contextError(r.ctx, err)
		return false
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = contextError(r.ctx, err)
		}
		return false
	}
	ptrs := make([]any, len(r.values))
	for i := range r.values {
		ptrs[i] = &r.values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = err
		return false
	}
	r.count++
	return true
}

// Columns lists the result column names.
func (r *Rows) Columns() []string { return r.columns }

// ColumnCount is the number of columns per row.
func (r *Rows) ColumnCount() int { return len(r.values) }

// Value returns column i of the current row. Byte slices come back as
// strings.
func (r *Rows) Value(i int) any {
	if b, ok := r.values[i].([]byte); ok {
		return string(b)
	}
	return r.values[i]
}

// Int64 returns column i as an integer.
func (r *Rows) Int64(i int) (int64, error) {
	switch v := r.Value(i).(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("column %d is null", i)
	default:
		return 0, fmt.Errorf("column %d: cannot convert %T to int64", i, v)
	}
}

// String returns column i rendered as text; NULL renders as "".
func (r *Rows) String(i int) string {
	switch v := r.Value(i).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// RowCount is the number of rows read so far.
func (r *Rows) RowCount() int { return r.count }

// Err is the error that stopped iteration, wrapped with the query context.
func (r *Rows) Err() error {
	if r.err == nil {
		return nil
	}
	return &ExecutionError{Purpose: r.purpose, SQL: r.sql, Err: r.err}
}

// Close releases the cursor and records the execution.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()

	status := "success"
	if r.err != nil || err != nil {
		status = "failed"
	}
	elapsed := time.Since(r.start)
	metrics.SQLExecutions.WithLabelValues(r.purpose, status).Inc()
	metrics.SQLDuration.WithLabelValues(r.purpose).Observe(elapsed.Seconds())
	metrics.SQLRows.WithLabelValues(r.purpose).Add(float64(r.count))
	r.logger.Debug("sql executed", "purpose", r.purpose, "rows", r.count, "exec_ms", elapsed.Milliseconds())
	return err
}
