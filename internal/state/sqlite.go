package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore is the change log in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite change log instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// Record appends an event and returns it with its id and sequence number.
func (s *SQLiteStore) Record(ctx context.Context, kind EventKind, hierarchy, member, reason string) (*ChangeEvent, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	ev := &ChangeEvent{
		ID:        generateID(),
		Kind:      kind,
		Hierarchy: hierarchy,
		Member:    member,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (id, kind, hierarchy, member, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Hierarchy, ev.Member, ev.Reason, ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record change event: %w", err)
	}
	if ev.Seq, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read change event sequence: %w", err)
	}
	return ev, nil
}

// Since returns up to limit events after seq, oldest first. A limit of
// zero or less returns all of them.
func (s *SQLiteStore) Since(ctx context.Context, seq int64, limit int) ([]ChangeEvent, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, kind, hierarchy, member, reason, created_at FROM change_log WHERE seq > ? ORDER BY seq LIMIT ?`,
		seq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []ChangeEvent
	for rows.Next() {
		var (
			ev   ChangeEvent
			kind string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &kind, &ev.Hierarchy, &ev.Member, &ev.Reason, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}
		ev.Kind = EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	return events, nil
}

// LatestSeq returns the sequence number of the newest event, or 0.
func (s *SQLiteStore) LatestSeq(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM change_log`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read change log: %w", err)
	}
	return seq.Int64, nil
}

// Prune deletes events created before cutoff and returns how many went.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM change_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune change log: %w", err)
	}
	return res.RowsAffected()
}
