package testutil

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/pkg/adapter"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/stretchr/testify/require"
)

// MockAdapter is an adapter over a sqlmock connection that renders SQL in
// the ANSI dialect.
type MockAdapter struct {
	adapter.BaseSQLAdapter
}

var _ adapter.Adapter = (*MockAdapter)(nil)

// NewMockAdapter returns an adapter whose statements are matched
// literally against the expectations of the returned mock.
func NewMockAdapter(t testing.TB) (*MockAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &MockAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db}}, mock
}

func (m *MockAdapter) Connect(context.Context, core.AdapterConfig) error { return nil }

func (m *MockAdapter) GetTableMetadata(_ context.Context, table string) (*core.TableMetadata, error) {
	return &core.TableMetadata{Name: table}, nil
}

func (m *MockAdapter) LoadCSV(context.Context, string, string) error { return nil }

func (m *MockAdapter) Dialect() *dialect.Dialect { return dialect.ANSI }
