package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "foodmart",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=foodmart user=user password=pass sslmode=disable",
		},
		{
			name: "options override sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Database: "olap",
				Options:  map[string]string{"sslmode": "require", "application_name": "leapolap"},
			},
			expected: "host=prod.example.com port=5432 dbname=olap application_name=leapolap sslmode=require",
		},
		{
			name:     "quoted password and schema",
			config:   adapter.Config{Database: "mydb", Password: "it's secret", Schema: "sales"},
			expected: `host=localhost port=5432 dbname=mydb password='it\'s secret' search_path=sales sslmode=disable`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildDSN(tt.config))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "store_state", sanitizeIdentifier(" Store State "))
	assert.Equal(t, "sales_region", sanitizeIdentifier("sales-region"))
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := adp.GetTableMetadata(ctx, "store")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.ErrorIs(t, adp.LoadCSV(ctx, "store", "/tmp/store.csv"), adapter.ErrNotConnected)
}

func TestAdapter_GetTableMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`table_schema = \$1 AND table_name = \$2`).
		WithArgs("public", "store").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("store_id", "integer", "NO", 1))

	adp := New(nil)
	adp.DB = db

	meta, err := adp.GetTableMetadata(context.Background(), "store")
	require.NoError(t, err)
	assert.Equal(t, "public", meta.Schema)
	assert.True(t, meta.HasColumn("store_id"))
}

func TestAdapter_Registry(t *testing.T) {
	factory, ok := adapter.Get("postgres")
	require.True(t, ok)

	pg, ok := factory(nil).(*Adapter)
	require.True(t, ok)
	assert.Equal(t, "postgres", pg.Dialect().Name)
	assert.Equal(t, "$2", pg.Dialect().FormatPlaceholder(2))
}
