package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	t.Run("nil DB", func(t *testing.T) {
		base := &BaseSQLAdapter{}
		assert.NoError(t, base.Close())
	})

	t.Run("open DB", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()

		base := &BaseSQLAdapter{DB: db}
		assert.NoError(t, base.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		connected bool
		errMsg    string
	}{
		{
			name:   "without connection",
			errMsg: "database connection not established",
		},
		{
			name:      "success",
			connected: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE store").WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name:      "driver error",
			connected: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE store").WillReturnError(assert.AnError)
			},
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.connected {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				tt.setupMock(mock)
				base.DB = db
			}

			err := base.Exec(context.Background(), "CREATE TABLE store (id INT)")
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT store_id").
		WillReturnRows(sqlmock.NewRows([]string{"store_id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery("SELECT broken").WillReturnError(assert.AnError)

	base := &BaseSQLAdapter{DB: db}

	rows, err := base.Query(context.Background(), "SELECT store_id FROM store")
	require.NoError(t, err)
	count := 0
	for rows.Next() {
		count++
	}
	require.NoError(t, rows.Err())
	_ = rows.Close()
	assert.Equal(t, 2, count)

	rows, err = base.Query(context.Background(), "SELECT broken")
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.Contains(t, err.Error(), "failed to execute query")

	_, err = (&BaseSQLAdapter{}).Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestBaseSQLAdapter_InformationSchemaColumns(t *testing.T) {
	d := dialect.NewDialect("pg").DefaultSchema("public").PlaceholderStyle(dialect.PlaceholderDollar).Build()

	t.Run("columns found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`table_schema = \$1 AND table_name = \$2`).
			WithArgs("public", "store").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
				AddRow("store_id", "integer", "NO", 1).
				AddRow("store_state", "text", "YES", 2))

		base := &BaseSQLAdapter{DB: db}
		meta, err := base.InformationSchemaColumns(context.Background(), "store", d)
		require.NoError(t, err)
		assert.Equal(t, "public", meta.Schema)
		require.Len(t, meta.Columns, 2)
		assert.False(t, meta.Columns[0].Nullable)
		assert.True(t, meta.HasColumn("STORE_STATE"))
	})

	t.Run("missing table", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("information_schema.columns").
			WithArgs("sales", "nope").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

		base := &BaseSQLAdapter{DB: db}
		_, err = base.InformationSchemaColumns(context.Background(), "sales.nope", d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table sales.nope not found")
	})
}

func TestParseQualifiedName(t *testing.T) {
	d := dialect.NewDialect("x").DefaultSchema("main").Build()

	schema, name := ParseQualifiedName("sales.fact", d)
	assert.Equal(t, "sales", schema)
	assert.Equal(t, "fact", name)

	schema, name = ParseQualifiedName("fact", d)
	assert.Equal(t, "main", schema)
	assert.Equal(t, "fact", name)
}
