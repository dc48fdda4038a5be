package reader_test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/exec"
	"github.com/leapstack-labs/leapolap/internal/reader"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/stretchr/testify/require"
)

func ord(col string) string {
	return "CASE WHEN " + col + " IS NULL THEN 1 ELSE 0 END, " + col + " ASC"
}

const (
	countryCol = `"store"."store_country"`
	stateCol   = `"store"."store_state"`
)

var (
	countriesSQL = `SELECT DISTINCT "store"."store_country" AS "c0" FROM "store" ORDER BY ` + ord(countryCol)
	statesSQL    = `SELECT DISTINCT "store"."store_country" AS "c0", "store"."store_state" AS "c1" FROM "store"`
	stateOrder   = ` ORDER BY ` + ord(countryCol) + `, ` + ord(stateCol)
)

func statesOf(country string) string {
	return statesSQL + ` WHERE "store"."store_country" = '` + country + `'` + stateOrder
}

type env struct {
	s      *testutil.Sales
	mock   sqlmock.Sqlmock
	exec   *exec.Executor
	cache  *cache.Helper
	source *reader.SqlMemberSource
	reader *reader.SmartMemberReader
}

func newEnv(t *testing.T) *env {
	t.Helper()
	a, mock := testutil.NewMockAdapter(t)
	logger := testutil.NewTestLogger(t)
	s := testutil.NewSales()
	ex := exec.New(a, logger)
	mc, err := cache.NewHelper(s.Store, cache.Options{Logger: logger})
	require.NoError(t, err)
	src := reader.NewSqlMemberSource(s.Store, ex, mc, logger)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return &env{
		s:      s,
		mock:   mock,
		exec:   ex,
		cache:  mc,
		source: src,
		reader: reader.NewSmartMemberReader(src, mc, logger),
	}
}

func (e *env) expectCountries(names ...string) {
	rows := sqlmock.NewRows([]string{"c0"})
	for _, n := range names {
		rows.AddRow(n)
	}
	e.mock.ExpectQuery(countriesSQL).WillReturnRows(rows)
}

func (e *env) expectStates(country string, states ...string) {
	rows := sqlmock.NewRows([]string{"c0", "c1"})
	for _, st := range states {
		rows.AddRow(country, st)
	}
	e.mock.ExpectQuery(statesOf(country)).WillReturnRows(rows)
}

func (e *env) expectStatesLevel(country string, states ...string) {
	rows := sqlmock.NewRows([]string{"c0", "c1"})
	for _, st := range states {
		rows.AddRow(country, st)
	}
	e.mock.ExpectQuery(statesSQL + stateOrder).WillReturnRows(rows)
}
