package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapolap/internal/engine"
	"github.com/leapstack-labs/leapolap/internal/schema"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countryCol = `"store"."store_country"`

var countriesSQL = `SELECT DISTINCT "store"."store_country" AS "c0" FROM "store" ORDER BY ` +
	"CASE WHEN " + countryCol + " IS NULL THEN 1 ELSE 0 END, " + countryCol + " ASC"

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine, sqlmock.Sqlmock) {
	t.Helper()
	s, err := schema.Build(schema.Sample())
	require.NoError(t, err)
	a, mock := testutil.NewMockAdapter(t)
	eng, err := engine.New(engine.Config{Schema: s, Adapter: a, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	ts := httptest.NewServer(New(Config{Engine: eng, Logger: testutil.NewTestLogger(t)}).Handler())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = eng.Close()
	})
	return ts, eng, mock
}

func expectCountries(mock sqlmock.Sqlmock, names ...string) {
	rows := sqlmock.NewRows([]string{"c0"})
	for _, n := range names {
		rows.AddRow(n)
	}
	mock.ExpectQuery(countriesSQL).WillReturnRows(rows)
}

func get(t *testing.T, ts *httptest.Server, path string, query url.Values) *http.Response {
	t.Helper()
	u := ts.URL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthzAndMetrics(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := get(t, ts, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ts, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCubes(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := get(t, ts, "/api/cubes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cubes := decode[[]struct {
		Name     string   `json:"name"`
		Virtual  bool     `json:"virtual"`
		Measures []string `json:"measures"`
	}](t, resp)
	require.Len(t, cubes, 3)
	assert.Equal(t, "Sales", cubes[0].Name)
	assert.Contains(t, cubes[0].Measures, "Unit Sales")
	assert.True(t, cubes[2].Virtual)
}

func TestLevelMembers(t *testing.T) {
	ts, _, mock := newTestServer(t)
	expectCountries(mock, "Canada", "USA")

	q := url.Values{"level": {"[Store].[Store Country]"}}
	resp := get(t, ts, "/api/cubes/Sales/members", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	members := decode[[]Member](t, resp)
	require.Len(t, members, 2)
	assert.Equal(t, "[Store].[USA]", members[1].UniqueName)
	assert.Equal(t, "[Store].[Store Country]", members[1].Level)

	// second request is served from the cache
	resp = get(t, ts, "/api/cubes/Sales/members", q)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLookupNotFound(t *testing.T) {
	ts, _, mock := newTestServer(t)
	expectCountries(mock, "Canada", "USA")

	resp := get(t, ts, "/api/cubes/Sales/members", url.Values{"level": {"[Store].[Store Country]"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ts, "/api/cubes/Sales/lookup", url.Values{"member": {"[Store].[USA]"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "USA", decode[Member](t, resp).Name)

	resp = get(t, ts, "/api/cubes/Sales/lookup", url.Values{"member": {"[Store].[Atlantis]"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestErrors(t *testing.T) {
	ts, _, _ := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		query   url.Values
		errPart string
	}{
		{"missing level", "/api/cubes/Sales/members", nil, `"level" is required`},
		{"unknown cube", "/api/cubes/Nope/members", url.Values{"level": {"[Store].[Store Country]"}}, "unknown cube"},
		{"bad nonEmpty", "/api/cubes/Sales/members", url.Values{"level": {"x"}, "nonEmpty": {"maybe"}}, "invalid nonEmpty"},
		{"bad lead", "/api/cubes/Sales/lead", url.Values{"member": {"[Time].[1997]"}, "n": {"x"}}, "invalid n"},
		{"no changes log", "/api/changes", nil, "no change log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts, tt.path, tt.query)
			assert.GreaterOrEqual(t, resp.StatusCode, 400)
			body := decode[map[string]string](t, resp)
			assert.Contains(t, body["error"], tt.errPart)
		})
	}
}

func TestPredicate(t *testing.T) {
	ts, _, mock := newTestServer(t)
	expectCountries(mock, "Canada", "USA")
	resp := get(t, ts, "/api/cubes/Sales/members", url.Values{"level": {"[Store].[Store Country]"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	post := func(measure string) PredicateResponse {
		body := strings.NewReader(`{"tuples": [["[Store].[Canada]"], ["[Store].[USA]"]]}`)
		resp, err := http.Post(ts.URL+"/api/cubes/Sales/predicate?measure="+url.QueryEscape(measure), "application/json", body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decode[PredicateResponse](t, resp)
	}

	got := post("Unit Sales")
	assert.True(t, got.Satisfiable)
	assert.Equal(t, 1, got.Groups)
	assert.Contains(t, got.SQL, `"store"."store_country"`)
	assert.Contains(t, got.SQL, `'USA'`)

	got = post("Profit")
	assert.True(t, got.Satisfiable)
	assert.Empty(t, got.SQL)
}

func TestFlushAndEvents(t *testing.T) {
	ts, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = stream.Body.Close() }()
	require.Equal(t, http.StatusOK, stream.StatusCode)

	found := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(stream.Body)
		for sc.Scan() {
			if strings.Contains(sc.Text(), "[Time]") {
				found <- sc.Text()
				return
			}
		}
	}()

	// the subscription is registered once the handler runs; retry the
	// flush until the stream sees it
	deadline := time.After(2 * time.Second)
	for {
		resp, err := http.Post(ts.URL+"/api/flush", "application/json", strings.NewReader(`{"hierarchy":"[Time]","reason":"test"}`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		select {
		case line := <-found:
			assert.Contains(t, line, `"kind":"invalidate"`)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change event received")
		}
	}
}

func TestInvalidateRequiresMember(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/invalidate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, err := schema.Build(schema.Sample())
	require.NoError(t, err)
	a, _ := testutil.NewMockAdapter(t)
	eng, err := engine.New(engine.Config{Schema: s, Adapter: a})
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Config{Engine: eng}).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
