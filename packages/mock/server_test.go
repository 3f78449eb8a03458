package mock

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
)

func newSet(t *testing.T) *intercept.RuleSet {
	t.Helper()
	set := intercept.NewRuleSet(intercept.ModeFail)
	require.NoError(t, set.RegisterFixture("GET", "/api/ingredients",
		fixture.New("ingredients.json", []byte(`{"success": true, "data": []}`))))
	require.NoError(t, set.RegisterFixture("POST", "/api/orders",
		fixture.New("order.json", []byte(`{"success": true}`), fixture.WithStatus(201))))
	return set
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_ServesFixtures(t *testing.T) {
	srv := NewServer(newSet(t))

	rec := do(t, srv, http.MethodGet, "/api/ingredients")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success": true, "data": []}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/orders")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_UnmockedRequest(t *testing.T) {
	srv := NewServer(newSet(t))

	rec := do(t, srv, http.MethodGet, "/api/auth/user")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "unmocked request: GET /api/auth/user")
}

func TestServer_Preflight(t *testing.T) {
	srv := NewServer(newSet(t))

	rec := do(t, srv, http.MethodOptions, "/api/orders")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_AdminJournal(t *testing.T) {
	set := newSet(t)
	srv := NewServer(set)

	do(t, srv, http.MethodGet, "/api/ingredients")
	do(t, srv, http.MethodGet, "/api/orders/feed")

	rec := do(t, srv, http.MethodGet, AdminPrefix+"/requests")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int              `json:"count"`
		Requests []intercept.Call `json:"requests"`
		Unmocked []intercept.Call `json:"unmocked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count, "admin calls are not journaled")
	assert.Equal(t, "GET /api/ingredients", body.Requests[0].Rule)
	require.Len(t, body.Unmocked, 1)
	assert.Equal(t, "/api/orders/feed", body.Unmocked[0].Path)

	rec = do(t, srv, http.MethodPost, AdminPrefix+"/reset")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, set.Calls())
	assert.Len(t, set.Rules(), 2, "reset keeps the routes")
}

func TestServer_AdminRoutes(t *testing.T) {
	rec := do(t, NewServer(newSet(t)), http.MethodGet, AdminPrefix+"/routes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mode   string   `json:"mode"`
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fail", body.Mode)
	assert.Equal(t, []string{"GET /api/ingredients", "POST /api/orders"}, body.Routes)
}

func TestServer_Delay(t *testing.T) {
	srv := NewServer(newSet(t), WithDelay(30*time.Millisecond))

	start := time.Now()
	rec := do(t, srv, http.MethodGet, "/api/ingredients")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	start = time.Now()
	do(t, srv, http.MethodGet, AdminPrefix+"/routes")
	assert.Less(t, time.Since(start), 30*time.Millisecond, "admin endpoints are not delayed")
}

func TestServer_Serve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(newSet(t)).Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/ingredients")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"success"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_Addr(t *testing.T) {
	assert.Equal(t, ":3001", NewServer(newSet(t)).Addr())
	assert.Equal(t, ":8080", NewServer(newSet(t), WithPort(8080)).Addr())
}
