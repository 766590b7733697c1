package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"elasticgrid/kernel"
	"elasticgrid/store"
)

func newTestServer(t *testing.T) (*Server, *kernel.Engine) {
	t.Helper()
	st := store.NewJSONSnapshotStore(filepath.Join(t.TempDir(), "state.json"))
	engine, err := kernel.NewEngine(st, nil, nil)
	require.NoError(t, err)
	srv := NewServer(engine, 0, "test-secret")
	return srv, engine
}

func TestHandleTickMalformedBodyAnswersWait(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tick", bytes.NewBufferString("not json at all"))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var action kernel.Action
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &action))
	require.Equal(t, kernel.ActionWait, action.Kind)
}

func TestHandleTickTrailingJunkTruncated(t *testing.T) {
	srv, _ := newTestServer(t)
	body := []byte(`{"equity":1000,"balance":1000,"ask":100,"bid":99.9}` + "\x00\x00\x00")
	req := httptest.NewRequest(http.MethodPost, "/api/tick", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleControlRequiresBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/control", bytes.NewBufferString(`{"cyclic":true}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleControlWithValidToken(t *testing.T) {
	srv, engine := newTestServer(t)
	guard := newAuthGuard("test-secret")
	token, err := guard.IssueToken("operator", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/control", bytes.NewBufferString(`{"cyclic":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, engine.Snapshot().Runtime.CyclicMode)
}

func TestHandleUIData(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ui-data", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.Empty(t, body.Error)
	require.False(t, body.Buy)
	require.False(t, body.Sell)
	require.NotEmpty(t, body.Version)
}
