package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentbai/tsmcheck/internal/database"
	"github.com/vincentbai/tsmcheck/internal/report"
	"github.com/vincentbai/tsmcheck/internal/validator"
)

const export = `[
	{"name":"A","tabsNumber":2,"date":1,"tag":"t","sessionStartTime":"s","windows":{"w1":{"t1":{"url":"u1","title":"T1","favIconUrl":"f1"},"t2":{"url":"u2","title":"T2","favIconUrl":"f2"}}}},
	{"name":"B","tabsNumber":3,"windows":{"w1":{"t1":{"url":"u1"}},"w2":{"t9":{"url":"u9"}}}}
]`

const exportWithBadSession = `[{"name":"good","tabsNumber":0,"windows":{}},{"name":"bad","date":"notanumber"}]`

func setupTestServer(t *testing.T, config Config) (*Server, *database.Database, func()) {
	t.Helper()

	// Create temporary database
	tmpDir, err := os.MkdirTemp("", "tsmcheck-server-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if config.Address == "" {
		config.Address = "127.0.0.1:0" // Port 0 for testing
	}
	server := NewServer(db, config, nil, nil)

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return server, db, cleanup
}

func postExport(server *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sessions/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.handleValidate(w, req)
	return w
}

type failingStore struct{}

func (failingStore) InsertRun(string, []validator.Result) (string, error) {
	return "", errors.New("disk full")
}

func TestNewServer(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{Workers: 2})
	defer cleanup()

	require.NotNil(t, server)
	assert.NotNil(t, server.store)
	assert.NotNil(t, server.logger)
	assert.NotNil(t, server.metrics)
	assert.Equal(t, "127.0.0.1:0", server.config.Address)
	assert.Equal(t, 2, server.config.Workers)
}

func TestHandleHealthz(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	server.handleHealthz(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestHandleValidateSuccess(t *testing.T) {
	server, db, cleanup := setupTestServer(t, Config{Workers: 4})
	defer cleanup()

	w := postExport(server, export)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var document report.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &document))

	assert.NotEmpty(t, document.RunID)
	assert.Equal(t, validator.Summary{Total: 2, Valid: 1, Invalid: 1}, document.Summary)
	require.Len(t, document.Results, 2)
	assert.Equal(t, "A", document.Results[0].Name)
	assert.True(t, document.Results[0].Valid)
	assert.Equal(t, "B", document.Results[1].Name)
	assert.False(t, document.Results[1].Valid)
	assert.Equal(t, uint(2), document.Results[1].Counted)
	assert.Equal(t, uint(3), document.Results[1].Declared)

	stored, err := db.RunResults(document.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestHandleValidateWithoutStore(t *testing.T) {
	server := NewServer(nil, Config{}, nil, nil)

	w := postExport(server, export)
	require.Equal(t, http.StatusOK, w.Code)

	var document report.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &document))
	assert.Empty(t, document.RunID)
	assert.Len(t, document.Results, 2)
}

func TestHandleValidateMethodNotAllowed(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/sessions/validate", nil)
	w := httptest.NewRecorder()

	server.handleValidate(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleValidateInvalidJSON(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	w := postExport(server, `[{"windows": [invalid json]}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleValidateDeeplyNested(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{MaxBodyBytes: 32 << 20})
	defer cleanup()

	w := postExport(server, strings.Repeat("[", 1_000_000))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var response errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "malformed JSON at offset 10000")
}

func TestHandleValidateNotAnArray(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	w := postExport(server, `{"name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "array")
}

func TestHandleValidateBadSessionRejectsExport(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	w := postExport(server, exportWithBadSession)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var response errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Error, `"date"`)
}

func TestHandleValidateIsolatedBadSession(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{Isolate: true})
	defer cleanup()

	w := postExport(server, exportWithBadSession)
	require.Equal(t, http.StatusOK, w.Code)

	var document report.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &document))
	assert.Equal(t, validator.Summary{Total: 2, Valid: 1, Failed: 1}, document.Summary)
	assert.Contains(t, document.Results[1].Error, `"date"`)
}

func TestHandleValidateEmptyExport(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	w := postExport(server, `[]`)
	require.Equal(t, http.StatusOK, w.Code)

	var document report.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &document))
	assert.Equal(t, 0, document.Summary.Total)
}

func TestHandleValidateTooLarge(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{MaxBodyBytes: 16})
	defer cleanup()

	w := postExport(server, export)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleValidateStoreFailure(t *testing.T) {
	server := NewServer(failingStore{}, Config{}, nil, nil)

	w := postExport(server, export)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleValidateContentType(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/sessions/validate", strings.NewReader(export))
	// Not setting Content-Type header to test robustness
	w := httptest.NewRecorder()

	server.handleValidate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	mux := server.setupRoutes()
	require.NotNil(t, mux)

	tests := []struct {
		path   string
		method string
		status int
	}{
		{"/healthz", http.MethodGet, http.StatusOK},
		{"/sessions/validate", http.MethodGet, http.StatusMethodNotAllowed}, // Only POST allowed
		{"/metrics", http.MethodGet, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
		})
	}
}

func TestMetricsAfterValidation(t *testing.T) {
	server, _, cleanup := setupTestServer(t, Config{})
	defer cleanup()

	postExport(server, export)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `tsmcheck_sessions_checked_total{verdict="valid"} 1`)
	assert.Contains(t, body, `tsmcheck_sessions_checked_total{verdict="invalid"} 1`)
	assert.Contains(t, body, `tsmcheck_http_requests_total{status="200"} 1`)
}
