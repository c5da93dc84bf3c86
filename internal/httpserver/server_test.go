package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/blackmichael/scrutiny-graph/internal/config"
	"github.com/blackmichael/scrutiny-graph/internal/domain"
	"github.com/blackmichael/scrutiny-graph/internal/metrics"
	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
	"github.com/blackmichael/scrutiny-graph/internal/sqlite"
)

var author = fmt.Sprintf("%064x", 0xa11ce)

func id(n int) string { return fmt.Sprintf("%064x", n) }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newServer(t).Handler()
}

func newServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := sqlite.NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	collector := metrics.NewCollector()
	engine := scrutiny.New(scrutiny.WithObserver(collector))
	svc, err := domain.NewGraphService(engine, repo, repo, collector, logger)
	require.NoError(t, err)

	return NewServer(&config.Config{Port: 0}, svc, collector.Handler(), logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func postJSON(n int, createdAt int64, content string, tags ...[]string) string {
	b, _ := json.Marshal(scrutiny.RawPost{
		ID:        id(n),
		Author:    author,
		CreatedAt: createdAt,
		Content:   content,
		Tags:      tags,
	})
	return string(b)
}

func importPosts(t *testing.T, h http.Handler) {
	t.Helper()
	ns := []string{"t", "scrutiny_mo"}
	for _, body := range []string{
		postJSON(1, 100, "JCOP 4", ns, []string{"t", "scrutiny_product"}),
		postJSON(2, 100, "Certificate", ns, []string{"t", "scrutiny_metadata"}),
		postJSON(3, 100, "Binding", ns, []string{"t", "scrutiny_binding"},
			[]string{"e", id(1), "", "mention"}, []string{"e", id(2), "", "mention"}),
		postJSON(4, 200, "JCOP 4 v2", ns, []string{"t", "scrutiny_update"}, []string{"t", "scrutiny_product"},
			[]string{"e", id(1), "", "root"}),
	} {
		rec, _ := do(t, h, http.MethodPost, "/api/posts", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestImportPost(t *testing.T) {
	h := newTestServer(t)
	post := postJSON(1, 100, "x", []string{"t", "scrutiny_product"})

	rec, body := do(t, h, http.MethodPost, "/api/posts", post)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "product", body["kind"])
	assert.Equal(t, true, body["inserted"])

	rec, body = do(t, h, http.MethodPost, "/api/posts", post)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["inserted"])
}

func TestImportPostRejectsBadInput(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/posts", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidRequest", body["error"])

	rec, _ = do(t, h, http.MethodPost, "/api/posts", `{"id":"short","pubkey":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/posts", `{"id":"`+strings.Repeat("a", maxImportBytes)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSummary(t *testing.T) {
	h := newTestServer(t)
	importPosts(t, h)

	rec, body := do(t, h, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["stored_posts"])
	counts := body["counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["products"])
	assert.EqualValues(t, 1, counts["bindings"])
	assert.EqualValues(t, 1, counts["updates"])
}

func TestPostDetails(t *testing.T) {
	h := newTestServer(t)
	importPosts(t, h)

	rec, body := do(t, h, http.MethodGet, "/api/posts/"+id(1), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "product", body["kind"])
	assert.EqualValues(t, 1, body["updates"])
	assert.Equal(t, []any{id(3)}, body["bindings"])

	rec, body = do(t, h, http.MethodGet, "/api/posts/"+id(99), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", body["error"])
}

func TestDisplay(t *testing.T) {
	h := newTestServer(t)
	importPosts(t, h)

	rec, body := do(t, h, http.MethodGet, "/api/posts/"+id(1)+"/display", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["replaced"])
	assert.Equal(t, "JCOP 4 v2", body["post"].(map[string]any)["content"])

	rec, body = do(t, h, http.MethodGet, "/api/posts/"+id(1)+"/display?force_original=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["replaced"])
	assert.Equal(t, "JCOP 4", body["post"].(map[string]any)["content"])

	rec, _ = do(t, h, http.MethodGet, "/api/posts/"+id(1)+"/display?force_original=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBindingGraph(t *testing.T) {
	h := newTestServer(t)
	importPosts(t, h)

	rec, body := do(t, h, http.MethodGet, "/api/bindings/"+id(3)+"/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id(3), body["binding_id"])
	assert.Len(t, body["nodes"], 3)
	assert.Len(t, body["edges"], 2)
	assert.Equal(t, false, body["truncated"])

	rec, _ = do(t, h, http.MethodGet, "/api/bindings/"+id(1)+"/graph", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	h := newTestServer(t)
	importPosts(t, h)

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scrutiny_posts_ingested_total{kind="binding",result="new"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	rec, _ := do(t, newTestServer(t), http.MethodDelete, "/api/summary", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestImportPostIsRateLimited(t *testing.T) {
	srv := newServer(t)
	srv.importLimiter = rate.NewLimiter(0, 1)
	h := srv.Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/posts", postJSON(1, 100, "x"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, body := do(t, h, http.MethodPost, "/api/posts", postJSON(2, 100, "y"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", body["error"])
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
