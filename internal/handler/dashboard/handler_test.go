package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/zhouzirui/z-market/backend/internal/service/catalog"
)

func setupRouter(t *testing.T, upstream http.HandlerFunc) *chi.Mux {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	r := chi.NewRouter()
	New(catalog.New(srv.URL, 2*time.Second)).RegisterRoutes(r)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLogsProxiesWithDefaultLimit(t *testing.T) {
	var gotLimit string
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/logs/", req.URL.Path)
		gotLimit = req.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[{"query":"pane"}]`))
	})

	rec := get(r, "/logs/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", gotLimit)
	assert.Equal(t, "pane", gjson.Get(rec.Body.String(), "0.query").String())
}

func TestLogsCustomLimit(t *testing.T) {
	var gotLimit string
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		gotLimit = req.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[]`))
	})

	assert.Equal(t, http.StatusOK, get(r, "/logs/?limit=5").Code)
	assert.Equal(t, "5", gotLimit)
	assert.Equal(t, http.StatusBadRequest, get(r, "/logs/?limit=abc").Code)
}

func TestLogsUpstreamFailure(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	rec := get(r, "/logs/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "error").String(), "Failed to fetch logs:")
}

func TestStatsProxies(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/logs/stats", req.URL.Path)
		_, _ = w.Write([]byte(`{"total":42}`))
	})

	rec := get(r, "/logs/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gjson.Get(rec.Body.String(), "total").Int())
}

func TestStatsUpstreamFailure(t *testing.T) {
	r := setupRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	rec := get(r, "/logs/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "error").String(), "Failed to fetch log statistics:")
}
