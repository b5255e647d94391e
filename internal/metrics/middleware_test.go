package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newRoutedHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	})
	return r
}

func requestCount(method, route, code string) float64 {
	return testutil.ToFloat64(httpRequestsTotal.WithLabelValues(method, route, code))
}

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	Init()
	h := newRoutedHandler()

	chatBefore := requestCount(http.MethodPost, "/chat", "200")
	searchBefore := requestCount(http.MethodPost, "/v1/search", "503")

	for _, path := range []string{"/chat", "/chat", "/v1/search"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
	}

	require.Equal(t, chatBefore+2, requestCount(http.MethodPost, "/chat", "200"))
	require.Equal(t, searchBefore+1, requestCount(http.MethodPost, "/v1/search", "503"))
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestMiddlewareUnmatchedRouteIsUnknown(t *testing.T) {
	Init()
	h := newRoutedHandler()

	before := requestCount(http.MethodGet, "unknown", "404")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wiki/Photosynthesis", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, before+1, requestCount(http.MethodGet, "unknown", "404"))
}

func TestMiddlewareDefaultsStatusToOK(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before := requestCount(http.MethodGet, "/healthz", "200")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, before+1, requestCount(http.MethodGet, "/healthz", "200"))
}
