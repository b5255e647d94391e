package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-corpus/internal/chat"
	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/retrieval"
	"github.com/JakeFAU/topic-corpus/internal/search"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ix := search.NewIndex()
	require.NoError(t, ix.Reset(search.DefaultSchema()))
	require.NoError(t, ix.Ingest([]crawler.Document{
		{Title: "Photosynthesis", Summary: "Plants convert light energy", URL: "u1", Topic: "Science"},
		{Title: "Football", Summary: "A team sport played with a ball", URL: "u2", Topic: "Sports"},
	}))
	router := chat.NewRouter(retrieval.New(ix, retrieval.Options{}), nil, nil, nil)
	return NewServer(ix, router, Options{})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Chat_AnswersQuery(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t), http.MethodPost, "/chat", `{"message":"photosynthesis","topics":["Science"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Title: Photosynthesis\nSummary: Plants convert light energy", resp.Response)
}

func TestServer_EmptyTopicsMatchNothing(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, body := range []string{
		`{"message":"photosynthesis","topics":[]}`,
		`{"message":"photosynthesis"}`,
	} {
		rec := do(t, s, http.MethodPost, "/chat", body)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp chatResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, retrieval.NoResults, resp.Response, body)
	}

	rec := do(t, s, http.MethodPost, "/v1/search", `{"query":"photosynthesis","topics":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestServer_Chat_NoResultsAndExit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/chat", `{"message":"photosynthesis","topics":["Sports"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), retrieval.NoResults)

	rec = do(t, s, http.MethodPost, "/chat", `{"message":" Exit "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Goodbye!")
}

func TestServer_Chat_Unavailable(t *testing.T) {
	t.Parallel()

	ix := search.NewIndex()
	router := chat.NewRouter(retrieval.New(ix, retrieval.Options{}), nil, nil, nil)
	s := NewServer(ix, router, Options{})

	rec := do(t, s, http.MethodPost, "/chat", `{"message":"photosynthesis","topics":["Science"]}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, retrieval.Unavailable, resp.Response)
	require.NotEmpty(t, resp.Error)
}

func TestServer_Chat_BadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/chat", "{invalid").Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/chat", `{"message":"  "}`).Code)
}

func TestServer_Search(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/search", `{"query":"light energy","topics":["Science"],"k":3}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []search.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "Photosynthesis", resp.Results[0].Title)

	rec = do(t, s, http.MethodPost, "/v1/search", `{"query":"light","topics":["Sports"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"results":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/v1/search", `{"query":"light","topics":["Science"],"weights":{"title":-2}}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_StatsAndHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/search", `{"query":"ball","topics":["Sports"]}`)

	rec := do(t, s, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Index    search.Stats `json:"index"`
		Requests struct {
			Counters map[string]int64 `json:"counters"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Index.Documents)
	require.Equal(t, int64(1), resp.Requests.Counters["search.results"])

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz", "").Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/metrics", "").Code)

	notReady := NewServer(search.NewIndex(), chat.NewRouter(nil, nil, nil, nil), Options{})
	require.Equal(t, http.StatusServiceUnavailable, do(t, notReady, http.MethodGet, "/readyz", "").Code)
}

type panicReplier struct{}

func (panicReplier) Reply(context.Context, string, []string) (string, error) {
	panic("boom")
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	ix := search.NewIndex()
	s := NewServer(ix, panicReplier{}, Options{})

	rec := do(t, s, http.MethodPost, "/chat", `{"message":"hi"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
