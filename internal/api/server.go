package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/id/uuid"
	"github.com/JakeFAU/topic-corpus/internal/metrics"
	"github.com/JakeFAU/topic-corpus/internal/retrieval"
	"github.com/JakeFAU/topic-corpus/internal/search"
)

const (
	defaultSearchK = 10
	maxBodyBytes   = 1 << 20
)

// Index is the read side of the search index.
type Index interface {
	Query(ctx context.Context, q search.Query) ([]search.Result, error)
	Stats() search.Stats
	Ready() bool
}

// Replier answers chat messages.
type Replier interface {
	Reply(ctx context.Context, message string, topics []string) (string, error)
}

// Options tunes the server.
type Options struct {
	MaxK           int
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the chat router and the search index.
type Server struct {
	router chi.Router
	index  Index
	chat   Replier
	stats  *metrics.Aggregate
	maxK   int
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(index Index, chat Replier, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxK <= 0 {
		opts.MaxK = 100
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		index:  index,
		chat:   chat,
		stats:  metrics.NewAggregate(0),
		maxK:   opts.MaxK,
		logger: opts.Logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/chat", s.chatMessage)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Get("/stats", s.getStats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.index.Ready() {
		s.writeError(w, http.StatusServiceUnavailable, "index not ready")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type chatRequest struct {
	Message string   `json:"message"`
	Topics  []string `json:"topics"`
}

type chatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message required")
		return
	}
	reply, err := s.chat.Reply(r.Context(), req.Message, req.Topics)
	if err != nil {
		s.stats.Add("chat.unavailable", 1)
		status := http.StatusInternalServerError
		if errors.Is(err, retrieval.ErrRetrievalUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, status, chatResponse{Response: reply, Error: err.Error()})
		return
	}
	s.stats.Add("chat.replies", 1)
	if reply == retrieval.NoResults {
		s.stats.Add("chat.no_results", 1)
	}
	s.writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

type searchRequest struct {
	Query   string             `json:"query"`
	Topics  []string           `json:"topics"`
	K       *int               `json:"k"`
	Weights map[string]float64 `json:"weights"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	k := defaultSearchK
	if req.K != nil {
		k = *req.K
	}
	if k > s.maxK {
		k = s.maxK
	}
	start := time.Now()
	results, err := s.index.Query(r.Context(), search.Query{
		Text:    req.Query,
		Topics:  req.Topics,
		K:       k,
		Weights: req.Weights,
	})
	s.stats.Observe("search", time.Since(start))
	if err != nil {
		s.stats.Add("search.errors", 1)
		s.logger.Warn("search failed", zap.String("query", req.Query), zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	s.stats.Add("search.results", int64(len(results)))
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"index":    s.index.Stats(),
		"requests": s.stats.Snapshot(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

type requestIDKey struct{}

// RequestID returns the request id stored by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		s.stats.Observe("http."+r.URL.Path, elapsed)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", elapsed),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec),
				)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
