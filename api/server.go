// Package api serves replay results over HTTP: JSON views of each run, a websocket stream of
// rows as they are produced, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
)

const (
	defaultPageSize = 500
	maxPageSize     = 10000
)

type Server struct {
	store     *RunStore
	hub       *Hub
	gatherer  prometheus.Gatherer
	logger    *logrus.Logger
	port      string
	jwtSecret string
}

func NewServer(store *RunStore, hub *Hub, gatherer prometheus.Gatherer, logger *logrus.Logger, port, jwtSecret string) *Server {
	return &Server{
		store:     store,
		hub:       hub,
		gatherer:  gatherer,
		logger:    logger,
		port:      port,
		jwtSecret: jwtSecret,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.requireAuth(s.handleRuns))
	mux.HandleFunc("GET /api/runs/{mode}/summary", s.requireAuth(s.handleSummary))
	mux.HandleFunc("GET /api/runs/{mode}/steps", s.requireAuth(s.handleSteps))
	mux.HandleFunc("GET /api/runs/{mode}/events", s.requireAuth(s.handleEvents))
	mux.HandleFunc("GET /api/runs/{mode}/trades", s.requireAuth(s.handleTrades))
	mux.HandleFunc("GET /api/stream", s.requireAuth(s.hub.ServeHTTP))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting API server on port %s", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"runs":      len(s.store.List()),
		"streams":   s.hub.Clients(),
		"timestamp": time.Now().UTC(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.result(w, r); ok {
		s.writeJSON(w, http.StatusOK, res.Summary)
	}
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	lo, hi, ok := s.page(w, r, len(res.Rows))
	if ok {
		s.writeJSON(w, http.StatusOK, res.Rows[lo:hi])
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	events := res.Events
	if kind := r.URL.Query().Get("kind"); kind != "" {
		events = make([]models.Event, 0, len(res.Events))
		for _, ev := range res.Events {
			if string(ev.Kind) == kind {
				events = append(events, ev)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	lo, hi, ok := s.page(w, r, len(res.Trades))
	if ok {
		s.writeJSON(w, http.StatusOK, res.Trades[lo:hi])
	}
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) (*replay.Result, bool) {
	mode, err := replay.ParseMode(r.PathValue("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	res, ok := s.store.Get(mode)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no completed run for mode "+string(mode))
		return nil, false
	}
	return res, true
}

// page resolves ?offset= and ?limit= against n items.
func (s *Server) page(w http.ResponseWriter, r *http.Request, n int) (int, int, bool) {
	offset, limit := 0, defaultPageSize
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = o
	}
	if v := q.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 || l > maxPageSize {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
			return 0, 0, false
		}
		limit = l
	}
	lo := min(offset, n)
	return lo, min(lo+limit, n), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
