// Package api serves a read-only JSON status API and the Prometheus scrape
// endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store is the read side of persistence.
type Store interface {
	RecentOpportunities(ctx context.Context, limit int) ([]models.OpportunityRecord, error)
	HistoricalStats(ctx context.Context) (models.HistoricalStats, error)
	LatestSnapshot(ctx context.Context) (*models.CycleSnapshot, error)
}

// Server is the status HTTP server.
type Server struct {
	store      Store
	statuses   func() []models.PlatformStatus
	metrics    http.Handler
	origins    []string
	httpServer *http.Server
	now        func() time.Time
}

// NewServer creates a Server listening on addr. metrics may be nil to omit
// /metrics.
func NewServer(addr string, allowedOrigins []string, store Store, statuses func() []models.PlatformStatus, metrics http.Handler) *Server {
	s := &Server{
		store:    store,
		statuses: statuses,
		metrics:  metrics,
		origins:  allowedOrigins,
		now:      time.Now,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	// registered on the root router so a method mismatch yields 405
	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/platforms", s.handlePlatforms).Methods("GET")
	router.HandleFunc("/api/opportunities", s.handleOpportunities).Methods("GET")
	router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	router.HandleFunc("/api/cycle", s.handleCycle).Methods("GET")

	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods("GET")
	}

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	logger.Info("Status API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode API response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) platformStatuses() []models.PlatformStatus {
	if s.statuses == nil {
		return []models.PlatformStatus{}
	}
	return s.statuses()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.platformStatuses()
	healthy := 0
	for _, st := range statuses {
		if st.Healthy {
			healthy++
		}
	}
	status := "ok"
	if healthy < len(statuses) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"time":              s.now().Unix(),
		"platforms_healthy": healthy,
		"platforms_total":   len(statuses),
	})
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"platforms": s.platformStatuses()})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxLimit)
	}

	records, err := s.store.RecentOpportunities(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": records,
		"limit":         limit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.HistoricalStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, errors.New("no cycle has completed yet"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
