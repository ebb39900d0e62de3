// Package api is the thin HTTP boundary over the engine: decode, validate,
// delegate. All domain behavior lives in the services it wraps.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polypilot/engine/internal/autoexit"
	"github.com/polypilot/engine/internal/insight"
	"github.com/polypilot/engine/internal/logger"
	"github.com/polypilot/engine/internal/storage"
	"github.com/polypilot/engine/internal/views"
)

const installIDHeader = "X-Install-ID"

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	exits      *autoexit.Service
	insights   *insight.Service
	viewStore  *views.Store
	repo       *storage.Repository
	logger     *logger.Logger
}

func NewServer(port int, exits *autoexit.Service, insights *insight.Service, viewStore *views.Store, repo *storage.Repository, reg *prometheus.Registry, log *logger.Logger) *Server {
	s := &Server{
		exits:     exits,
		insights:  insights,
		viewStore: viewStore,
		repo:      repo,
		logger:    log,
	}

	r := mux.NewRouter()
	r.Use(s.requestLogging)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/positions/sync", s.handleSyncPositions).Methods(http.MethodPost)
	v1.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPut)
	v1.HandleFunc("/exits", s.handleListExits).Methods(http.MethodGet)
	v1.HandleFunc("/exits/{positionId}", s.handleDismiss).Methods(http.MethodDelete)
	v1.HandleFunc("/views", s.handleRecordView).Methods(http.MethodPost)
	v1.HandleFunc("/insights/settings", s.handleUpdateSettings).Methods(http.MethodPut)
	v1.HandleFunc("/insights/{marketId}", s.handleGetInsight).Methods(http.MethodGet)
	v1.HandleFunc("/insights", s.handleListInsights).Methods(http.MethodGet)
	v1.HandleFunc("/audit/exits", s.handleAuditExits).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	s.router = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"request_id", reqID, "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}
