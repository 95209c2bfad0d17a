// Package api exposes the recommendation engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stylehive/stylehive-go/pkg/metadatastore"
	"github.com/stylehive/stylehive-go/pkg/recommend"
	"github.com/stylehive/stylehive-go/utils"
)

// Refresher triggers a snapshot rebuild outside the cron schedule.
type Refresher interface {
	Refresh() error
	LastRun() *time.Time
	NextRun() *time.Time
}

// Server provides HTTP API endpoints
type Server struct {
	engine    *recommend.Service
	metadata  metadatastore.MetadataStore
	refresher Refresher
	logger    *utils.Logger
	port      string
	router    *mux.Router
	http      *http.Server
}

// NewServer creates a new API server
func NewServer(engine *recommend.Service, metadata metadatastore.MetadataStore, refresher Refresher, port string, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.GetLogger()
	}
	s := &Server{
		engine:    engine,
		metadata:  metadata,
		refresher: refresher,
		logger:    logger,
		port:      port,
		router:    mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes sets up the HTTP routes with API versioning
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	// Health checks (no version)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Catalog
	v1.HandleFunc("/products", s.handleListProducts).Methods("GET")

	// Recommendations
	v1.HandleFunc("/recommendations/{productID}", s.handleRecommendations).Methods("GET")
	v1.HandleFunc("/basket/evaluate", s.handleBasketEvaluate).Methods("POST")

	// Insights
	v1.HandleFunc("/insights/summary", s.handleInsightsSummary).Methods("GET")
	v1.HandleFunc("/insights/top-products", s.handleInsightsTopProducts).Methods("GET")
	v1.HandleFunc("/insights/categories", s.handleInsightsCategories).Methods("GET")
	v1.HandleFunc("/insights/monthly", s.handleInsightsMonthly).Methods("GET")
	v1.HandleFunc("/insights/segments", s.handleInsightsSegments).Methods("GET")

	// Snapshot lifecycle
	v1.HandleFunc("/snapshot", s.handleCurrentSnapshot).Methods("GET")
	v1.HandleFunc("/snapshot/refresh", s.handleRefresh).Methods("POST")
	v1.HandleFunc("/snapshots", s.handleListSnapshots).Methods("GET")
}

// Router returns the configured router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("starting API server", utils.Component("api"), utils.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
