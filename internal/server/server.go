// Package server provides the HTTP API for linematch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/procurehub/linematch/internal/catalog"
	"github.com/procurehub/linematch/internal/config"
	"github.com/procurehub/linematch/internal/ledger"
	"github.com/procurehub/linematch/internal/match"
	"github.com/procurehub/linematch/internal/storage"
)

// Server is the HTTP server for the linematch API.
type Server struct {
	engine  *match.Engine
	ledger  *ledger.Ledger
	catalog *catalog.Service
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *match.Engine,
	ldg *ledger.Ledger,
	cat *catalog.Service,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		ledger:  ldg,
		catalog: cat,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/{tenant}/match", s.handleMatch)
	r.Post("/api/v1/{tenant}/decisions", s.handleRecordDecision)
	r.Get("/api/v1/{tenant}/decisions/{lineItemID}", s.handleGetDecision)
	r.Post("/api/v1/{tenant}/catalog", s.handlePutCatalog)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := s.routes()
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
