// Package api serves the read-only query layer. It consumes the store's
// read surface only and never drives the indexing engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tokenlens/transfer-indexer/internal/config"
	"github.com/tokenlens/transfer-indexer/internal/database"
)

// TransferReader is the store read surface the server depends on.
type TransferReader interface {
	ListTransfers(ctx context.Context, filter database.TransferFilter) ([]database.Transfer, error)
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	store  TransferReader
	logger *zap.Logger
	server *http.Server
}

func NewServer(cfg *config.API, store TransferReader, log *zap.Logger) *Server {
	s := &Server{
		store:  store,
		logger: log,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/transfers", s.handleListTransfers)
	router.Route("/addresses/{address}", func(r chi.Router) {
		r.Get("/transfers", s.handleAddressTransfers)
		r.Get("/balance", s.handleAddressBalance)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("query API listening", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
