package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/Nzyazin/cashledger/internal/core/balance"
	"github.com/Nzyazin/cashledger/internal/core/handler"
	"github.com/Nzyazin/cashledger/internal/core/identity"
	"github.com/Nzyazin/cashledger/internal/core/logger"
	"github.com/Nzyazin/cashledger/internal/core/metrics"
	middlWre "github.com/Nzyazin/cashledger/internal/core/middleware"
	"github.com/Nzyazin/cashledger/internal/core/repository"
	"github.com/Nzyazin/cashledger/internal/core/repository/memory"
	"github.com/Nzyazin/cashledger/internal/core/repository/postgres"
	"github.com/Nzyazin/cashledger/internal/core/usecase"
	"github.com/Nzyazin/cashledger/pkg/config"
	"github.com/Nzyazin/cashledger/pkg/postgresdb"
	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router        *mux.Router
	log           logger.Logger
	httpServer    *http.Server
	ledgerHandler *handler.LedgerHandler
	authenticate  mux.MiddlewareFunc
	registry      *promclient.Registry
	db            *postgresdb.Database
}

func NewServer(cfg *config.Config, log logger.Logger) (*Server, error) {
	var (
		repo repository.LedgerRepository
		db   *postgresdb.Database
		err  error
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err = postgresdb.NewPostgresDB(cfg.DB, log)
		if err != nil {
			return nil, err
		}
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(db.DB.DB, log); err != nil {
				db.Close()
				return nil, err
			}
		}
		repo = postgres.NewPostgresLedgerRepo(db.DB, log)
	default:
		log.Warn("Using in-memory store, data is lost on restart")
		repo = memory.NewMemoryLedgerRepo(log)
	}

	authenticate, err := authMiddleware(cfg.Auth, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	mode, err := balance.ParseMode(cfg.BalanceMode)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return newServer(repo, mode, authenticate, db, log), nil
}

func authMiddleware(cfg config.AuthConfig, log logger.Logger) (mux.MiddlewareFunc, error) {
	switch cfg.Mode {
	case config.AuthJWT:
		verifier := identity.NewHMACVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
		return middlWre.BearerAuth(verifier, log), nil
	case config.AuthHeader:
		log.Warn("Trusting identity header from upstream gateway", logger.StringField("header", cfg.TrustedHeader))
		return middlWre.TrustedHeaderAuth(cfg.TrustedHeader), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func newServer(repo repository.LedgerRepository, mode balance.Mode, authenticate mux.MiddlewareFunc, db *postgresdb.Database, log logger.Logger) *Server {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	aggregator := balance.NewAggregator(repo, mode, log)
	ledgerUsecase := usecase.NewLedgerUsecase(repo, aggregator, metrics.NewLedgerMetrics(registry), log)
	ledgerHandler := handler.NewLedgerHandler(ledgerUsecase, log)

	server := &Server{
		log:           log,
		router:        mux.NewRouter(),
		ledgerHandler: ledgerHandler,
		authenticate:  authenticate,
		registry:      registry,
		db:            db,
	}

	server.router.Use(middlWre.RequestLogger(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.authenticate)
	s.ledgerHandler.RegisterRoutes(api)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Error("Health check failed", logger.ErrorField("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}
	return s.httpServer
}

func (s *Server) Run(addr string) error {
	return s.newHTTPServer(addr).ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := s.newHTTPServer(addr)
	srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return srv.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown drains in-flight requests, then releases the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Error("Shutdown incomplete", logger.ErrorField("error", err))
		return err
	}
	return nil
}
