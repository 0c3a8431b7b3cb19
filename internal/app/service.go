package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alertflow/internal/clock"
	"alertflow/internal/config"
	"alertflow/internal/engine"
	"alertflow/internal/ingest"
	"alertflow/internal/logging"
	"alertflow/internal/metrics"
	"alertflow/internal/notify"
	"alertflow/internal/notifyqueue"
	"alertflow/internal/policy"
	"alertflow/internal/store"
	"alertflow/internal/suppress"

	"log/slog"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable alert lifecycle service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	store     store.Store
	manager   *Manager
	httpSrv   *http.Server
	registry  *prometheus.Registry
	natsSub   interface{ Close() error }
	notifyQ   interface{ Close() error }
	notifyPub notifyqueue.Producer
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds the service instance from a config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		registry: prometheus.NewRegistry(),
		clock:    clk,
	}
	if err := metrics.Register(service.registry); err != nil {
		service.cleanupInitResources()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	service.store, err = buildStore(cfg)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	if err := service.buildNotifyProducer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	service.manager = NewManager(ManagerParams{
		Engine:            engine.New(),
		Store:             service.store,
		Dispatcher:        notify.NewDispatcher(cfg.Notify, logger),
		Producer:          service.notifyPub,
		Policies:          policy.NewRegistry(cfg.Policy),
		Suppressor:        suppress.NewEngine(cfg.Suppression),
		Clock:             clk,
		Logger:            logger,
		TerminalRetention: time.Duration(cfg.Service.TerminalRetentionSec) * time.Second,
	})

	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNotifyWorker(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Run starts the service lifecycle and blocks until a shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	scanInterval := time.Duration(s.cfg.Service.ScanIntervalSec) * time.Second
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
				s.manager.Tick(shutdownCtx, s.clock.Now())
			}
		}
	}()

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if s.notifyQ != nil {
		if err := s.notifyQ.Close(); err != nil {
			s.logger.Error("notify queue worker close failed", "error", err.Error())
			markErr(fmt.Errorf("notify queue worker close: %w", err))
		}
	}
	if s.notifyPub != nil {
		if err := s.notifyPub.Close(); err != nil {
			s.logger.Error("notify queue producer close failed", "error", err.Error())
			markErr(fmt.Errorf("notify queue producer close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.notifyQ != nil {
		_ = s.notifyQ.Close()
		s.notifyQ = nil
	}
	if s.notifyPub != nil {
		_ = s.notifyPub.Close()
		s.notifyPub = nil
	}
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the router with API, health, and metrics endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Ingest.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Ingest.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle(s.cfg.Ingest.HTTP.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	if s.cfg.Ingest.HTTP.Enabled {
		handler := ingest.NewHTTPHandler(s.manager, s.cfg.Ingest.HTTP.MaxBodyBytes, s.logger)
		handler.Register(mux, s.cfg.Ingest.HTTP)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildNATSSubscriber starts NATS create ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.manager, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildNotifyProducer initializes the async delivery producer when enabled.
// Params: none.
// Returns: setup error.
func (s *Service) buildNotifyProducer() error {
	if !s.cfg.Notify.Queue.Enabled {
		return nil
	}
	producer, err := notifyqueue.NewNATSProducer(s.cfg.Notify.Queue)
	if err != nil {
		return err
	}
	s.notifyPub = producer
	return nil
}

// buildNotifyWorker starts queue delivery workers when enabled.
// Params: none.
// Returns: setup error.
func (s *Service) buildNotifyWorker() error {
	if !s.cfg.Notify.Queue.Enabled {
		return nil
	}
	worker, err := notifyqueue.NewNATSWorker(s.cfg.Notify.Queue, s.logger, func(ctx context.Context, job notifyqueue.Job) error {
		return s.manager.DeliverJob(ctx, job)
	})
	if err != nil {
		return err
	}
	s.notifyQ = worker
	return nil
}

// buildStore creates the audit store backend from config.
// Params: root config snapshot.
// Returns: selected store backend.
func buildStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return store.NewRedisStore(cfg.Store.Redis)
	case config.StoreBackendNATS:
		return store.NewNATSStore(cfg.Store.NATS)
	default:
		return store.NewMemoryStore(), nil
	}
}
