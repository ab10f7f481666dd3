package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testcase/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = 8080

	MetricsHost = "0.0.0.0"
	MetricsPort = 7300

	ShutdownTimeout = 5 * time.Second
)

// Config selects which servers run and where
type Config struct {
	Log            log.Logger
	HealthzEnabled bool
	HealthzAddr    string
	MetricsEnabled bool
	MetricsAddr    string
}

// DefaultConfig returns the config used when no flags are given
func DefaultConfig() Config {
	return Config{
		HealthzAddr: net.JoinHostPort(HealthzHost, strconv.Itoa(HealthzPort)),
		MetricsAddr: net.JoinHostPort(MetricsHost, strconv.Itoa(MetricsPort)),
	}
}

type Service struct {
	cfg     Config
	log     log.Logger
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	s := &Service{
		cfg:     cfg,
		log:     cfg.Log,
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
	return s
}

// Start binds the enabled servers. A server that cannot bind fails Start;
// servers started before it keep running until Shutdown.
func (s *Service) Start() error {
	s.log.Info("service starting")

	if s.cfg.HealthzEnabled {
		s.log.Info("starting healthz server", "addr", s.cfg.HealthzAddr)
		if err := s.Healthz.Start(s.cfg.HealthzAddr, s.log); err != nil {
			metrics.RecordErrorDetails("healthz_server", err)
			return err
		}
	}

	if s.cfg.MetricsEnabled {
		s.log.Info("starting metrics server", "addr", s.cfg.MetricsAddr)
		if err := s.Metrics.Start(s.cfg.MetricsAddr, s.log); err != nil {
			metrics.RecordErrorDetails("metrics_server", err)
			return err
		}
	}

	s.log.Info("service started")
	return nil
}

// Shutdown stops the servers, waiting at most ShutdownTimeout for each
func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.Healthz.Shutdown(ctx); err != nil {
		s.log.Warn("healthz shutdown", "err", err)
	}
	s.log.Info("healthz stopped")

	if err := s.Metrics.Shutdown(ctx); err != nil {
		s.log.Warn("metrics shutdown", "err", err)
	}
	s.log.Info("metrics stopped")

	s.log.Info("service stopped")
}

// serve binds addr and serves handler on its own goroutine. The returned
// server is fully set up, so it can be shut down from any goroutine.
func serve(name, addr string, handler http.Handler, lg log.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s server: %w", name, err)
	}
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", "server", name, "err", err)
			metrics.RecordErrorDetails(name+"_server", err)
		}
	}()
	return server, nil
}
