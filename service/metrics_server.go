package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsServer struct {
	server *http.Server
}

// Handler serves the default Prometheus registry
func (m *MetricsServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	return hdlr
}

// Start binds addr and serves /metrics in the background
func (m *MetricsServer) Start(addr string, lg log.Logger) error {
	server, err := serve("metrics", addr, m.Handler(), lg)
	if err != nil {
		return err
	}
	m.server = server
	return nil
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
