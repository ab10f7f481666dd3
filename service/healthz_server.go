package service

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

type HealthzServer struct {
	server *http.Server
	status atomic.Value
}

// SetStatus sets the run phase reported by /healthz, eg. "running" or "done"
func (h *HealthzServer) SetStatus(status string) {
	h.status.Store(status)
}

// Handler returns the CORS-wrapped healthz handler
func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

// Start binds addr and serves /healthz in the background
func (h *HealthzServer) Start(addr string, lg log.Logger) error {
	server, err := serve("healthz", addr, h.Handler(), lg)
	if err != nil {
		return err
	}
	h.server = server
	return nil
}

// Addr returns the bound address, empty before Start
func (h *HealthzServer) Addr() string {
	if h.server == nil {
		return ""
	}
	return h.server.Addr
}

func (h *HealthzServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	body := "OK"
	if status, ok := h.status.Load().(string); ok && status != "" {
		body += " " + status
	}
	w.Write([]byte(body)) //nolint:errcheck
}
