package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsServer exposes a registry on /metrics while a command runs.
type metricsServer struct {
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// listen is replaced in tests.
var listen = net.Listen

// startMetricsServer serves a fresh registry on addr. An empty addr disables
// the server and returns nil.
func startMetricsServer(addr string) (*metricsServer, error) {
	if addr == "" {
		return nil, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s := &metricsServer{
		registry: reg,
		listener: ln,
		done:     make(chan struct{}),
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] Server error: %v", err)
		}
	}()
	log.Printf("[metrics] Serving metrics on http://%s/metrics", ln.Addr())
	return s, nil
}

// Registerer returns the registry collectors are added to, or nil when the
// server is disabled.
func (s *metricsServer) Registerer() prometheus.Registerer {
	if s == nil {
		return nil
	}
	return s.registry
}

// Addr returns the address the server listens on.
func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server. Safe on a nil server.
func (s *metricsServer) Shutdown(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.server.Shutdown(ctx); err != nil {
		log.Printf("[metrics] Shutdown failed: %v", err)
	}
	<-s.done
}
