package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
)

// metricsServer serves /metrics from a dedicated registry.
type metricsServer struct {
	srv *http.Server
}

func newMetricsServer(listen string, registry *prom.Registry) *metricsServer {
	registry.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &metricsServer{
		srv: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (m *metricsServer) start() {
	go func() {
		slog.Info("Metrics endpoint listening", slog.String("addr", m.srv.Addr))
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics endpoint failed", logfields.Error(err))
		}
	}()
}

func (m *metricsServer) stop(ctx context.Context) {
	if err := m.srv.Shutdown(ctx); err != nil {
		slog.Warn("Metrics endpoint shutdown error", logfields.Error(err))
	}
}
