package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shuttleops/movesync/common/config"
	"github.com/shuttleops/movesync/common/logger"
)

// Telemetry serves pprof and Prometheus metrics on side ports
type Telemetry struct {
	log     *logger.Logger
	servers []*http.Server
}

// New creates telemetry endpoints from config. Disabled endpoints are not served.
func New(cfg config.TelemetryConfig, gatherer prometheus.Gatherer, log *logger.Logger) *Telemetry {
	t := &Telemetry{log: log}

	if cfg.EnablePprof {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		t.servers = append(t.servers, &http.Server{
			Addr:              fmt.Sprintf("localhost:%d", cfg.PprofPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	if cfg.EnableMetrics {
		t.servers = append(t.servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           Handler(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	return t
}

// Handler exposes the gatherer in the Prometheus text format on /metrics
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start starts telemetry endpoints
func (t *Telemetry) Start(ctx context.Context) error {
	for _, srv := range t.servers {
		srv := srv
		go func() {
			t.log.Info("telemetry server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.log.Error("telemetry server error", "addr", srv.Addr, "error", err)
			}
		}()
	}
	return nil
}

// Stop shuts the endpoints down
func (t *Telemetry) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range t.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
