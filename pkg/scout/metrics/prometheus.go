// Package metrics exports scout activity as OpenTelemetry instruments
// scraped through a Prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jamesainslie/scout/pkg/scout/logging"
)

// MeterName is the instrumentation scope of every scout instrument.
const MeterName = "github.com/jamesainslie/scout"

// Provider couples an OTel MeterProvider with the Prometheus registry it
// exports to.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
}

// NewPrometheus creates a provider with its own registry, so several
// providers can coexist in one process.
func NewPrometheus() (*Provider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Provider{
		mp:      sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Meter returns the scout meter.
func (p *Provider) Meter() metric.Meter {
	return p.mp.Meter(MeterName)
}

// Handler serves the /metrics scrape endpoint.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// Serve exposes handler on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := logging.Get("metrics")
	log.Info("serving metrics", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
