package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics は gRPC 呼び出しとスケジュール競合のメトリクスです。
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	conflicts *prometheus.CounterVec
}

// New は独立したレジストリにメトリクスを登録します。
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workforce",
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of unary RPCs broken down by method and status code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workforce",
			Subsystem: "grpc",
			Name:      "latency_seconds",
			Help:      "Latency distribution for unary RPCs.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05, 0.1,
				0.2, 0.5, 1, 2,
			},
		}, []string{"method"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workforce",
			Subsystem: "schedule",
			Name:      "conflicts_total",
			Help:      "Total number of rejected mutations broken down by conflict reason.",
		}, []string{"reason"}),
	}
	registry.MustRegister(
		m.requests,
		m.latency,
		m.conflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRPC は RPC 1 件の結果を記録します。
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.With(prometheus.Labels{"method": method, "code": code}).Inc()
	m.latency.With(prometheus.Labels{"method": method}).Observe(elapsed.Seconds())
}

// ObserveConflict は競合による拒否を記録します。
func (m *Metrics) ObserveConflict(reason string) {
	if m == nil {
		return
	}
	m.conflicts.With(prometheus.Labels{"reason": reason}).Inc()
}

// Registry はメトリクスのレジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用の HTTP ハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve は listenAddr で metrics エンドポイントを公開し、ctx のキャンセルで停止します。
func (m *Metrics) Serve(ctx context.Context, listenAddr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("metrics: listen on %s: %w", listenAddr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
