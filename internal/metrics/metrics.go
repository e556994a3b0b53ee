// Package metrics exports IPC traffic and outcome counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/i3ipc/internal/protocol"
)

const namespace = "i3ipc"

// Collector implements ipc.Observer on top of Prometheus vectors.
type Collector struct {
	exchanges *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	events    *prometheus.CounterVec
	bytes     *prometheus.CounterVec
}

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Request/reply exchanges by message type and outcome.",
		}, []string{"msg_type", "outcome"}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Time from sending a request to decoding its reply.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"msg_type"}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Decoded event notifications by event type.",
		}, []string{"event"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved over the socket, headers included.",
		}, []string{"direction"}),
	}
}

func (c *Collector) ObserveExchange(msg protocol.MsgType, elapsed time.Duration, kind string) {
	c.exchanges.WithLabelValues(msg.String(), kind).Inc()
	c.latency.WithLabelValues(msg.String()).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveEvent(evt protocol.EventType, _ int) {
	c.events.WithLabelValues(evt.String()).Inc()
}

func (c *Collector) ObserveTraffic(direction string, n int) {
	c.bytes.WithLabelValues(direction).Add(float64(n))
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens on addr and serves Handler(g) until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return serve(ctx, listener, g, logger)
}

func serve(ctx context.Context, listener net.Listener, g prometheus.Gatherer, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("metrics listening", "addr", listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
