package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ovs-unixctl/message"
	"ovs-unixctl/rpcerr"
)

// Metrics holds the client-side call metrics.
type Metrics struct {
	Calls   *prometheus.CounterVec
	Latency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unixctl",
			Name:      "calls_total",
			Help:      "Control commands sent, by method and outcome.",
		}, []string{"method", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unixctl",
			Name:      "call_duration_seconds",
			Help:      "Round-trip time of control commands.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Calls, m.Latency)
	}
	return m
}

// MetricsMiddleware records one count per call, labelled "ok" or the error
// kind, and the call latency.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			m.Latency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			outcome := "ok"
			if err != nil {
				outcome = rpcerr.KindOf(err).String()
			}
			m.Calls.WithLabelValues(req.Method, outcome).Inc()
			return resp, err
		}
	}
}
