package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

// Recorder counts email change events. It implements emailchange.EventPublisher
// so it can sit next to other publishers in a MultiPublisher.
type Recorder struct {
	gatherer prometheus.Gatherer
	events   *prometheus.CounterVec
	attempts prometheus.Histogram
}

// NewRecorder keeps its collectors in a private registry
func NewRecorder(service string) *Recorder {
	registry := prometheus.NewRegistry()
	return NewRecorderWith(service, registry, registry)
}

// NewRecorderWith registers the collectors on registerer and serves gatherer.
// Pass prometheus.DefaultRegisterer and prometheus.DefaultGatherer to share the
// process registry with the HTTP middleware metrics.
func NewRecorderWith(service string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	labels := prometheus.Labels{"service": service}

	r := &Recorder{
		gatherer: gatherer,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "email_change_events_total",
				Help:        "Total number of email change lifecycle events.",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "email_change_failed_attempts",
				Help:        "Failed verification attempts recorded on a request when it failed again.",
				ConstLabels: labels,
				Buckets:     []float64{1, 2, 3, 5, 10},
			},
		),
	}

	registerer.MustRegister(r.events, r.attempts)
	return r
}

func (r *Recorder) Publish(ctx context.Context, event emailchange.Event) error {
	r.events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == emailchange.EventFailedVerification {
		r.attempts.Observe(float64(event.Attempts))
	}
	return nil
}

// Handler serves everything the recorder's gatherer collects in the Prometheus
// text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
