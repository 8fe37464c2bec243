package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics of a link session. All methods are
// safe on a nil receiver so sessions without metrics need no checks.
type Collector struct {
	gatherer prometheus.Gatherer

	FramesSent      *prometheus.CounterVec
	SamplesReceived *prometheus.CounterVec
	SamplesDropped  *prometheus.CounterVec
	RoundTrip       prometheus.Histogram
	LastDelta       *prometheus.GaugeVec
}

// NewCollector registers link metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sent, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxvault_frames_sent_total",
		Help: "Frames written to the link, labeled by tag.",
	}, []string{"tag"}), "fluxvault_frames_sent_total")
	if err != nil {
		return nil, err
	}

	received, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxvault_samples_received_total",
		Help: "Valid frames decoded from the link, labeled by tag.",
	}, []string{"tag"}), "fluxvault_samples_received_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxvault_samples_dropped_total",
		Help: "Exchanges that produced no usable sample, labeled by tag and reason.",
	}, []string{"tag", "reason"}), "fluxvault_samples_dropped_total")
	if err != nil {
		return nil, err
	}

	rtt, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fluxvault_round_trip_seconds",
		Help:    "Time from writing a frame to decoding its echo.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}), "fluxvault_round_trip_seconds")
	if err != nil {
		return nil, err
	}

	delta, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fluxvault_last_delta",
		Help: "Most recent sent minus received value, labeled by tag.",
	}, []string{"tag"}), "fluxvault_last_delta")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		FramesSent:      sent,
		SamplesReceived: received,
		SamplesDropped:  dropped,
		RoundTrip:       rtt,
		LastDelta:       delta,
	}, nil
}

func (c *Collector) FrameSent(tag string) {
	if c == nil {
		return
	}
	c.FramesSent.WithLabelValues(tag).Inc()
}

// Observe records the outcome of one exchange. status is "ok" for a decoded
// sample and the drop reason otherwise; delta and rtt are only meaningful
// when echoed is true.
func (c *Collector) Observe(tag, status string, rtt time.Duration, delta float64, echoed bool) {
	if c == nil {
		return
	}
	if status != "ok" {
		c.SamplesDropped.WithLabelValues(tag, status).Inc()
		return
	}
	c.SamplesReceived.WithLabelValues(tag).Inc()
	if echoed {
		c.RoundTrip.Observe(rtt.Seconds())
		c.LastDelta.WithLabelValues(tag).Set(delta)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
