// Package metrics exports recognizer activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/offlinefirst/tiptap/pkg/gesture"
)

const namespace = "tiptap"

// Recorder counts recognitions, state transitions and gesture outcomes for
// every classifier it observes.
type Recorder struct {
	registry *prometheus.Registry

	taps        *prometheus.CounterVec
	transitions *prometheus.CounterVec
	gestures    *prometheus.CounterVec
	active      prometheus.Gauge
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_recognized_total",
			Help:      "Tip-taps recognised, by classification.",
		}, []string{"classification"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Recognizer state assignments, by resulting state.",
		}, []string{"state"}),
		gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Gestures that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classifiers_active",
			Help:      "Classifiers currently attached to a live surface.",
		}),
	}
	r.registry.MustRegister(r.taps, r.transitions, r.gestures, r.active)

	for _, c := range gesture.Classifications() {
		r.taps.WithLabelValues(c.String())
	}
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe subscribes the recorder to c's notifications.
func (r *Recorder) Observe(c *gesture.Classifier) {
	c.OnStateChanged(func(s gesture.State) {
		r.transitions.WithLabelValues(s.String()).Inc()
		if s.Terminal() {
			r.gestures.WithLabelValues(s.String()).Inc()
		}
	})
	c.OnTapRecognized(func(cl gesture.Classification) {
		r.taps.WithLabelValues(cl.String()).Inc()
	})
}

// Attached adjusts the live classifier gauge; pass -1 on detach.
func (r *Recorder) Attached(delta int) {
	r.active.Add(float64(delta))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
