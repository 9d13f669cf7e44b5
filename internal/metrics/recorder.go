// Package metrics exports search progress to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"archtdea/internal/model"
)

const namespace = "archtdea"

// Recorder observes a run and keeps its metrics on a private registry, so
// several runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	generation    prometheus.Gauge
	bestFitness   prometheus.Gauge
	archiveSize   prometheus.Gauge
	regionSize    prometheus.Gauge
	preferences   prometheus.Gauge
	nonDominated  prometheus.Gauge
	interactions  prometheus.Counter
	shown         prometheus.Counter
	added         prometheus.Counter
	overflows     prometheus.Counter
	archiveExcess prometheus.Gauge
	admissions    *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Last completed generation.",
		}),
		bestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_overall_fitness",
			Help:      "Lowest overall fitness in the population.",
		}),
		archiveSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size",
			Help:      "Number of candidates in the territory archive.",
		}),
		regionSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "territory_size",
			Help:      "Territory size of the current preferred region.",
		}),
		preferences: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preferences",
			Help:      "Number of preferences collected so far.",
		}),
		nonDominated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "non_dominated",
			Help:      "Non-dominated candidates in the population.",
		}),
		interactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interactions held with the architect.",
		}),
		shown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_shown_total",
			Help:      "Candidates presented during interactions.",
		}),
		added: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preferences_added_total",
			Help:      "Preferences expressed during interactions.",
		}),
		overflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_overflow_total",
			Help:      "Admission rounds that left the archive above its soft bound.",
		}),
		archiveExcess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_excess",
			Help:      "Members above the archive soft bound after the last overflow.",
		}),
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_admissions_total",
			Help:      "Archive admission attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) ObserveGeneration(d model.GenerationDiagnostics) {
	r.generation.Set(float64(d.Generation))
	r.bestFitness.Set(d.BestFitness)
	r.archiveSize.Set(float64(d.ArchiveSize))
	r.regionSize.Set(d.TerritorySize)
	r.preferences.Set(float64(d.Preferences))
	r.nonDominated.Set(float64(d.NonDominated))
}

func (r *Recorder) ObserveAdmission(outcome string) {
	r.admissions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveInteraction(_, shown, added int) {
	r.interactions.Inc()
	r.shown.Add(float64(shown))
	r.added.Add(float64(added))
}

func (r *Recorder) ObserveArchiveOverflow(size, limit int) {
	r.overflows.Inc()
	r.archiveExcess.Set(float64(size - limit))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
