package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bgreenawald/non-fiction-book-writer/internal/progress"
)

const namespace = "bookwriter"

// Recorder collects generation metrics for one process. It owns its
// registry so several recorders (one per test) never collide.
type Recorder struct {
	provider string
	model    string

	registry *prometheus.Registry

	sections        *prometheus.CounterVec
	chapters        *prometheus.CounterVec
	tokens          prometheus.Counter
	sectionDuration prometheus.Histogram
	inProgress      prometheus.Gauge

	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder creates a recorder whose series carry provider and model as
// constant labels.
func NewRecorder(provider, model string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"provider": provider, "model": model}

	return &Recorder{
		provider: provider,
		model:    model,
		registry: reg,
		sections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "generator",
			Name:        "sections_total",
			Help:        "Section generation outcomes.",
			ConstLabels: labels,
		}, []string{"status", "error_class"}),
		chapters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "generator",
			Name:        "chapters_total",
			Help:        "Chapter worker outcomes.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		tokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "generator",
			Name:        "tokens_total",
			Help:        "Tokens consumed by completed sections.",
			ConstLabels: labels,
		}),
		sectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "generator",
			Name:        "section_duration_seconds",
			Help:        "Wall time to generate one section, retries included.",
			ConstLabels: labels,
			Buckets:     []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		inProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "generator",
			Name:        "chapters_in_progress",
			Help:        "Chapter workers currently running.",
			ConstLabels: labels,
		}),
	}
}

// Emit implements progress.Sink.
func (r *Recorder) Emit(e progress.Event) {
	switch e.Kind {
	case progress.KindCompleted:
		r.sections.WithLabelValues("completed", "").Inc()
		r.tokens.Add(float64(e.Tokens))
		r.sectionDuration.Observe(e.Duration)
		r.record(e, true)
	case progress.KindFailed:
		class := e.ErrorClass
		if class == "" {
			class = "unknown"
		}
		r.sections.WithLabelValues("failed", class).Inc()
		r.record(e, false)
	case progress.KindStarted:
		r.inProgress.Inc()
	case progress.KindSkipped:
		r.chapters.WithLabelValues("skipped").Inc()
	case progress.KindChapterCompleted:
		r.inProgress.Dec()
		r.chapters.WithLabelValues("completed").Inc()
	case progress.KindChapterStopped:
		r.inProgress.Dec()
		r.chapters.WithLabelValues("stopped").Inc()
	}
}

func (r *Recorder) record(e progress.Event, success bool) {
	m := Metric{
		RunID:        e.RunID,
		ChapterID:    e.ChapterID,
		SectionID:    e.SectionID,
		Provider:     r.provider,
		Model:        r.model,
		TotalTokens:  e.Tokens,
		TotalSeconds: e.Duration,
		Success:      success,
		CreatedAt:    e.Time,
	}
	if !success {
		m.ErrorClass = e.ErrorClass
		m.Message = e.Message
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// Metrics returns a copy of the recorded section metrics.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Summary summarizes everything recorded so far.
func (r *Recorder) Summary() Summary {
	return Summarize(r.Metrics())
}

// Registry exposes the recorder's registry, e.g. for tests with testutil.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's series in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current series to path in the node_exporter
// textfile format. The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
