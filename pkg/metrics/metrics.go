// Package metrics records counters about a synthesizer run and exports them in
// the Prometheus text format, for collection through a node exporter textfile
// directory.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/CTAG07/Marky/pkg/markov"
)

const namespace = "marky"

// Recorder collects run metrics on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	historyRows   prometheus.Gauge
	trainPasses   prometheus.Counter
	trainWindows  prometheus.Counter
	modelSize     *prometheus.GaugeVec
	generatedRows prometheus.Counter
	segments      prometheus.Counter
	fallbacks     prometheus.Counter
	files         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		historyRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_rows",
			Help:      "Number of rows read from the input history",
		}),
		trainPasses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "passes_total",
			Help:      "Number of full passes made over the history",
		}),
		trainWindows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "windows_total",
			Help:      "Number of windows fed to the model",
		}),
		modelSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "size",
			Help:      "Size of the trained model by measure",
		}, []string{"measure"}),
		generatedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "rows_total",
			Help:      "Number of rows written to output files",
		}),
		segments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "segments_total",
			Help:      "Number of segments stitched into output streams",
		}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "fallback_draws_total",
			Help:      "Number of segments started from a uniform fallback draw",
		}),
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "files_total",
			Help:      "Number of output files by status",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each run stage in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordHistory records the number of rows read from the input.
func (r *Recorder) RecordHistory(rows int) {
	r.historyRows.Set(float64(rows))
}

// RecordTraining records the outcome of training and the size of the model.
func (r *Recorder) RecordTraining(report markov.TrainReport, stats markov.ModelStats) {
	r.trainPasses.Add(float64(report.Passes))
	r.trainWindows.Add(float64(report.Windows))
	r.modelSize.WithLabelValues("vocabulary").Set(float64(stats.Vocabulary))
	r.modelSize.WithLabelValues("contexts").Set(float64(stats.Contexts))
	r.modelSize.WithLabelValues("chains").Set(float64(stats.TotalChains))
	r.modelSize.WithLabelValues("successor_pool").Set(float64(stats.SuccessorPool))
}

// RecordFile records one written output file.
func (r *Recorder) RecordFile(res markov.FileResult) {
	r.generatedRows.Add(float64(res.Rows))
	r.segments.Add(float64(res.Segments))
	r.fallbacks.Add(float64(res.Fallbacks))
	r.files.WithLabelValues("ok").Inc()
}

// RecordFailedFiles records output files that were not written.
func (r *Recorder) RecordFailedFiles(n int) {
	if n > 0 {
		r.files.WithLabelValues("failed").Add(float64(n))
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
