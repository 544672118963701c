package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"alex_bench/index"
)

const (
	PhaseBulkLoad   = "bulk_load"
	PhaseUserInsert = "user_insert"
)

// Recorder collects run metrics on its own registry, so several runs in one
// process never share series.
type Recorder struct {
	registry *prometheus.Registry

	phaseSeconds   *prometheus.HistogramVec
	keysTotal      *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	skippedTotal   prometheus.Counter
	snapshotLeaves *prometheus.GaugeVec
	snapshotModels *prometheus.GaugeVec
	indexCounters  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		phaseSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alex_bench",
			Subsystem: "runner",
			Name:      "phase_seconds",
			Help:      "Wall clock time spent in bulk load and user insertion phases",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 9),
		}, []string{"phase"}),
		keysTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex_bench",
			Subsystem: "runner",
			Name:      "keys_total",
			Help:      "Total number of keys handed to the index, per phase",
		}, []string{"phase"}),
		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alex_bench",
			Subsystem: "runner",
			Name:      "insertion_failures_total",
			Help:      "Total number of abandoned insertion batches, per user",
		}, []string{"user"}),
		skippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "alex_bench",
			Subsystem: "runner",
			Name:      "skipped_users_total",
			Help:      "Total number of users whose dataset could not be loaded",
		}),
		snapshotLeaves: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "alex_bench",
			Subsystem: "index",
			Name:      "leaves",
			Help:      "Number of data nodes seen by a snapshot",
		}, []string{"snapshot"}),
		snapshotModels: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "alex_bench",
			Subsystem: "index",
			Name:      "model_nodes",
			Help:      "Number of model nodes seen by a snapshot",
		}, []string{"snapshot"}),
		indexCounters: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "alex_bench",
			Subsystem: "index",
			Name:      "structure_events",
			Help:      "Current index counters (keys/splits/expansions/retrains/memory bytes)",
		}, []string{"counter"}),
	}
}

// SnapshotLabel names the snapshot taken after userID's phase, or after bulk
// load when initial is set.
func SnapshotLabel(userID int, initial bool) string {
	if initial {
		return "initial"
	}
	return "user_" + strconv.Itoa(userID)
}

func (self *Recorder) ObservePhase(phase string, elapsed time.Duration, keys int) {
	self.phaseSeconds.WithLabelValues(phase).Observe(elapsed.Seconds())
	self.keysTotal.WithLabelValues(phase).Add(float64(keys))
}

func (self *Recorder) ObserveSnapshot(label string, leaves int, modelNodes int) {
	self.snapshotLeaves.WithLabelValues(label).Set(float64(leaves))
	self.snapshotModels.WithLabelValues(label).Set(float64(modelNodes))
}

func (self *Recorder) ObserveFailure(userID int) {
	self.failuresTotal.WithLabelValues(strconv.Itoa(userID)).Inc()
}

func (self *Recorder) ObserveSkipped() {
	self.skippedTotal.Inc()
}

func (self *Recorder) ObserveIndexStats(stats index.Stats) {
	set := func(name string, v float64) {
		self.indexCounters.WithLabelValues(name).Set(v)
	}
	set("keys", float64(stats.NumKeys))
	set("data_nodes", float64(stats.NumDataNodes))
	set("model_nodes", float64(stats.NumModelNodes))
	set("sideways_splits", float64(stats.NumSidewaysSplits))
	set("downward_splits", float64(stats.NumDownwardSplits))
	set("model_node_expansions", float64(stats.NumModelNodeExpansions))
	set("expand_and_scales", float64(stats.NumExpandAndScales))
	set("expand_and_retrains", float64(stats.NumExpandAndRetrains))
	set("memory_bytes", float64(stats.MemoryUsedBytes))
}

func (self *Recorder) Registry() *prometheus.Registry {
	return self.registry
}

// WriteToTextfile writes every series in the text exposition format, replacing
// path atomically.
func (self *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, self.registry)
}
