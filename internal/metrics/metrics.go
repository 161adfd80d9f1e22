// Package metrics provides Prometheus metrics for the Huginn SLAM
// estimator: promauto registration behind a sync.Once global singleton.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Huginn Prometheus metrics.
type Metrics struct {
	PredictionsTotal prometheus.Counter

	ObservationsTotal   *prometheus.CounterVec
	LandmarkCount       prometheus.Gauge
	AssociationDistance prometheus.Histogram

	SnapshotsPublished prometheus.Counter
	SnapshotsDropped   prometheus.Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Get returns the global Huginn metrics instance, registering it with
// the default Prometheus registry on first use.
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = initializeMetrics()
	})
	return globalMetrics
}

func initializeMetrics() *Metrics {
	m := &Metrics{}

	m.PredictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "huginn",
			Subsystem: "slam",
			Name:      "predictions_total",
			Help:      "Total number of motion-update prediction steps applied",
		},
	)

	m.ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "huginn",
			Subsystem: "slam",
			Name:      "observations_total",
			Help:      "Total number of landmark observations processed, by outcome",
		},
		[]string{"outcome"},
	)

	m.LandmarkCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "huginn",
			Subsystem: "slam",
			Name:      "landmark_count",
			Help:      "Current number of discovered landmarks",
		},
	)

	m.AssociationDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "huginn",
			Subsystem: "slam",
			Name:      "association_distance",
			Help:      "Canonical distance to the nearest landmark at association time",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.SnapshotsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "huginn",
			Subsystem: "snapshot",
			Name:      "published_total",
			Help:      "Total number of snapshots successfully published to a sink",
		},
	)

	m.SnapshotsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "huginn",
			Subsystem: "snapshot",
			Name:      "dropped_total",
			Help:      "Total number of snapshots a sink refused; snapshots evicted to make room for a newer one are not counted",
		},
	)

	return m
}

// PredictionObserved implements slam.Recorder.
func (m *Metrics) PredictionObserved() {
	m.PredictionsTotal.Inc()
}

// ObservationObserved implements slam.Recorder.
func (m *Metrics) ObservationObserved(outcome string) {
	m.ObservationsTotal.WithLabelValues(outcome).Inc()
}

// LandmarkCountObserved implements slam.Recorder.
func (m *Metrics) LandmarkCountObserved(n int) {
	m.LandmarkCount.Set(float64(n))
}

// AssociationDistanceObserved implements slam.Recorder.
func (m *Metrics) AssociationDistanceObserved(dist float64) {
	m.AssociationDistance.Observe(dist)
}

// SnapshotPublished implements coordinator.Recorder.
func (m *Metrics) SnapshotPublished(delivered bool) {
	if delivered {
		m.SnapshotsPublished.Inc()
	}
}

// SnapshotDropped implements coordinator.Recorder.
func (m *Metrics) SnapshotDropped() {
	m.SnapshotsDropped.Inc()
}
