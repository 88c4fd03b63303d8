// file: internal/metrics/metrics.go
// version: 1.1.0
// guid: 50a5da88-c8be-4fec-b376-e84f14711b1d

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	discoveryRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playlist_archiver",
		Name:      "discovery_runs_total",
		Help:      "Total discovery cycles by outcome",
	}, []string{"outcome"})
	stageResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playlist_archiver",
		Name:      "stage_results_total",
		Help:      "Total stage operations by stage and outcome",
	}, []string{"stage", "outcome"})
	manualCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playlist_archiver",
		Name:      "manual_commands_total",
		Help:      "Total manual commands by type",
	}, []string{"command"})
	videosGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playlist_archiver",
		Name:      "videos",
		Help:      "Current number of tracked videos by status",
	}, []string{"status"})
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "playlist_archiver",
		Name:      "subscribers",
		Help:      "Current number of live update subscribers",
	})
)

// Register registers all collectors with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(discoveryRuns, stageResults, manualCommands,
			videosGauge, subscribersGauge)
	})
}

// DiscoveryRun records one discovery cycle.
func DiscoveryRun(outcome string) {
	discoveryRuns.WithLabelValues(outcome).Inc()
}

// StageResult records one download or match operation.
func StageResult(stage, outcome string) {
	stageResults.WithLabelValues(stage, outcome).Inc()
}

// ManualCommand records one accepted manual command.
func ManualCommand(command string) {
	manualCommands.WithLabelValues(command).Inc()
}

// SetVideos updates the per-status video gauge.
func SetVideos(status string, count int) {
	videosGauge.WithLabelValues(status).Set(float64(count))
}

// SetSubscribers updates the subscriber gauge.
func SetSubscribers(count int) {
	subscribersGauge.Set(float64(count))
}
