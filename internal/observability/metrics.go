package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	requestLatencySeconds *prometheus.HistogramVec
	authFailuresTotal     *prometheus.CounterVec
	datasetSavesTotal     *prometheus.CounterVec
	uploadRequestsTotal   *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
	backupOutcomesTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the tracker.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phdtrack_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		authFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}, []string{"reason"})

		datasetSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_dataset_saves_total",
			Help: "Total number of dataset save operations.",
		}, []string{"outcome"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_upload_requests_total",
			Help: "Total number of accepted document uploads.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_upload_rejected_total",
			Help: "Total number of rejected document uploads.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phdtrack_upload_latency_seconds",
			Help:    "Latency distribution for document uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		backupOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phdtrack_backup_outcomes_total",
			Help: "Outcomes of best-effort cloud backup attempts.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			requestsTotal,
			requestLatencySeconds,
			authFailuresTotal,
			datasetSavesTotal,
			uploadRequestsTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
			backupOutcomesTotal,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// AuthFailures exposes the counter for failed authentication attempts.
func AuthFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return authFailuresTotal
}

// DatasetSaves exposes the counter for dataset save outcomes.
func DatasetSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return datasetSavesTotal
}

// UploadRequests exposes the counter for accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the histogram for upload latency.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// BackupOutcomes exposes the counter for cloud backup outcomes.
func BackupOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return backupOutcomesTotal
}
