// Package metrics provides Prometheus-based metrics recording for the
// proposal pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records pipeline metrics. Construct once and share; the vectors
// register themselves with the default registry.
type Recorder struct {
	jobsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	inflightJobs   prometheus.Gauge
	rejectedTotal  prometheus.Counter
	deliveryErrors prometheus.Counter
}

// NewRecorder creates a new Prometheus-based metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		jobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposal_jobs_total",
				Help: "Total number of proposal jobs by outcome and failing stage",
			},
			[]string{"outcome", "stage"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proposal_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "status"},
		),
		retriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proposal_upstream_retries_total",
				Help: "Total number of upstream retries by service and error type",
			},
			[]string{"service", "error_type"},
		),
		inflightJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proposal_inflight_jobs",
				Help: "Number of background jobs currently executing",
			},
		),
		rejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proposal_jobs_rejected_total",
				Help: "Jobs rejected at submission because the worker pool was full",
			},
		),
		deliveryErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proposal_delivery_errors_total",
				Help: "Delayed-response deliveries that failed",
			},
		),
	}
}

// ObserveJob records a terminal job outcome. stage is the failing stage for
// failures, empty for successes.
func (r *Recorder) ObserveJob(outcome, stage string) {
	r.jobsTotal.WithLabelValues(outcome, stage).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (r *Recorder) ObserveStage(stage string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	r.stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// ObserveRetry records one upstream retry.
func (r *Recorder) ObserveRetry(service, errorType string) {
	r.retriesTotal.WithLabelValues(service, errorType).Inc()
}

// JobStarted marks a background job as in flight.
func (r *Recorder) JobStarted() {
	r.inflightJobs.Inc()
}

// JobFinished marks a background job as done.
func (r *Recorder) JobFinished() {
	r.inflightJobs.Dec()
}

// JobRejected records a submission rejected by a full worker pool.
func (r *Recorder) JobRejected() {
	r.rejectedTotal.Inc()
}

// DeliveryError records a failed delayed-response delivery.
func (r *Recorder) DeliveryError() {
	r.deliveryErrors.Inc()
}
