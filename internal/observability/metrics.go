package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	AnswerStatusOK              = "ok"
	AnswerStatusExecutionError  = "execution_error"
	AnswerStatusGenerationError = "generation_error"
	AnswerStatusCanceled        = "canceled"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvask_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvask_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvask_pipeline_stage_duration_seconds",
			Help:    "Duration of each blocking pipeline stage (generate_query, execute, compose_answer).",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvask_answers_total",
			Help: "Total number of questions processed, by final status.",
		},
		[]string{"status"},
	)
	datasetRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "csvask_dataset_rows",
			Help: "Row count of the bound dataset at setup time.",
		},
	)
	historyRecordFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "csvask_history_record_failures_total",
			Help: "Total number of exchanges that could not be written to the history store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		pipelineStageDurationSeconds,
		answersTotal,
		datasetRows,
		historyRecordFailuresTotal,
	)
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementAnswers(status string) {
	answersTotal.WithLabelValues(status).Inc()
}

func SetDatasetRows(rows int64) {
	if rows < 0 {
		rows = 0
	}
	datasetRows.Set(float64(rows))
}

func IncrementHistoryRecordFailures() {
	historyRecordFailuresTotal.Inc()
}
