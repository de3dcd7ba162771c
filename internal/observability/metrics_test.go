package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncrementAnswersCountsByStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(answersTotal.WithLabelValues(AnswerStatusOK))
	canceledBefore := testutil.ToFloat64(answersTotal.WithLabelValues(AnswerStatusCanceled))

	IncrementAnswers(AnswerStatusOK)
	IncrementAnswers(AnswerStatusOK)
	IncrementAnswers(AnswerStatusCanceled)

	if got := testutil.ToFloat64(answersTotal.WithLabelValues(AnswerStatusOK)) - okBefore; got != 2 {
		t.Fatalf("answers_total{ok} delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(answersTotal.WithLabelValues(AnswerStatusCanceled)) - canceledBefore; got != 1 {
		t.Fatalf("answers_total{canceled} delta = %v, want 1", got)
	}
}

func TestObserveStageAddsSeriesPerStage(t *testing.T) {
	before := testutil.CollectAndCount(pipelineStageDurationSeconds)

	ObserveStage("metrics_test_stage", 20*time.Millisecond)
	ObserveStage("metrics_test_stage", 30*time.Millisecond)

	if got := testutil.CollectAndCount(pipelineStageDurationSeconds) - before; got != 1 {
		t.Fatalf("stage series delta = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(pipelineStageDurationSeconds, "csvask_pipeline_stage_duration_seconds"); got < 1 {
		t.Fatalf("CollectAndCount(by name) = %d", got)
	}
}

func TestDatasetRowsAndHistoryFailures(t *testing.T) {
	SetDatasetRows(-5)
	if got := testutil.ToFloat64(datasetRows); got != 0 {
		t.Fatalf("dataset_rows = %v, want 0 for negative input", got)
	}
	SetDatasetRows(42)
	if got := testutil.ToFloat64(datasetRows); got != 42 {
		t.Fatalf("dataset_rows = %v, want 42", got)
	}

	before := testutil.ToFloat64(historyRecordFailuresTotal)
	IncrementHistoryRecordFailures()
	if got := testutil.ToFloat64(historyRecordFailuresTotal) - before; got != 1 {
		t.Fatalf("history_record_failures_total delta = %v, want 1", got)
	}
}
