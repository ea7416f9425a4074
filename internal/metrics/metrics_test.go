package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveScreenshot(t *testing.T) {
	beforeSuccess := testutil.ToFloat64(screenshotsTotal.WithLabelValues("success"))
	beforeError := testutil.ToFloat64(screenshotsTotal.WithLabelValues("error"))

	ObserveScreenshot("success", 2*time.Second)
	ObserveScreenshot("error", time.Second)
	ObserveScreenshot("error", time.Second)

	if val := testutil.ToFloat64(screenshotsTotal.WithLabelValues("success")); val != beforeSuccess+1 {
		t.Errorf("expected success counter to grow by 1, got %f -> %f", beforeSuccess, val)
	}
	if val := testutil.ToFloat64(screenshotsTotal.WithLabelValues("error")); val != beforeError+2 {
		t.Errorf("expected error counter to grow by 2, got %f -> %f", beforeError, val)
	}
	if val := testutil.CollectAndCount(screenshotsTotal); val > 2 {
		t.Errorf("expected at most one series per status, got %d", val)
	}
}

func TestRateLimitCollectorsHaveNoHostLabels(t *testing.T) {
	ObserveRateLimitDelay(time.Second)
	ObserveRateLimitDelay(2 * time.Second)
	SetRateLimitHosts(3)

	if val := testutil.CollectAndCount(rateLimitDelaysSeconds); val != 1 {
		t.Errorf("expected a single delay series, got %d", val)
	}
	if val := testutil.ToFloat64(rateLimitHosts); val != 3 {
		t.Errorf("expected 3 tracked hosts, got %f", val)
	}
}

func TestObserveBatch(t *testing.T) {
	before := testutil.ToFloat64(batchesTotal.WithLabelValues(BatchSetupFailed))
	ObserveBatch(BatchSetupFailed)
	if val := testutil.ToFloat64(batchesTotal.WithLabelValues(BatchSetupFailed)); val != before+1 {
		t.Errorf("expected setup_failed counter to grow by one, got %f -> %f", before, val)
	}

	ObserveBatchDuration(3 * time.Second)
	if val := testutil.CollectAndCount(batchDurationSeconds); val != 1 {
		t.Errorf("expected one batch duration series, got %d", val)
	}
}
