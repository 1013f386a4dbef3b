package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.FrameCaptured("cam-1")
	m.FrameCaptured("cam-1")
	m.FrameDropped("cam-1")
	m.Detection("cam-1", "fire", 20*time.Millisecond)
	m.Notification("sent")
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()

	if got := testutil.ToFloat64(m.framesCaptured.WithLabelValues("cam-1")); got != 2 {
		t.Errorf("Expected 2 captured frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.detections.WithLabelValues("cam-1", "fire")); got != 1 {
		t.Errorf("Expected 1 fire detection, got %v", got)
	}
	if got := testutil.ToFloat64(m.subscribers); got != 1 {
		t.Errorf("Expected 1 subscriber, got %v", got)
	}

	m.Forget("cam-1")
	if got := testutil.CollectAndCount(m.framesCaptured); got != 0 {
		t.Errorf("Expected camera series removed, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FrameCaptured("x")
	m.Detection("x", "clear", time.Second)
	m.StatusUpdate("applied")
	m.Forget("x")
}

func TestHandler(t *testing.T) {
	m := New()
	m.StatusUpdate("applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `firewatch_status_updates_total{outcome="applied"} 1`) {
		t.Errorf("Expected status update series in output, got:\n%s", body)
	}
}
