package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	Deliveries.WithLabelValues("ok", "photo").Inc()
	if got := testutil.ToFloat64(Deliveries.WithLabelValues("ok", "photo")); got < 1 {
		t.Fatalf("deliveries ok/photo = %v, want >= 1", got)
	}
	TrackerHealthy.Set(0)
	if got := testutil.ToFloat64(TrackerHealthy); got != 0 {
		t.Fatalf("tracker healthy = %v, want 0", got)
	}
	TrackerHealthy.Set(1)
}
