package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cyphal-go/uavnode/metrics"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(metrics.NoMatchingSubscriber)
	metrics.NoMatchingSubscriber.Inc()
	after := testutil.ToFloat64(metrics.NoMatchingSubscriber)
	if after != before+1 {
		t.Errorf("NoMatchingSubscriber: got %v, want %v", after, before+1)
	}
}

func TestInFlightGaugeSettable(t *testing.T) {
	metrics.InFlightRequests.Set(3)
	if got := testutil.ToFloat64(metrics.InFlightRequests); got != 3 {
		t.Errorf("InFlightRequests: got %v, want 3", got)
	}
}

func TestPortTrafficLabels(t *testing.T) {
	metrics.PortTraffic.WithLabelValues("32085", "emitted").Inc()
	got := testutil.ToFloat64(metrics.PortTraffic.WithLabelValues("32085", "emitted"))
	if got < 1 {
		t.Errorf("PortTraffic emitted: got %v, want >= 1", got)
	}
}
