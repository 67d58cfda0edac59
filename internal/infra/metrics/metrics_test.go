//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}

func TestCountersUseNormalizedLabels(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal.WithLabelValues("ephemeral", "delivered"))
	IncDelivery(" Ephemeral ", "DELIVERED")
	after := testutil.ToFloat64(deliveriesTotal.WithLabelValues("ephemeral", "delivered"))
	if after-before != 1 {
		t.Fatalf("expected delivery counter to grow by 1, got %v", after-before)
	}
	if got := norm("  "); got != "unknown" {
		t.Errorf("expected blank label to normalize to unknown, got %q", got)
	}
}
