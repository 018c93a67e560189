package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAirdropMetrics(t *testing.T) {
	m := Airdrop()
	if Airdrop() != m {
		t.Fatalf("expected singleton registry")
	}

	before := testutil.ToFloat64(m.claimsSettled)
	m.ObserveSettled(3, big.NewInt(250), 2, 1)
	if got := testutil.ToFloat64(m.claimsSettled) - before; got != 1 {
		t.Fatalf("claims settled delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.transfersEmitted.WithLabelValues("fungible")); got < 2 {
		t.Fatalf("fungible transfers = %v, want >= 2", got)
	}

	m.ObserveRejected("")
	if got := testutil.ToFloat64(m.claimsRejected.WithLabelValues("unknown")); got < 1 {
		t.Fatalf("expected unknown rejection to be recorded")
	}

	var nilMetrics *AirdropMetrics
	nilMetrics.ObserveSettled(1, big.NewInt(1), 1, 1)
	nilMetrics.ObserveRejected("x")
}
