package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type AirdropMetrics struct {
	claimsSettled      prometheus.Counter
	entriesSettled     prometheus.Counter
	claimsRejected     *prometheus.CounterVec
	transfersEmitted   *prometheus.CounterVec
	nativePaid         prometheus.Counter
	checkpointsCreated *prometheus.CounterVec
	batchSize          prometheus.Histogram
	withdrawals        *prometheus.CounterVec
}

var (
	airdropOnce     sync.Once
	airdropRegistry *AirdropMetrics
)

func Airdrop() *AirdropMetrics {
	airdropOnce.Do(func() {
		airdropRegistry = &AirdropMetrics{
			claimsSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "airdrop_claims_settled_total",
				Help: "Count of claim batches committed.",
			}),
			entriesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "airdrop_claim_entries_settled_total",
				Help: "Count of individual checkpoint claims committed.",
			}),
			claimsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_claims_rejected_total",
				Help: "Count of rejected claim batches by reason.",
			}, []string{"reason"}),
			transfersEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_transfers_emitted_total",
				Help: "Count of coalesced transfers emitted by kind.",
			}, []string{"kind"}),
			nativePaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "airdrop_native_paid_total",
				Help: "Native currency paid out in base units.",
			}),
			checkpointsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_checkpoints_created_total",
				Help: "Count of reward checkpoints created by asset.",
			}, []string{"asset"}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "airdrop_claim_batch_size",
				Help:    "Number of entries per submitted claim batch.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_withdrawals_total",
				Help: "Count of owner withdrawals by asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			airdropRegistry.claimsSettled,
			airdropRegistry.entriesSettled,
			airdropRegistry.claimsRejected,
			airdropRegistry.transfersEmitted,
			airdropRegistry.nativePaid,
			airdropRegistry.checkpointsCreated,
			airdropRegistry.batchSize,
			airdropRegistry.withdrawals,
		)
	})
	return airdropRegistry
}

func (m *AirdropMetrics) ObserveBatch(entries int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(entries))
}

// ObserveSettled records a committed batch.
func (m *AirdropMetrics) ObserveSettled(entries int, native *big.Int, fungible, indexed int) {
	if m == nil {
		return
	}
	m.claimsSettled.Inc()
	m.entriesSettled.Add(float64(entries))
	if native != nil && native.Sign() > 0 {
		value, _ := new(big.Float).SetInt(native).Float64()
		m.nativePaid.Add(value)
		m.transfersEmitted.WithLabelValues("native").Inc()
	}
	if fungible > 0 {
		m.transfersEmitted.WithLabelValues("fungible").Add(float64(fungible))
	}
	if indexed > 0 {
		m.transfersEmitted.WithLabelValues("indexed").Add(float64(indexed))
	}
}

func (m *AirdropMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.claimsRejected.WithLabelValues(reason).Inc()
}

func (m *AirdropMetrics) ObserveCheckpoint(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.checkpointsCreated.WithLabelValues(asset).Inc()
}

func (m *AirdropMetrics) ObserveWithdrawal(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.withdrawals.WithLabelValues(asset).Inc()
}
