package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LockupMetrics exposes engine counters through Prometheus. It satisfies the
// lockup engine's Metrics interface.
type LockupMetrics struct {
	checkpoints prometheus.Counter
	rewardsPaid *prometheus.CounterVec
	refreshed   prometheus.Counter
}

var (
	lockupMetricsOnce sync.Once
	lockupRegistry    *LockupMetrics
)

// Lockup returns the lazily-initialised lockup metrics registry.
func Lockup() *LockupMetrics {
	lockupMetricsOnce.Do(func() {
		lockupRegistry = &LockupMetrics{
			checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "bbchain",
				Subsystem: "lockup",
				Name:      "checkpoints_total",
				Help:      "Total point-history checkpoints written by the lockup engine.",
			}),
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bbchain",
				Subsystem: "lockup",
				Name:      "reward_payouts_total",
				Help:      "Total reward payouts settled, segmented by asset.",
			}, []string{"asset"}),
			refreshed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "bbchain",
				Subsystem: "lockup",
				Name:      "markup_holders_scanned_total",
				Help:      "Total boost holders scanned by refresh operations.",
			}),
		}
		prometheus.MustRegister(
			lockupRegistry.checkpoints,
			lockupRegistry.rewardsPaid,
			lockupRegistry.refreshed,
		)
	})
	return lockupRegistry
}

// CheckpointWritten records one checkpoint write.
func (m *LockupMetrics) CheckpointWritten() {
	if m == nil {
		return
	}
	m.checkpoints.Inc()
}

// RewardPaid records one settled payout for an asset.
func (m *LockupMetrics) RewardPaid(asset string) {
	if m == nil {
		return
	}
	m.rewardsPaid.WithLabelValues(asset).Inc()
}

// MarkupRefreshScanned records the holder fan-out of a refresh pass.
func (m *LockupMetrics) MarkupRefreshScanned(holders int) {
	if m == nil || holders <= 0 {
		return
	}
	m.refreshed.Add(float64(holders))
}
