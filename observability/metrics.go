package observability

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks ledger operations and pool funding levels.
type LendingMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	balance     *prometheus.GaugeVec
	loaned      *prometheus.GaugeVec
	utilisation *prometheus.GaugeVec
	users       *prometheus.GaugeVec
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics
)

// Lending returns the lazily-initialised lending metrics registry.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome class.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "pool_balance",
				Help:      "Tracked pool balance in base asset units.",
			}, []string{"pool"}),
			loaned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "pool_loaned_balance",
				Help:      "Outstanding borrowed principal per pool.",
			}, []string{"pool"}),
			utilisation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "pool_utilisation_ratio",
				Help:      "Loaned balance divided by pool balance (0-1).",
			}, []string{"pool"}),
			users: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "poolledger",
				Subsystem: "lending",
				Name:      "pool_active_users",
				Help:      "Participants with a non-zero position per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.latency,
			lendingRegistry.balance,
			lendingRegistry.loaned,
			lendingRegistry.utilisation,
			lendingRegistry.users,
		)
	})
	return lendingRegistry
}

// ObserveOperation records one ledger operation. Outcome should be a stable
// class such as "success", "capacity" or "timing".
func (m *LendingMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = "success"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordPool refreshes the funding gauges for a pool.
func (m *LendingMetrics) RecordPool(pool uint64, balance, loaned *big.Int, users uint64) {
	if m == nil {
		return
	}
	label := strconv.FormatUint(pool, 10)
	balanceVal := bigToFloat(balance)
	loanedVal := bigToFloat(loaned)
	m.balance.WithLabelValues(label).Set(balanceVal)
	m.loaned.WithLabelValues(label).Set(loanedVal)
	m.users.WithLabelValues(label).Set(float64(users))
	utilisation := 0.0
	if balanceVal > 0 {
		utilisation = loanedVal / balanceVal
		if utilisation > 1 {
			utilisation = 1
		}
	}
	m.utilisation.WithLabelValues(label).Set(utilisation)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
