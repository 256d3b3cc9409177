package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped onto every metric.
type Config struct {
	ServiceName string
	Environment string
}

// EngineMetrics captures low-cardinality reconciliation engine metrics.
type EngineMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationRetries  *prometheus.CounterVec
	quotaDenials      *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "habitsd"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "habitsd_ledger_operation_duration_seconds",
			Help:        "Duration of reconciliation engine operations.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		},
		[]string{"operation", "result"},
	)

	operationRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "habitsd_ledger_operation_retries_total",
			Help:        "Transaction attempts retried after a write conflict.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	quotaDenials := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "habitsd_ledger_quota_denials_total",
			Help:        "Operations rejected because a quota counter would exceed its limit.",
			ConstLabels: constLabels,
		},
		[]string{"counter"},
	)

	registerer.MustRegister(
		operationDuration,
		operationRetries,
		quotaDenials,
	)

	return &EngineMetrics{
		operationDuration: operationDuration,
		operationRetries:  operationRetries,
		quotaDenials:      quotaDenials,
	}
}

func (m *EngineMetrics) ObserveOperation(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

func (m *EngineMetrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.operationRetries.WithLabelValues(operation).Inc()
}

func (m *EngineMetrics) IncQuotaDenial(counter string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(counter) == "" {
		counter = "unknown"
	}
	m.quotaDenials.WithLabelValues(counter).Inc()
}
