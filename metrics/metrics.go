package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsGenerator interface {
	IncStrategyExecuted(status string)
	IncAccountCreated(status string)
	IncUserOpSubmitted(mode string)

	// ObserveStep records how long one pipeline step took, e.g. "authenticate" or "estimate".
	ObserveStep(step string, elapsed time.Duration)
}

// SDKMetrics contains instrumented metrics that are incremented by the sdk facade
type SDKMetrics struct {
	strategiesExecuted *prometheus.CounterVec
	accountsCreated    *prometheus.CounterVec
	userOpsSubmitted   *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
}

const liquidNamespace = "liquid"

func NewSDKMetrics(reg prometheus.Registerer) *SDKMetrics {
	return &SDKMetrics{
		strategiesExecuted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: liquidNamespace,
				Name:      "strategies_executed_total",
				Help:      "The number of strategies executed, by outcome",
			}, []string{"status"}),

		accountsCreated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: liquidNamespace,
				Name:      "accounts_created_total",
				Help:      "The number of smart account creations attempted, by outcome",
			}, []string{"status"}),

		userOpsSubmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: liquidNamespace,
				Name:      "userops_submitted_total",
				Help:      "The number of UserOperations handed to the chain, by submission mode",
			}, []string{"mode"}),

		stepDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: liquidNamespace,
				Name:      "step_duration_seconds",
				Help:      "Time spent in each step of account creation and strategy execution",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			}, []string{"step"}),
	}
}

func (m *SDKMetrics) IncStrategyExecuted(status string) {
	m.strategiesExecuted.WithLabelValues(status).Inc()
}

func (m *SDKMetrics) IncAccountCreated(status string) {
	m.accountsCreated.WithLabelValues(status).Inc()
}

func (m *SDKMetrics) IncUserOpSubmitted(mode string) {
	m.userOpsSubmitted.WithLabelValues(mode).Inc()
}

func (m *SDKMetrics) ObserveStep(step string, elapsed time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

type noopMetrics struct{}

// NewNoopMetrics is used when the caller does not collect metrics.
func NewNoopMetrics() MetricsGenerator {
	return noopMetrics{}
}

func (noopMetrics) IncStrategyExecuted(string) {}
func (noopMetrics) IncAccountCreated(string) {}
func (noopMetrics) IncUserOpSubmitted(string) {}
func (noopMetrics) ObserveStep(string, time.Duration) {}
