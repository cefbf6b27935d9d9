package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSDKMetrics(reg)

	m.IncStrategyExecuted("success")
	m.IncStrategyExecuted("success")
	m.IncStrategyExecuted("failed")
	m.IncAccountCreated("success")
	m.IncUserOpSubmitted("bundler")
	m.ObserveStep("estimate", 300*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.strategiesExecuted.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategiesExecuted.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.userOpsSubmitted.WithLabelValues("bundler")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["liquid_step_duration_seconds"])
	assert.True(t, names["liquid_accounts_created_total"])
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	m.IncStrategyExecuted("success")
	m.ObserveStep("x", time.Second)
}
