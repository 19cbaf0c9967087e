package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCacheMetrics_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, GetCacheMetrics(), GetCacheMetrics())
}

func TestCacheMetrics_RegisterAndInit(t *testing.T) {
	t.Parallel()

	m := GetCacheMetrics()
	m.Init()
	m.Init()

	registry := prometheus.NewRegistry()
	require.NotPanics(t, func() { m.MustRegister(registry) })

	count, err := testutil.GatherAndCount(registry,
		"avafields_cache_hits_total",
		"avafields_cache_operation_duration_seconds",
		"avafields_cache_circuit_breaker_state",
		"avafields_cache_codec_errors_total",
	)
	require.NoError(t, err)
	// 2 hit series, 8 duration series, 1 breaker series, 2 codec series
	assert.Equal(t, 13, count)
}

func TestCacheMetrics_CodecErrors(t *testing.T) {
	t.Parallel()

	c := GetCacheMetrics().codecErrorsTotal.WithLabelValues("decode")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(c), 0.001)
}
