package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	m.ObserveAttempt("password_login", "success")
	m.ObserveAttempt("password_login", "success")
	m.ObserveAttempt("wallet_login", "signature_invalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("password_login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("wallet_login", "signature_invalid")))

	_, err = NewPrometheusMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}
