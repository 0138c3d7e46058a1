package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordUpdated("ed25519", "signature-verified")
	m.RecordUpdated("ed25519", "signature-verified")
	m.SelfRejected()
	m.Saved("rsa", nil)
	m.Saved("rsa", errors.New("boom"))
	m.Verified(true, nil)
	m.Verified(false, nil)
	m.Verified(false, errors.New("future"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordUpdates.WithLabelValues("ed25519", "signature-verified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.selfRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("rsa", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("rsa", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("error")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordUpdated("rsa", "seen")
	m.SelfRejected()
	m.Saved("rsa", nil)
	m.Verified(true, nil)
}
