// Package metrics holds the Prometheus collectors for trust-store activity.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trustring"

type Metrics struct {
	recordUpdates  *prometheus.CounterVec
	selfRejections prometheus.Counter
	saves          *prometheus.CounterVec
	verifications  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recordUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_updates_total",
			Help:      "Trust records written, by key type and authentication method.",
		}, []string{"key_type", "method"}),
		selfRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_authentication_rejections_total",
			Help:      "Attempts to record trust for the local identity.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Trust ring writes to the attribute store, by key type and result.",
		}, []string{"key_type", "result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_verifications_total",
			Help:      "Key attestation verifications, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.recordUpdates, m.selfRejections, m.saves, m.verifications} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) RecordUpdated(keyType, method string) {
	if m == nil {
		return
	}
	m.recordUpdates.WithLabelValues(keyType, method).Inc()
}

func (m *Metrics) SelfRejected() {
	if m == nil {
		return
	}
	m.selfRejections.Inc()
}

func (m *Metrics) Saved(keyType string, err error) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(keyType, result(err)).Inc()
}

// Verified records a signature verification outcome: "valid", "invalid" or
// "error".
func (m *Metrics) Verified(ok bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.verifications.WithLabelValues("error").Inc()
	case ok:
		m.verifications.WithLabelValues("valid").Inc()
	default:
		m.verifications.WithLabelValues("invalid").Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
