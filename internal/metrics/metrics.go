// Package metrics содержит прометеевские метрики сервиса.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics — счётчики операций и длительность bcrypt.
type Metrics struct {
	ops  *prometheus.CounterVec
	hash prometheus.Histogram
}

// New создаёт метрики и регистрирует их в reg. Nil reg — без регистрации (для тестов).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Auth operations by name and result.",
		}, []string{"op", "result"}),
		hash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_password_hash_seconds",
			Help:    "Time spent hashing or verifying passwords.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ops, m.hash)
	}

	return m
}

// Op учитывает завершённую операцию. Безопасен на nil-получателе.
func (m *Metrics) Op(op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, result).Inc()
}

// ObserveHash фиксирует длительность хэширования с момента start.
func (m *Metrics) ObserveHash(start time.Time) {
	if m == nil {
		return
	}
	m.hash.Observe(time.Since(start).Seconds())
}
