// Package metrics содержит счётчики Prometheus ядра сессий и подписок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FailedAuthAttempts количество неудачных попыток аутентификации.
	FailedAuthAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_failed_auth_attempts_total",
		Help: "Number of failed authentication attempts.",
	})

	// LockoutsTriggered количество сработавших блокировок.
	LockoutsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_auth_lockouts_total",
		Help: "Number of triggered authentication lockouts.",
	})

	// SessionReuseDetected количество обнаруженных повторных предъявлений refresh-токена.
	SessionReuseDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_session_reuse_detected_total",
		Help: "Number of detected refresh token reuse events.",
	})

	// PaymentsGranted количество выданных подписок по источникам.
	PaymentsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmony_payments_granted_total",
		Help: "Number of granted subscriptions by store.",
	}, []string{"store"})

	// ReceiptVerifications количество проверок чеков по магазину и результату.
	ReceiptVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmony_receipt_verifications_total",
		Help: "Number of receipt verifications by store and result.",
	}, []string{"store", "result"})
)
