package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DeliverySent labels notifications accepted by a channel endpoint.
	DeliverySent = "sent"
	// DeliveryFailed labels notifications that exhausted retries.
	DeliveryFailed = "failed"
)

var (
	alertsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertflow",
			Name:      "alerts_created_total",
			Help:      "Total number of alerts accepted into the lifecycle, partitioned by severity.",
		},
		[]string{"severity"},
	)

	alertsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertflow",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts suppressed at creation, partitioned by rule name.",
		},
		[]string{"rule"},
	)

	alertsDeduplicatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alertflow",
			Name:      "alerts_deduplicated_total",
			Help:      "Total number of create requests collapsed into an existing active alert.",
		},
	)

	escalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertflow",
			Name:      "escalations_total",
			Help:      "Total number of escalation transitions, partitioned by target level.",
		},
		[]string{"level"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertflow",
			Name:      "notifications_total",
			Help:      "Total number of delivery attempts per channel and final status.",
		},
		[]string{"channel", "status"},
	)

	activeAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "alertflow",
			Name:      "active_alerts",
			Help:      "Current number of alerts in a non-terminal, non-suppressed status.",
		},
	)
)

// Register attaches alertflow collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		alertsCreatedTotal,
		alertsSuppressedTotal,
		alertsDeduplicatedTotal,
		escalationsTotal,
		notificationsTotal,
		activeAlerts,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// CountCreated records one accepted alert.
func CountCreated(severity string) {
	alertsCreatedTotal.WithLabelValues(severity).Inc()
}

// CountSuppressed records one alert silenced by a suppression rule.
func CountSuppressed(rule string) {
	alertsSuppressedTotal.WithLabelValues(rule).Inc()
}

// CountDeduplicated records one create request folded into an active alert.
func CountDeduplicated() {
	alertsDeduplicatedTotal.Inc()
}

// CountEscalation records one escalation transition to the given level.
func CountEscalation(level string) {
	escalationsTotal.WithLabelValues(level).Inc()
}

// CountNotification records one finished delivery attempt.
func CountNotification(channel, status string) {
	if status != DeliveryFailed {
		status = DeliverySent
	}
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// SetActiveAlerts publishes the current active alert count.
func SetActiveAlerts(n int) {
	activeAlerts.Set(float64(n))
}
