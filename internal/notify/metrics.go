package notify

import "github.com/prometheus/client_golang/prometheus"

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "easyrent_notifications_total", Help: "Notifications by kind and delivery result"},
	[]string{"kind", "result"},
)

func init() { prometheus.MustRegister(notificationsTotal) }

func observe(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}
