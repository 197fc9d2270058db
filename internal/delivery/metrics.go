package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vidkeeper_delivery_messages_total",
	Help: "Messages handed to the delivery channel by kind and outcome.",
}, []string{"kind", "status"})

func observe(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	sentTotal.WithLabelValues(kind, status).Inc()
}
