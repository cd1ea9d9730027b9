package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qikhub_checkins_total",
		Help: "Completed check-in operations.",
	})
	checkOutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qikhub_checkouts_total",
		Help: "Completed check-out operations.",
	})
	devicePingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qikhub_device_pings_total",
		Help: "Accepted device health pings.",
	})
	pingsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qikhub_device_pings_throttled_total",
		Help: "Health pings rejected by the rate limiter.",
	})
	// MessagesDroppedTotal is incremented by the hub's drop callback.
	MessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qikhub_realtime_messages_dropped_total",
		Help: "Channel messages dropped for slow subscribers.",
	})
)
