package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Reconciles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airchat_reconcile_total",
			Help: "Server rows reconciled into a message store, by outcome.",
		},
		[]string{"result"},
	)

	StaleUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airchat_stale_updates_total",
			Help: "Row updates dropped because the message is not loaded.",
		},
	)

	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airchat_send_failures_total",
			Help: "Optimistic sends rolled back, by stage.",
		},
		[]string{"stage"},
	)

	PageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airchat_page_fetch_total",
			Help: "History page fetches, by result.",
		},
		[]string{"result"},
	)

	Resubscribes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airchat_resubscribe_total",
			Help: "Change stream resubscriptions after an error.",
		},
	)

	OpenRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "airchat_open_rooms",
			Help: "Number of room sessions currently open.",
		},
	)
)

func init() {
	prometheus.MustRegister(Reconciles)
	prometheus.MustRegister(StaleUpdates)
	prometheus.MustRegister(SendFailures)
	prometheus.MustRegister(PageFetches)
	prometheus.MustRegister(Resubscribes)
	prometheus.MustRegister(OpenRooms)
}
