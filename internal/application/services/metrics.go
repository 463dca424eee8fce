package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	monitorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forwarder_monitor_state",
			Help: "1 for the current state of each network monitor",
		},
		[]string{"network", "state"},
	)

	monitorRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_monitor_restarts_total",
			Help: "Total number of monitor restarts",
		},
		[]string{"network"},
	)

	lastCheckedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forwarder_last_checked_block",
			Help: "Last block whose logs were fully handled",
		},
		[]string{"network"},
	)

	scanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_scan_errors_total",
			Help: "Total number of failed block scans",
		},
		[]string{"network"},
	)

	incomingTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_incoming_transfers_total",
			Help: "Total number of incoming transfers scheduled for forwarding",
		},
		[]string{"network"},
	)

	duplicateTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_duplicate_transfers_total",
			Help: "Total number of incoming transfers dropped as duplicates",
		},
		[]string{"network"},
	)

	pendingForwards = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forwarder_pending_forwards",
			Help: "Forwards waiting out their delay or in flight",
		},
		[]string{"network"},
	)

	forwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_forwards_total",
			Help: "Total number of forward attempts by outcome",
		},
		[]string{"network", "trigger", "status"},
	)

	forwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forwarder_forward_duration_seconds",
			Help:    "Time from sending a forward to its receipt",
			Buckets: []float64{1, 2.5, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"network"},
	)
)
