package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailgw_deliveries_total",
			Help: "Terminal delivery outcomes by status and tier",
		},
		[]string{"status", "tier"}, // sent|failed , high|normal|low
	)

	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailgw_send_attempts_total",
			Help: "SMTP send attempts by result",
		},
		[]string{"result"}, // ok|error
	)

	DropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailgw_dropped_total",
			Help: "Messages acknowledged without a delivery attempt",
		},
		[]string{"reason"}, // malformed|payload_decode
	)

	StatusWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailgw_status_write_failures_total",
			Help: "Terminal status updates that could not be persisted",
		},
	)

	AckFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailgw_ack_failures_total",
			Help: "Broker acknowledgements that returned an error",
		},
	)

	BrokerReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailgw_broker_reconnects_total",
			Help: "Consumption loop restarts after broker loss",
		},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailgw_delivery_duration_seconds",
			Help:    "Time from receipt to terminal status, retries included",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DeliveriesTotal,
		AttemptsTotal,
		DropsTotal,
		StatusWriteFailures,
		AckFailures,
		BrokerReconnects,
		DeliveryDuration,
	)
}
