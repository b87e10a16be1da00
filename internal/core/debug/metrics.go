package debug

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pandora"

// Connection error kinds used as the label of ConnectionErrors.
const (
	ErrorKindProtocol  = "protocol"
	ErrorKindTransport = "transport"
	ErrorKindPanic     = "panic"
	ErrorKindIdle      = "idle"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_accepted_total",
		Help:      "Total number of accepted client connections",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Number of currently registered client connections",
	})

	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Total number of complete frames received, by protocol state",
	}, []string{"state"})

	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Total number of frames written to clients",
	})

	ConnectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connection_errors_total",
		Help:      "Total number of connections closed because of an error, by kind",
	}, []string{"kind"})
)
