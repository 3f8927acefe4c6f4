package osc

import "github.com/prometheus/client_golang/prometheus"

const (
	resultAccepted  = "accepted"
	resultMalformed = "malformed"
	resultUnknown   = "unknown"
	resultDropped   = "dropped"
)

var messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "samplegen",
	Subsystem: "osc",
	Name:      "messages_total",
	Help:      "Inbound OSC messages by address and result.",
}, []string{"address", "result"})

var packetErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "samplegen",
	Subsystem: "osc",
	Name:      "packet_errors_total",
	Help:      "Datagrams that could not be parsed as OSC.",
})

func init() {
	prometheus.MustRegister(messagesTotal, packetErrorsTotal)
}
