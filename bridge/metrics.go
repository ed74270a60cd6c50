package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	containersDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdbenc",
		Subsystem: "bridge",
		Name:      "containers_decoded_total",
		Help:      "Number of containers fully pushed to a consumer.",
	}, []string{"type"})
	decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdbenc",
		Subsystem: "bridge",
		Name:      "decode_failures_total",
		Help:      "Number of containers that failed to decode, by error kind.",
	}, []string{"type", "kind"})
	entriesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdbenc",
		Subsystem: "bridge",
		Name:      "entries_pushed_total",
		Help:      "Number of values and pairs handed to consumers.",
	}, []string{"type"})
)
