package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "organograma_directory_change_events_dropped_total",
		Help: "Directory change events dropped because a subscriber was not keeping up",
	})
	receivedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organograma_directory_change_events_received_total",
		Help: "Directory change events received from external feeds",
	}, []string{"source"})
)
