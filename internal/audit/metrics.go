package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	emitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organograma_audit_events_total",
		Help: "Audit events accepted by the configured sink",
	}, []string{"action"})
	emitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "organograma_audit_emit_failures_total",
		Help: "Audit events the sink rejected",
	})
	dropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "organograma_audit_events_dropped_total",
		Help: "Audit events dropped because the async buffer was full",
	})
)
