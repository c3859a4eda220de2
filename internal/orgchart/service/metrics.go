package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organograma_orgchart_refresh_total",
		Help: "Org chart refreshes by result (applied, stale, failed)",
	}, []string{"result"})
	layoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "organograma_orgchart_layout_duration_seconds",
		Help:    "Time spent computing the org chart layout",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	})
	layoutCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "organograma_orgchart_layout_cache_hits_total",
		Help: "Refreshes served from the layout cache",
	})
	chartNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "organograma_orgchart_nodes",
		Help: "Nodes in the currently applied org chart",
	})
)
