package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slide_server_generations_total",
			Help: "Total number of presentation generation runs.",
		},
		[]string{"status"}, // success / failed
	)
	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slide_server_generation_duration_seconds",
			Help:    "Histogram of full generation run durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~17m
		},
	)
	slideExpansionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slide_server_slide_expansions_total",
			Help: "Total number of per-slide content expansions.",
		},
		[]string{"status"},
	)
	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slide_server_enrichments_total",
			Help: "Total number of enrichment attempts per agent.",
		},
		[]string{"agent", "status"}, // agent: diagram / image, status: success / degraded / skipped
	)
	editsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slide_server_slide_edits_total",
			Help: "Total number of single-slide edit runs.",
		},
		[]string{"status"},
	)
)
