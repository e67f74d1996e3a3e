// Package metrics exposes Prometheus instruments for the allocation
// service on a custom registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the application's prometheus registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// AllocationsTotal counts allocation attempts by outcome: "allocated" or
// the failure kind.
var AllocationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "allocator",
	Name:      "allocations_total",
	Help:      "Allocation attempts by outcome",
}, []string{"outcome"})

// AllocationDuration observes end-to-end allocation latency.
var AllocationDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "allocator",
	Name:      "allocation_duration_seconds",
	Help:      "End-to-end allocation latency",
	Buckets:   prometheus.DefBuckets,
})

// AdvisersEvaluated observes how many advisers each allocation fanned out
// over.
var AdvisersEvaluated = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "allocator",
	Name:      "advisers_evaluated",
	Help:      "Eligible advisers evaluated per allocation",
	Buckets:   []float64{1, 2, 4, 8, 16, 32},
})

// EarliestWeekLeadWeeks observes the lead time, in weeks, between the
// allocation decision and the chosen earliest week.
var EarliestWeekLeadWeeks = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "allocator",
	Name:      "earliest_week_lead_weeks",
	Help:      "Weeks between allocation time and the selected week",
	Buckets:   []float64{2, 3, 4, 6, 8, 13, 26, 52},
})
