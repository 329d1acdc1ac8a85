package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalNavigations tracks every navigation attempt dispatched.
	TotalNavigations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storecrawl_navigations_total",
		Help: "The total number of navigation attempts.",
	})
	// TotalRetries tracks attempts beyond the first for any URL.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storecrawl_retries_total",
		Help: "The total number of navigation retries.",
	})
	// OutcomesByClass tracks navigation outcomes per classification.
	OutcomesByClass = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storecrawl_outcomes_total",
		Help: "Navigation outcomes partitioned by classification.",
	}, []string{"class"})
	// TotalRecords tracks product records appended to the result buffer.
	TotalRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storecrawl_records_total",
		Help: "The total number of product records extracted.",
	})
	// TotalFlushes tracks successful incremental flushes.
	TotalFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storecrawl_flushes_total",
		Help: "The total number of successful record flushes.",
	})
	// TotalFlushFailures tracks flushes that failed and were retained.
	TotalFlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storecrawl_flush_failures_total",
		Help: "The total number of failed record flushes.",
	})
)
