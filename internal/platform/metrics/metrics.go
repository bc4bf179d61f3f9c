package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps cheap in-process counters exposed on /metricsz.
type Collector struct {
	requests        atomic.Uint64
	errors          atomic.Uint64
	rateLimited     atomic.Uint64
	totalDurationMs atomic.Uint64

	flowsCreated      atomic.Uint64
	decisions         atomic.Uint64
	decisionConflicts atomic.Uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) RecordRequest(status int, duration time.Duration) {
	c.requests.Add(1)
	if status >= 500 {
		c.errors.Add(1)
	}
	if status == 429 {
		c.rateLimited.Add(1)
	}
	c.totalDurationMs.Add(uint64(duration.Milliseconds()))
}

func (c *Collector) RecordFlowCreated() {
	c.flowsCreated.Add(1)
}

func (c *Collector) RecordDecision(conflict bool) {
	c.decisions.Add(1)
	if conflict {
		c.decisionConflicts.Add(1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := c.requests.Load()
	totalMs := c.totalDurationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            c.errors.Load(),
		"rateLimitedTotal":       c.rateLimited.Load(),
		"avgDurationMs":          avg,
		"approvalFlowsCreated":   c.flowsCreated.Load(),
		"approvalDecisions":      c.decisions.Load(),
		"approvalConflictRetries": c.decisionConflicts.Load(),
	}
}
