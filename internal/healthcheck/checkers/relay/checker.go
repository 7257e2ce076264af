package relaychecker

import (
	"context"
	"fmt"

	"github.com/linerelay/linerelay/internal/healthcheck"
	"github.com/linerelay/linerelay/internal/relay"
)

const (
	checkTypeRelayQueue = "relay.queue"
	// busyRatio is the share of a worker queue above which the check warns.
	busyRatio = 0.8
)

type statsSource interface {
	Stats() relay.Stats
}

// Checker reports the relay worker queue state.
type Checker struct {
	source statsSource
}

func NewChecker(pool *relay.Pool) *Checker {
	return &Checker{source: pool}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	stats := c.source.Stats()
	item := healthcheck.CheckResult{
		ID:       checkTypeRelayQueue,
		Type:     checkTypeRelayQueue,
		Status:   healthcheck.StatusOK,
		Summary:  fmt.Sprintf("%d messages queued on %d workers.", stats.Queued, stats.Workers),
		Metadata: map[string]any{
			"workers":  stats.Workers,
			"capacity": stats.Capacity,
			"queued":   stats.Queued,
			"busiest":  stats.Busiest,
		},
	}
	switch {
	case stats.Stopped:
		item.Status = healthcheck.StatusError
		item.Summary = "Relay workers are stopped."
	case stats.Capacity > 0 && float64(stats.Busiest) >= busyRatio*float64(stats.Capacity):
		item.Status = healthcheck.StatusWarn
		item.Summary = "A relay worker queue is nearly full."
	}
	return []healthcheck.CheckResult{item}
}
