package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/observability"
	"github.com/spec-kit/fixmate-service/internal/store"
)

// Stats is a point-in-time snapshot of the issue workload, refreshed by the
// poller and served to the admin dashboard.
type Stats struct {
	Total       int       `json:"total"`
	Open        int       `json:"open"`
	InProgress  int       `json:"inProgress"`
	Resolved    int       `json:"resolved"`
	HighOpen    int       `json:"highPriorityOpen"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// IssuePoller re-fetches all issues through the store facade on a fixed
// interval. Polling is the only freshness mechanism; there is no push
// delivery. Overlapping fetches cannot happen here because each cycle runs
// to completion before the next tick is consumed, and a failed fetch simply
// leaves the previous snapshot in place.
type IssuePoller struct {
	store    store.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration

	mu    sync.RWMutex
	stats Stats
}

// NewIssuePoller constructs the poller.
func NewIssuePoller(st store.Store, metrics *observability.Metrics, logger *zap.Logger, interval time.Duration) *IssuePoller {
	return &IssuePoller{store: st, metrics: metrics, logger: logger, interval: interval}
}

// Run polls until the context is cancelled. An immediate first refresh
// primes the snapshot before the first tick.
func (p *IssuePoller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

// Stats returns the latest snapshot.
func (p *IssuePoller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *IssuePoller) refresh(ctx context.Context) {
	issues, err := p.store.GetIssues(ctx)
	if err != nil {
		p.logger.Error("issue poll failed", zap.Error(err))
		return
	}

	stats := Stats{Total: len(issues), RefreshedAt: time.Now()}
	for _, i := range issues {
		switch i.Status {
		case domain.IssueStatusOpen:
			stats.Open++
			if i.Priority == domain.PriorityHigh {
				stats.HighOpen++
			}
		case domain.IssueStatusAssigned, domain.IssueStatusInProgress:
			stats.InProgress++
		case domain.IssueStatusResolved:
			stats.Resolved++
		}
	}

	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
	p.metrics.RecordPoll()
}
