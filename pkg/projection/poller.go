package projection

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
)

// Poller keeps a live, continuously-refreshed State behind a
// read-mostly lock, the same cron-driven tick shape pkg/outbox and
// pkg/governor use for their own background loops. Read handlers (the
// HTTP API, the governor's PlanResolver) call Current() rather than
// replaying the log themselves.
type Poller struct {
	projector *Projector

	mu    sync.RWMutex
	state *State

	cron *cron.Cron
}

// NewPoller rebuilds state once and returns a Poller ready to serve
// Current() immediately; Start then keeps it fresh on a schedule.
func NewPoller(ctx context.Context, projector *Projector) (*Poller, error) {
	s, err := projector.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return &Poller{projector: projector, state: s}, nil
}

// Current returns the most recently refreshed State. Callers must not
// mutate it.
func (p *Poller) Current() *State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Start schedules a CatchUp tick (default: every 500ms) and blocks
// until ctx is cancelled.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 500ms"
	}
	p.cron = cron.New()
	_, err := p.cron.AddFunc(schedule, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		_ = p.projector.CatchUp(ctx, p.state)
	})
	if err != nil {
		return err
	}
	p.cron.Start()
	<-ctx.Done()
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	return nil
}
