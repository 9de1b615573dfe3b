// Package outbox drains the eventlog's transactional outbox onto a
// MessageBus, and sweeps published rows once they age out. Split into
// a Publisher and a Sweeper so either can be disabled independently,
// the way the teacher separates its queue worker pool from its health
// reaper.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/governedloop/core/pkg/bus"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/obsv"
)

// Publisher polls OutboxStore.ListUnpublished on a cron schedule,
// publishes each row to the bus and marks it published; it is the only
// path by which outbox rows reach the bus. A row whose publish fails
// stays unpublished and is retried on the next tick, giving the
// at-least-once guarantee §6 requires: the outbox table is the durable
// source of truth.
type Publisher struct {
	store  eventlog.OutboxStore
	bus    bus.MessageBus
	log    *slog.Logger
	batch  int
	cron   *cron.Cron
}

// NewPublisher wires a Publisher. batchSize bounds how many
// unpublished rows are drained per tick.
func NewPublisher(store eventlog.OutboxStore, b bus.MessageBus, batchSize int, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{store: store, bus: b, log: log, batch: batchSize}
}

// Start schedules the drain tick (default: every second) and blocks
// until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@every 1s"
	}
	p.cron = cron.New()
	_, err := p.cron.AddFunc(schedule, func() {
		if err := p.drainOnce(ctx); err != nil {
			p.log.Error("outbox: drain tick failed", "error", err)
		}
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

func (p *Publisher) drainOnce(ctx context.Context) error {
	rows, err := p.store.ListUnpublished(ctx, p.batch)
	if err != nil {
		return err
	}
	obsv.ObserveOutbox(len(rows))
	for _, row := range rows {
		if err := p.bus.Publish(ctx, row.Topic, row.Message); err != nil {
			p.log.Error("outbox: publish failed, will retry next tick", "outbox_id", row.OutboxID, "error", err)
			continue
		}
		if err := p.store.MarkPublished(ctx, row.OutboxID, time.Now()); err != nil {
			p.log.Error("outbox: mark-published failed", "outbox_id", row.OutboxID, "error", err)
		}
	}
	if len(rows) > 0 {
		p.log.Debug("outbox: drained", "count", len(rows))
	}
	return nil
}

// Sweeper purges published outbox rows older than Retention on a cron
// schedule, bounding table growth the way the teacher's session
// cleanup worker bounds chat-session table growth.
type Sweeper struct {
	store     eventlog.OutboxStore
	log       *slog.Logger
	retention time.Duration
	cron      *cron.Cron
}

// NewSweeper wires a Sweeper. retention is how long a published row
// is kept before it becomes eligible for purge.
func NewSweeper(store eventlog.OutboxStore, retention time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Sweeper{store: store, log: log, retention: retention}
}

// Start schedules the purge tick (default: hourly) and blocks until
// ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = "@hourly"
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		cutoff := time.Now().Add(-s.retention)
		n, err := s.store.Purge(ctx, cutoff)
		if err != nil {
			s.log.Error("outbox: sweep failed", "error", err)
			return
		}
		if n > 0 {
			s.log.Info("outbox: swept published rows", "count", n, "cutoff", cutoff)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return nil
}
