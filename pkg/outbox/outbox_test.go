package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/governedloop/core/pkg/bus"
	"github.com/governedloop/core/pkg/eventlog"
)

func TestPublisher_DrainOnce_PublishesAndMarks(t *testing.T) {
	store := eventlog.NewMemoryStore()
	memBus := bus.NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := memBus.Subscribe(ctx, "LoopCreated")
	require.NoError(t, err)

	_, err = store.Append(ctx, "loop_1", "loop", 0, []eventlog.EventInput{
		{EventType: "LoopCreated", OccurredAt: time.Now(), ActorKind: eventlog.ActorHuman, ActorID: "u1"},
	})
	require.NoError(t, err)

	p := NewPublisher(store, memBus, 10, nil)
	require.NoError(t, p.drainOnce(ctx))

	select {
	case msg := <-sub:
		assert.Equal(t, "LoopCreated", msg.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected a published message")
	}

	unpublished, err := store.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unpublished)
}

func TestPublisher_DrainOnce_LeavesRowUnpublishedOnBusFailure(t *testing.T) {
	store := eventlog.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "loop_1", "loop", 0, []eventlog.EventInput{
		{EventType: "LoopCreated", OccurredAt: time.Now(), ActorKind: eventlog.ActorHuman, ActorID: "u1"},
	})
	require.NoError(t, err)

	p := NewPublisher(store, failingBus{}, 10, nil)
	require.NoError(t, p.drainOnce(ctx))

	unpublished, err := store.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unpublished, 1)
}

type failingBus struct{}

func (failingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return assert.AnError
}

func (failingBus) Subscribe(ctx context.Context, topic string) (<-chan bus.Message, error) {
	return nil, assert.AnError
}

func TestSweeper_PurgesOnlyPublishedBeforeCutoff(t *testing.T) {
	store := eventlog.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "loop_1", "loop", 0, []eventlog.EventInput{
		{EventType: "LoopCreated", OccurredAt: time.Now(), ActorKind: eventlog.ActorHuman, ActorID: "u1"},
	})
	require.NoError(t, err)

	rows, err := store.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.MarkPublished(ctx, rows[0].OutboxID, old))

	n, err := store.Purge(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := store.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
