package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/governedloop/core/pkg/eventlog"
)

func TestPoller_CurrentReflectsRebuiltStateImmediately(t *testing.T) {
	store := eventlog.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Append(ctx, "loop_A", "Loop", 0, []eventlog.EventInput{{
		EventType: "LoopCreated",
		ActorKind: eventlog.ActorHuman,
		ActorID:   "human_1",
		Payload:   map[string]any{"goal": "g", "work_unit": "u"},
	}})
	require.NoError(t, err)

	p, err := NewPoller(ctx, NewProjector(store, nil))
	require.NoError(t, err)
	require.Contains(t, p.Current().Loops, "loop_A")
}

func TestPoller_StartRefreshesOnSchedule(t *testing.T) {
	store := eventlog.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := NewPoller(ctx, NewProjector(store, nil))
	require.NoError(t, err)

	go func() { _ = p.Start(ctx, "@every 10ms") }()

	_, err = store.Append(ctx, "loop_B", "Loop", 0, []eventlog.EventInput{{
		EventType: "LoopCreated",
		ActorKind: eventlog.ActorHuman,
		ActorID:   "human_1",
		Payload:   map[string]any{"goal": "g", "work_unit": "u"},
	}})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := p.Current().Loops["loop_B"]; ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("poller did not pick up new loop within deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
