package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/governedloop/core/pkg/canon"
	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/ids"
)

// MemoryStore is an in-process Store + OutboxStore used by unit tests
// and by components that embed the core without a Postgres backend.
// It honours the same append-with-expected-version, dense-stream-seq,
// and monotonic-global-seq contracts as the Postgres adapter.
type MemoryStore struct {
	mu        sync.Mutex
	streams   map[string][]Event
	allEvents []Event
	globalSeq int64
	outbox    map[string]OutboxRow
	outboxSeq []string // insertion order, stable for ListUnpublished
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]Event),
		outbox:  make(map[string]OutboxRow),
	}
}

func (s *MemoryStore) Append(ctx context.Context, streamID, streamKind string, expectedVersion int, inputs []EventInput) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.streams[streamID]
	if len(current) != expectedVersion {
		return nil, &errs.ConcurrencyConflictError{
			StreamID: streamID,
			Expected: expectedVersion,
			Actual:   len(current),
		}
	}

	out := make([]Event, 0, len(inputs))
	rows := make([]OutboxRow, 0, len(inputs))
	seq := s.globalSeq
	for i, in := range inputs {
		for _, r := range in.Refs {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
		if !in.ActorKind.Valid() {
			return nil, errs.NewValidationError("actor_kind", "unknown actor kind")
		}

		seq++
		ev := Event{
			EventID:       ids.New(ids.KindEvent),
			StreamID:      streamID,
			StreamKind:    streamKind,
			StreamSeq:     expectedVersion + i + 1,
			GlobalSeq:     seq,
			EventType:     in.EventType,
			OccurredAt:    in.OccurredAt,
			ActorKind:     in.ActorKind,
			ActorID:       in.ActorID,
			CorrelationID: in.CorrelationID,
			CausationID:   in.CausationID,
			Supersedes:    in.Supersedes,
			Refs:          in.Refs,
			Payload:       in.Payload,
		}
		payloadBytes, err := canon.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		ev.EnvelopeHash = ev.RecomputeEnvelopeHash(payloadBytes)

		row, err := buildOutboxRow(ev)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)

		out = append(out, ev)
	}

	s.globalSeq = seq
	for _, row := range rows {
		s.outbox[row.OutboxID] = row
		s.outboxSeq = append(s.outboxSeq, row.OutboxID)
	}
	s.streams[streamID] = append(current, out...)
	s.allEvents = append(s.allEvents, out...)
	return out, nil
}

func (s *MemoryStore) ReadStream(ctx context.Context, streamID string, fromSeq int, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Event
	for _, e := range s.streams[streamID] {
		if e.StreamSeq < fromSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) ReplayAll(ctx context.Context, fromGlobalSeq int64, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Event
	for _, e := range s.allEvents {
		if e.GlobalSeq < fromGlobalSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryStore) ListUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []OutboxRow
	for _, id := range s.outboxSeq {
		row := s.outbox[id]
		if row.PublishedAt != nil {
			continue
		}
		result = append(result, row)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GlobalSeq < result[j].GlobalSeq })
	return result, nil
}

func (s *MemoryStore) MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return errs.ErrNotFound
	}
	t := publishedAt
	row.PublishedAt = &t
	s.outbox[outboxID] = row
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	kept := s.outboxSeq[:0]
	for _, id := range s.outboxSeq {
		row := s.outbox[id]
		if row.PublishedAt != nil && row.PublishedAt.Before(olderThan) {
			delete(s.outbox, id)
			purged++
			continue
		}
		kept = append(kept, id)
	}
	s.outboxSeq = kept
	return purged, nil
}
