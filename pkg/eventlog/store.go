package eventlog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/governedloop/core/pkg/ids"
)

// Store is the EventStore port from §6: append-with-expected-version,
// per-stream read, and global replay.
type Store interface {
	// Append appends events to stream, atomically within the stream.
	// Fails with *errs.ConcurrencyConflictError when expectedVersion
	// does not equal the stream's current length. On success each
	// input is also written to the outbox in the same transaction.
	Append(ctx context.Context, streamID, streamKind string, expectedVersion int, inputs []EventInput) ([]Event, error)

	// ReadStream returns events for streamID in stream_seq order,
	// starting at fromSeq (inclusive), at most limit events.
	ReadStream(ctx context.Context, streamID string, fromSeq int, limit int) ([]Event, error)

	// ReplayAll returns events in global_seq order starting at
	// fromGlobalSeq (inclusive), at most limit events.
	ReplayAll(ctx context.Context, fromGlobalSeq int64, limit int) ([]Event, error)
}

// OutboxRow mirrors the `outbox` table of §6's persisted state layout.
type OutboxRow struct {
	OutboxID    string
	GlobalSeq   int64
	Topic       string
	Message     []byte
	MessageHash string
	PublishedAt *time.Time
}

// OutboxStore is implemented by adapters that co-write the outbox with
// the event log (§4.1, §4.2).
type OutboxStore interface {
	ListUnpublished(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// buildOutboxRow constructs the outbox row for a just-assigned event,
// per §4.1's message_hash = sha256(event_id ‖ stream_id ‖ stream_seq).
func buildOutboxRow(e Event) (OutboxRow, error) {
	msg, err := json.Marshal(e)
	if err != nil {
		return OutboxRow{}, err
	}
	hashInput := e.EventID + "|" + e.StreamID + "|" + strconv.Itoa(e.StreamSeq)
	return OutboxRow{
		OutboxID:    ids.New("outbox"),
		GlobalSeq:   e.GlobalSeq,
		Topic:       e.EventType,
		Message:     msg,
		MessageHash: ids.ContentHash([]byte(hashInput)),
	}, nil
}
