package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	canonpkg "github.com/governedloop/core/pkg/canon"
	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/ids"
)

// PostgresStore is the production Store + OutboxStore adapter: a
// single `events` table with a unique (stream_id, stream_seq)
// constraint and a BIGSERIAL global_seq, co-written with `outbox` in
// one transaction per §4.1.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing *sql.DB (already pgx-backed and
// migrated) as a Store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "pgx")}
}

type refsColumn []Ref

func (r refsColumn) toJSON() ([]byte, error) { return json.Marshal([]Ref(r)) }

func (s *PostgresStore) Append(ctx context.Context, streamID, streamKind string, expectedVersion int, inputs []EventInput) ([]Event, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &errs.InfrastructureError{Port: "EventStore", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion,
		`SELECT COALESCE(MAX(stream_seq), 0) FROM events WHERE stream_id = $1`, streamID)
	if err != nil {
		return nil, &errs.InfrastructureError{Port: "EventStore", Err: err}
	}
	if currentVersion != expectedVersion {
		return nil, &errs.ConcurrencyConflictError{
			StreamID: streamID,
			Expected: expectedVersion,
			Actual:   currentVersion,
		}
	}

	out := make([]Event, 0, len(inputs))
	for i, in := range inputs {
		for _, r := range in.Refs {
			if err := r.Validate(); err != nil {
				return nil, err
			}
		}
		if !in.ActorKind.Valid() {
			return nil, errs.NewValidationError("actor_kind", "unknown actor kind")
		}

		ev := Event{
			EventID:       ids.New(ids.KindEvent),
			StreamID:      streamID,
			StreamKind:    streamKind,
			StreamSeq:     expectedVersion + i + 1,
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
		payloadBytes, err := canonpkg.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		ev.EnvelopeHash = ev.RecomputeEnvelopeHash(payloadBytes)

		refsJSON, err := refsColumn(ev.Refs).toJSON()
		if err != nil {
			return nil, err
		}
		supersedesJSON, err := json.Marshal(ev.Supersedes)
		if err != nil {
			return nil, err
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO events (
				event_id, stream_id, stream_kind, stream_seq, event_type,
				occurred_at, actor_kind, actor_id, correlation_id, causation_id,
				supersedes, refs, payload, envelope_hash
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING global_seq`,
			ev.EventID, ev.StreamID, ev.StreamKind, ev.StreamSeq, ev.EventType,
			ev.OccurredAt, string(ev.ActorKind), ev.ActorID, nullable(ev.CorrelationID), nullable(ev.CausationID),
			supersedesJSON, refsJSON, payloadBytes, ev.EnvelopeHash,
		).Scan(&ev.GlobalSeq)
		if err != nil {
			return nil, &errs.InfrastructureError{Port: "EventStore", Err: err}
		}

		row, err := buildOutboxRow(ev)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox (outbox_id, global_seq, topic, message, message_hash)
			VALUES ($1, $2, $3, $4, $5)`,
			row.OutboxID, row.GlobalSeq, row.Topic, row.Message, row.MessageHash)
		if err != nil {
			return nil, &errs.InfrastructureError{Port: "Outbox", Err: err}
		}

		out = append(out, ev)
	}

	if err := tx.Commit(); err != nil {
		return nil, &errs.InfrastructureError{Port: "EventStore", Err: err}
	}
	return out, nil
}

func (s *PostgresStore) ReadStream(ctx context.Context, streamID string, fromSeq int, limit int) ([]Event, error) {
	query := `SELECT * FROM events WHERE stream_id = $1 AND stream_seq >= $2 ORDER BY stream_seq ASC`
	args := []any{streamID, fromSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *PostgresStore) ReplayAll(ctx context.Context, fromGlobalSeq int64, limit int) ([]Event, error) {
	query := `SELECT * FROM events WHERE global_seq >= $1 ORDER BY global_seq ASC`
	args := []any{fromGlobalSeq}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

type eventRow struct {
	EventID       string          `db:"event_id"`
	StreamID      string          `db:"stream_id"`
	StreamKind    string          `db:"stream_kind"`
	StreamSeq     int             `db:"stream_seq"`
	GlobalSeq     int64           `db:"global_seq"`
	EventType     string          `db:"event_type"`
	OccurredAt    time.Time       `db:"occurred_at"`
	ActorKind     string          `db:"actor_kind"`
	ActorID       string          `db:"actor_id"`
	CorrelationID sql.NullString  `db:"correlation_id"`
	CausationID   sql.NullString  `db:"causation_id"`
	Supersedes    json.RawMessage `db:"supersedes"`
	Refs          json.RawMessage `db:"refs"`
	Payload       json.RawMessage `db:"payload"`
	EnvelopeHash  string          `db:"envelope_hash"`
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &errs.InfrastructureError{Port: "EventStore", Err: err}
	}

	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		var supersedes []string
		if len(r.Supersedes) > 0 {
			if err := json.Unmarshal(r.Supersedes, &supersedes); err != nil {
				return nil, err
			}
		}
		var refs []Ref
		if len(r.Refs) > 0 {
			if err := json.Unmarshal(r.Refs, &refs); err != nil {
				return nil, err
			}
		}
		var payload map[string]any
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &payload); err != nil {
				return nil, err
			}
		}
		out = append(out, Event{
			EventID:       r.EventID,
			StreamID:      r.StreamID,
			StreamKind:    r.StreamKind,
			StreamSeq:     r.StreamSeq,
			GlobalSeq:     r.GlobalSeq,
			EventType:     r.EventType,
			OccurredAt:    r.OccurredAt,
			ActorKind:     ActorKind(r.ActorKind),
			ActorID:       r.ActorID,
			CorrelationID: r.CorrelationID.String,
			CausationID:   r.CausationID.String,
			Supersedes:    supersedes,
			Refs:          refs,
			Payload:       payload,
			EnvelopeHash:  r.EnvelopeHash,
		})
	}
	return out, nil
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	query := `SELECT outbox_id, global_seq, topic, message, message_hash, published_at
		FROM outbox WHERE published_at IS NULL ORDER BY global_seq ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	type row struct {
		OutboxID    string         `db:"outbox_id"`
		GlobalSeq   int64          `db:"global_seq"`
		Topic       string         `db:"topic"`
		Message     []byte         `db:"message"`
		MessageHash string         `db:"message_hash"`
		PublishedAt sql.NullTime   `db:"published_at"`
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &errs.InfrastructureError{Port: "Outbox", Err: err}
	}

	out := make([]OutboxRow, 0, len(rows))
	for _, r := range rows {
		o := OutboxRow{OutboxID: r.OutboxID, GlobalSeq: r.GlobalSeq, Topic: r.Topic, Message: r.Message, MessageHash: r.MessageHash}
		if r.PublishedAt.Valid {
			o.PublishedAt = &r.PublishedAt.Time
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE outbox SET published_at = $1 WHERE outbox_id = $2`, publishedAt, outboxID)
	if err != nil {
		return &errs.InfrastructureError{Port: "Outbox", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &errs.InfrastructureError{Port: "Outbox", Err: err}
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, olderThan)
	if err != nil {
		return 0, &errs.InfrastructureError{Port: "Outbox", Err: err}
	}
	return res.RowsAffected()
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
