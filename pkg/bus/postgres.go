package bus

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/governedloop/core/pkg/errs"
)

// PostgresBus publishes via pg_notify as its own statement on the shared
// *sql.DB, outside any caller transaction, and listens on a dedicated
// pgx connection. receiveLoop waits for notifications on that
// connection; Subscribe issues LISTEN directly on the same connection
// under mu, with no command channel between them.
type PostgresBus struct {
	db         *sql.DB
	connString string

	mu       sync.Mutex
	conn     *pgx.Conn
	channels map[string][]chan Message
}

// NewPostgresBus constructs a PostgresBus. db is used for publishing
// (and may be shared with the event store); connString opens the
// dedicated LISTEN connection lazily on first Subscribe.
func NewPostgresBus(db *sql.DB, connString string) *PostgresBus {
	return &PostgresBus{
		db:         db,
		connString: connString,
		channels:   make(map[string][]chan Message),
	}
}

func (b *PostgresBus) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, topic, string(payload))
	if err != nil {
		return &errs.InfrastructureError{Port: "MessageBus", Err: err}
	}
	return nil
}

func (b *PostgresBus) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		conn, err := pgx.Connect(ctx, b.connString)
		if err != nil {
			return nil, &errs.InfrastructureError{Port: "MessageBus", Err: err}
		}
		b.conn = conn
		go b.receiveLoop(context.Background())
	}

	if _, err := b.conn.Exec(ctx, `LISTEN "`+topic+`"`); err != nil {
		return nil, &errs.InfrastructureError{Port: "MessageBus", Err: err}
	}

	ch := make(chan Message, 64)
	b.channels[topic] = append(b.channels[topic], ch)
	return ch, nil
}

// receiveLoop is the sole goroutine that reads from the dedicated pgx
// connection; it fans notifications out to subscriber channels.
func (b *PostgresBus) receiveLoop(ctx context.Context) {
	for {
		notification, err := b.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("bus: WaitForNotification failed", "error", err)
			return
		}

		b.mu.Lock()
		subs := append([]chan Message(nil), b.channels[notification.Channel]...)
		b.mu.Unlock()

		for _, ch := range subs {
			select {
			case ch <- Message{Topic: notification.Channel, Payload: []byte(notification.Payload)}:
			default:
				slog.Warn("bus: dropping notification for slow subscriber", "channel", notification.Channel)
			}
		}
	}
}

// Close releases the dedicated LISTEN connection.
func (b *PostgresBus) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	return b.conn.Close(ctx)
}
