// Package bus implements the MessageBus port from §6: at-least-once
// publish, durable subscription. The default adapter uses PostgreSQL
// LISTEN/NOTIFY, the same mechanism the teacher's pkg/events/publisher.go
// uses for WebSocket fan-out. pkg/outbox's Publisher calls Publish for
// outbox rows after their append transaction has committed; pg_notify
// is not issued inside the append transaction.
package bus

import (
	"context"
)

// Message is what a subscriber receives: the raw outbox payload plus
// routing metadata. MemoryBus and PostgresBus leave EventID empty;
// consumers disambiguate redelivery by the event_id embedded in Payload.
type Message struct {
	Topic   string
	Payload []byte
	EventID string
}

// MessageBus is the port consumed by pkg/outbox's Publisher.
type MessageBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}
