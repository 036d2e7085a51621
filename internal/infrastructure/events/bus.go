// Package events carries engine events to transports over a watermill
// gochannel pub/sub.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/doeshing/sentry-go/internal/ports"
)

// Event is a delivered message.
type Event struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Bus publishes JSON payloads. Messages published while nobody is
// subscribed are dropped.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates an in-process bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Publish implements ports.EventPublisher.
func (b *Bus) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// Subscribe streams events on topic until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range messages {
			event := Event{ID: msg.UUID, Topic: topic, Payload: json.RawMessage(msg.Payload)}
			select {
			case out <- event:
			case <-ctx.Done():
				msg.Ack()
				return
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close stops every subscription.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

var _ ports.EventPublisher = (*Bus)(nil)
