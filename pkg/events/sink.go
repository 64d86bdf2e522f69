package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// Sink receives state updates. Implementations must not block for long, they
// are called right after every state change.
type Sink interface {
	Publish(type_ EventType, payload interface{}) error
}

// NullSink discards everything.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) Publish(EventType, interface{}) error {
	return nil
}

var _ Sink = (*NullSink)(nil)

// WatermillSink publishes envelopes as JSON messages on a watermill publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) Publish(type_ EventType, payload interface{}) error {
	envelope, err := NewEnvelope(type_, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(type_)).Msg("Failed to build envelope")
		return err
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal envelope to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(type_)).Msg("Published event to watermill")
	return nil
}

var _ Sink = (*WatermillSink)(nil)
