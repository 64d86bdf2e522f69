package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type EventType string

const (
	// EventTypeSessionUpdated carries a session.Snapshot.
	EventTypeSessionUpdated EventType = "session-updated"
	// EventTypeUploadUpdated carries an upload.Status.
	EventTypeUploadUpdated EventType = "upload-updated"
)

// DefaultTopic is the watermill topic state updates are published on.
const DefaultTopic = "docchat"

// Envelope wraps a state payload for transport over the message bus. The
// payload stays raw so that this package does not depend on the producers.
type Envelope struct {
	Type    EventType       `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(type_ EventType, payload interface{}) (*Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "could not marshal %s payload", type_)
	}
	return &Envelope{
		Type:    type_,
		Time:    time.Now(),
		Payload: b,
	}, nil
}

func NewEnvelopeFromJSON(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal envelope")
	}
	if e.Type == "" {
		return nil, errors.New("envelope has no type")
	}
	return &e, nil
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return errors.Errorf("%s envelope has no payload", e.Type)
	}
	return errors.Wrapf(json.Unmarshal(e.Payload, v), "could not decode %s payload", e.Type)
}
