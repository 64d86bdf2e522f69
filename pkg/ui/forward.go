package ui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/rs/zerolog/log"
)

// SessionUpdatedMsg carries a new session snapshot into the program.
type SessionUpdatedMsg struct {
	Snapshot session.Snapshot
}

// UploadUpdatedMsg carries a new upload status into the program.
type UploadUpdatedMsg struct {
	Status upload.Status
}

// ForwardEvents returns a watermill handler that decodes state updates and
// sends them to p.
func ForwardEvents(p *tea.Program) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewEnvelopeFromJSON(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed event")
			return nil
		}

		teaMsg, err := decodeEnvelope(e)
		if err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("Could not decode event")
			return nil
		}
		if teaMsg != nil {
			p.Send(teaMsg)
		}
		return nil
	}
}

func decodeEnvelope(e *events.Envelope) (tea.Msg, error) {
	switch e.Type {
	case events.EventTypeSessionUpdated:
		var snapshot session.Snapshot
		if err := e.Decode(&snapshot); err != nil {
			return nil, err
		}
		return SessionUpdatedMsg{Snapshot: snapshot}, nil

	case events.EventTypeUploadUpdated:
		var status upload.Status
		if err := e.Decode(&status); err != nil {
			return nil, err
		}
		return UploadUpdatedMsg{Status: status}, nil

	default:
		log.Debug().Str("event_type", string(e.Type)).Msg("Ignoring event")
		return nil, nil
	}
}
