// Package session manages the client's working view of a conversation: the
// ordered message log, the id of the server conversation it belongs to, and
// the single send that may be in flight.
//
// User messages are appended optimistically before the backend answers and
// are never retracted. A failed send appends a fixed apology instead of the
// reply. Every change produces a new immutable Snapshot that is published on
// the configured events.Sink.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FallbackReply replaces the assistant reply when a send fails.
const FallbackReply = "Sorry, I encountered an error. Please try again."

// ChatAPI is the part of the backend the session talks to.
type ChatAPI interface {
	SendMessage(ctx context.Context, userID string, conversationID string, text string) (*conversation.Reply, error)
	ListConversations(ctx context.Context, userID string) ([]conversation.Summary, error)
	ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	// Version increases by one with every state change.
	Version uint64 `json:"version"`
	// ConversationID is empty until the server assigned one.
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
	Pending        bool                   `json:"pending"`
	Conversations  []conversation.Summary `json:"conversations"`
}

// IsNew reports whether the snapshot is a fresh, unsaved conversation.
func (s Snapshot) IsNew() bool {
	return s.ConversationID == "" && len(s.Messages) == 0
}

type Session struct {
	userID string
	api    ChatAPI
	sink   events.Sink
	clock  clockwork.Clock

	mu             sync.Mutex
	version        uint64
	conversationID string
	messages       []conversation.Message
	conversations  []conversation.Summary
	pending        *SendHandle

	// epoch changes whenever the message log is replaced wholesale. Sends and
	// loads started under an older epoch are discarded when they complete.
	epoch uint64
	// loadSeq orders loads by issue time, so that only the last issued load
	// is applied.
	loadSeq uint64
}

type Option func(*Session)

func WithSink(sink events.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a session for userID in the New state.
func New(userID string, api ChatAPI, options ...Option) *Session {
	ret := &Session{
		userID: userID,
		api:    api,
		sink:   events.NewNullSink(),
		clock:  clockwork.NewRealClock(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *Session) UserID() string {
	return s.userID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	ret := Snapshot{
		Version:        s.version,
		ConversationID: s.conversationID,
		Pending:        s.pending != nil,
	}
	if len(s.messages) > 0 {
		ret.Messages = clone.Clone(s.messages).([]conversation.Message)
	}
	if len(s.conversations) > 0 {
		ret.Conversations = clone.Clone(s.conversations).([]conversation.Summary)
	}
	return ret
}

// changedLocked bumps the version and returns the snapshot to publish once
// the lock is released.
func (s *Session) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Session) publish(snapshot Snapshot) {
	if err := s.sink.Publish(events.EventTypeSessionUpdated, snapshot); err != nil {
		log.Warn().Err(err).Uint64("version", snapshot.Version).Msg("Could not publish session snapshot")
	}
}

// NewConversation drops the current log and returns to the New state. A send
// still in flight keeps the session pending, but its reply will be dropped.
func (s *Session) NewConversation() {
	s.mu.Lock()
	s.epoch++
	s.conversationID = ""
	s.messages = nil
	snapshot := s.changedLocked()
	s.mu.Unlock()

	log.Debug().Msg("Started new conversation")
	s.publish(snapshot)
}

// Load replaces the log with the messages of conversationID. On failure the
// state is left untouched and the error is returned. A load that was
// overtaken by a later load or a NewConversation is dropped silently.
func (s *Session) Load(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return &InvalidInputError{Reason: "conversation id is empty"}
	}

	s.mu.Lock()
	s.loadSeq++
	ticket := s.loadSeq
	epoch := s.epoch
	s.mu.Unlock()

	messages, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("Could not load conversation")
		return errors.Wrapf(err, "could not load conversation %s", conversationID)
	}

	s.mu.Lock()
	if ticket != s.loadSeq || epoch != s.epoch {
		s.mu.Unlock()
		log.Debug().Str("conversation_id", conversationID).Msg("Dropping stale conversation load")
		return nil
	}
	s.epoch++
	s.conversationID = conversationID
	s.messages = messages
	snapshot := s.changedLocked()
	s.mu.Unlock()

	log.Debug().
		Str("conversation_id", conversationID).
		Int("messages", len(messages)).
		Msg("Loaded conversation")
	s.publish(snapshot)
	return nil
}

// RefreshConversations fetches the user's conversation list. On failure the
// previous list is kept.
func (s *Session) RefreshConversations(ctx context.Context) ([]conversation.Summary, error) {
	conversations, err := s.api.ListConversations(ctx, s.userID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not refresh conversations")
		return nil, errors.Wrap(err, "could not list conversations")
	}

	s.mu.Lock()
	s.conversations = conversations
	snapshot := s.changedLocked()
	s.mu.Unlock()

	s.publish(snapshot)
	return snapshot.Conversations, nil
}

// Resume refreshes the conversation list and, if no conversation is active,
// opens the most recent one. With no conversations the session stays New.
func (s *Session) Resume(ctx context.Context) error {
	conversations, err := s.RefreshConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	active := s.conversationID != ""
	s.mu.Unlock()

	if active || len(conversations) == 0 {
		return nil
	}
	return s.Load(ctx, conversations[0].ID)
}

// Send sends text and waits until the reply, or the apology, is in the log.
// The only errors returned are ErrInvalidInput ones; backend failures are
// reported through SendResult.Err.
func (s *Session) Send(ctx context.Context, text string) (*SendResult, error) {
	h, err := s.StartSend(ctx, text)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

// StartSend appends the user message and starts the backend call in the
// background.
func (s *Session) StartSend(ctx context.Context, text string) (*SendHandle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyMessage()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, errSendPending()
	}
	h := newSendHandle(uuid.NewString())
	s.pending = h
	epoch := s.epoch
	conversationID := s.conversationID
	s.messages = append(s.messages, conversation.NewUserMessage(text, conversation.WithTime(s.clock.Now())))
	snapshot := s.changedLocked()
	s.mu.Unlock()

	log.Debug().
		Str("send_id", h.ID).
		Str("conversation_id", conversationID).
		Msg("Sending message")
	s.publish(snapshot)

	go s.runSend(ctx, h, epoch, conversationID, text)

	return h, nil
}

func (s *Session) runSend(ctx context.Context, h *SendHandle, epoch uint64, conversationID string, text string) {
	reply, err := s.api.SendMessage(ctx, s.userID, conversationID, text)
	if err == nil && (reply == nil || strings.TrimSpace(reply.Text) == "") {
		err = errors.New("backend returned an empty reply")
	}

	result := &SendResult{
		ConversationID: conversationID,
		Err:            err,
	}
	refresh := false

	s.mu.Lock()
	s.pending = nil
	switch {
	case epoch != s.epoch:
		result.Stale = true
		// the log moved on, but a thread the server just created still belongs in the list
		refresh = err == nil && reply.ConversationID != conversationID
		log.Debug().Str("send_id", h.ID).Msg("Dropping stale reply")

	case err != nil:
		log.Warn().Err(err).Str("send_id", h.ID).Msg("Send failed")
		m := conversation.NewAssistantMessage(FallbackReply,
			conversation.WithTime(s.clock.Now()),
			conversation.AsError())
		s.messages = append(s.messages, m)
		result.Reply = &m

	default:
		if reply.ConversationID != conversationID {
			s.conversationID = reply.ConversationID
			result.ConversationID = reply.ConversationID
			refresh = true
		}
		m := conversation.NewAssistantMessage(reply.Text,
			conversation.WithTime(s.clock.Now()),
			conversation.WithToolCalls(reply.ToolCalls))
		s.messages = append(s.messages, m)
		result.Reply = &m
	}
	snapshot := s.changedLocked()
	s.mu.Unlock()

	s.publish(snapshot)

	if refresh {
		log.Debug().
			Str("conversation_id", reply.ConversationID).
			Bool("stale", result.Stale).
			Msg("Server created a conversation")
		// the new conversation should show up in the list
		if _, err := s.RefreshConversations(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not refresh conversations after send")
		}
	}

	h.setResult(result)
}
