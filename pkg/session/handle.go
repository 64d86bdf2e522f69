package session

import (
	"sync"

	"github.com/go-go-golems/docchat/pkg/conversation"
)

// SendResult describes how a send resolved.
type SendResult struct {
	// ConversationID is the conversation the reply was filed under.
	ConversationID string
	// Reply is the assistant message appended to the log. It is the apology
	// message when the send failed, and nil when the result was stale.
	Reply *conversation.Message
	// Err is the underlying failure. It has already been folded into the log.
	Err error
	// Stale is set when the log was replaced while the send was in flight and
	// the reply was dropped.
	Stale bool
}

// Failed reports whether the send ended with the apology message.
func (r *SendResult) Failed() bool {
	return r != nil && r.Err != nil && !r.Stale
}

// SendHandle represents a single in-flight send.
type SendHandle struct {
	ID string

	done chan struct{}

	mu     sync.Mutex
	result *SendResult
}

func newSendHandle(id string) *SendHandle {
	return &SendHandle{
		ID:   id,
		done: make(chan struct{}),
	}
}

func (h *SendHandle) setResult(result *SendResult) {
	h.mu.Lock()
	h.result = result
	close(h.done)
	h.mu.Unlock()
}

// Wait blocks until the send has been folded into the session.
func (h *SendHandle) Wait() (*SendResult, error) {
	if h == nil {
		return nil, ErrSendHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, nil
}

func (h *SendHandle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the send appears to still be running.
func (h *SendHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
