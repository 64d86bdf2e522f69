// Package conversation holds the client-side view of a chat thread.
//
// A conversation is owned by the server. The client only ever sees summaries
// (for listings) and the ordered message sequence of the thread it is working on.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is one tool invocation the assistant performed while producing a reply.
// Input and Result are kept as raw JSON, the client never interprets them.
type ToolCall struct {
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Message is one turn in a conversation.
type Message struct {
	// ID is the server id, empty for messages created locally.
	ID        string     `json:"id,omitempty"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Time      time.Time  `json:"time"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Error marks a locally synthesized failure message.
	Error bool `json:"error,omitempty"`
}

type MessageOption func(*Message)

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func WithToolCalls(toolCalls []ToolCall) MessageOption {
	return func(m *Message) {
		m.ToolCalls = toolCalls
	}
}

func WithID(id string) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func AsError() MessageOption {
	return func(m *Message) {
		m.Error = true
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleUser, content, options...)
}

func NewAssistantMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleAssistant, content, options...)
}

// ToolNames returns the tool names in invocation order.
func (m Message) ToolNames() []string {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	ret := make([]string, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		ret = append(ret, tc.Tool)
	}
	return ret
}

func (m Message) String() string {
	text := m.Content
	if strings.HasPrefix(text, "```") {
		text = "\n" + text
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(text, "\n"))
}

// Summary is the listing metadata of a server-side conversation.
type Summary struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
}

// Reply is the assistant answer to a sent message, together with the id of the
// conversation it was filed under (newly created when none was given).
type Reply struct {
	ConversationID string
	Text           string
	ToolCalls      []ToolCall
}
