package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/documents"
)

type sendMessageRequest struct {
	UserID string `json:"user_id"`
	// nil is encoded as null, which asks the server to start a new conversation
	ConversationID *string `json:"conversation_id"`
	Message        string  `json:"message"`
}

type sendMessageResponse struct {
	ConversationID string                  `json:"conversation_id"`
	Response       string                  `json:"response"`
	ToolCalls      []conversation.ToolCall `json:"tool_calls"`
}

type conversationRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

func (r conversationRecord) toSummary() conversation.Summary {
	return conversation.Summary{
		ID:           r.ID,
		Title:        r.Title,
		CreatedAt:    r.CreatedAt.Time(),
		UpdatedAt:    r.UpdatedAt.Time(),
		MessageCount: r.MessageCount,
	}
}

type messageRecord struct {
	ID             string                  `json:"id"`
	Role           string                  `json:"role"`
	Content        string                  `json:"content"`
	ToolCalls      []conversation.ToolCall `json:"tool_calls"`
	CreatedAt      Timestamp               `json:"created_at"`
	SequenceNumber int                     `json:"sequence_number"`
}

func (r messageRecord) toMessage() conversation.Message {
	return conversation.Message{
		ID:        r.ID,
		Role:      conversation.Role(r.Role),
		Content:   r.Content,
		Time:      r.CreatedAt.Time(),
		ToolCalls: r.ToolCalls,
	}
}

type documentRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	Status     string    `json:"status"`
	CreatedAt  Timestamp `json:"created_at"`
	ChunkCount int       `json:"chunk_count"`
}

func (r documentRecord) toSummary() documents.Summary {
	return documents.Summary{
		ID:         r.ID,
		Filename:   r.Filename,
		FileType:   r.FileType,
		FileSize:   r.FileSize,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt.Time(),
		ChunkCount: r.ChunkCount,
	}
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Timestamp decodes the ISO-8601 timestamps the backend emits. Timestamps
// without a zone designator are taken as UTC.
type Timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = Timestamp(time.Time{})
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			*t = Timestamp(parsed)
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
