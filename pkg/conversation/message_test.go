package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewAssistantMessage("4",
		WithTime(at),
		WithID("m1"),
		WithToolCalls([]ToolCall{{Tool: "calculator"}, {Tool: "search_documents"}}),
	)

	assert.Equal(t, RoleAssistant, m.Role)
	assert.Equal(t, at, m.Time)
	assert.Equal(t, "m1", m.ID)
	assert.False(t, m.Error)
	assert.Equal(t, []string{"calculator", "search_documents"}, m.ToolNames())

	u := NewUserMessage("hi")
	assert.Equal(t, RoleUser, u.Role)
	assert.False(t, u.Time.IsZero())
	assert.Nil(t, u.ToolNames())

	e := NewAssistantMessage("Sorry", AsError())
	assert.True(t, e.Error)
}

func TestMessage_String(t *testing.T) {
	assert.Equal(t, "[user]: hello", NewUserMessage("hello\n").String())
	assert.Equal(t, "[assistant]: \n```go\nx\n```", NewAssistantMessage("```go\nx\n```\n").String())
}
