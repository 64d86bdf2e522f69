package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendCall struct {
	userID         string
	conversationID string
	text           string
}

type fakeChatAPI struct {
	send     func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error)
	list     func(ctx context.Context) ([]conversation.Summary, error)
	messages func(ctx context.Context, conversationID string) ([]conversation.Message, error)

	mu        sync.Mutex
	sends     []sendCall
	listCalls int
}

func (f *fakeChatAPI) SendMessage(ctx context.Context, userID string, conversationID string, text string) (*conversation.Reply, error) {
	f.mu.Lock()
	f.sends = append(f.sends, sendCall{userID: userID, conversationID: conversationID, text: text})
	f.mu.Unlock()
	return f.send(ctx, conversationID, text)
}

func (f *fakeChatAPI) ListConversations(ctx context.Context, userID string) ([]conversation.Summary, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.list == nil {
		return []conversation.Summary{}, nil
	}
	return f.list(ctx)
}

func (f *fakeChatAPI) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	return f.messages(ctx, conversationID)
}

func (f *fakeChatAPI) sendCalls() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.sends...)
}

func (f *fakeChatAPI) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (r *recordingSink) Publish(type_ events.EventType, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if type_ == events.EventTypeSessionUpdated {
		r.snapshots = append(r.snapshots, payload.(Snapshot))
	}
	return nil
}

func (r *recordingSink) versions() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := []uint64{}
	for _, s := range r.snapshots {
		ret = append(ret, s.Version)
	}
	return ret
}

func reply(conversationID, text string, tools ...string) *conversation.Reply {
	ret := &conversation.Reply{ConversationID: conversationID, Text: text}
	for _, t := range tools {
		ret.ToolCalls = append(ret.ToolCalls, conversation.ToolCall{Tool: t})
	}
	return ret
}

func TestSession_StartsNew(t *testing.T) {
	s := New("u1", &fakeChatAPI{})
	snap := s.Snapshot()
	assert.True(t, snap.IsNew())
	assert.False(t, snap.Pending)
	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, "u1", s.UserID())
}

func TestSession_Send_CalculatorScenario(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "4", "calculator"), nil
		},
		list: func(ctx context.Context) ([]conversation.Summary, error) {
			return []conversation.Summary{{ID: "c1", Title: "What is 2+2?"}}, nil
		},
	}
	s := New("u1", api)

	result, err := s.Send(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Failed())
	assert.Equal(t, "c1", result.ConversationID)

	snap := s.Snapshot()
	assert.Equal(t, "c1", snap.ConversationID)
	assert.False(t, snap.Pending)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, conversation.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "What is 2+2?", snap.Messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, "4", snap.Messages[1].Content)
	assert.Equal(t, []string{"calculator"}, snap.Messages[1].ToolNames())
	assert.False(t, snap.Messages[1].Error)

	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, 1, api.listCallCount())

	calls := api.sendCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, sendCall{userID: "u1", conversationID: "", text: "What is 2+2?"}, calls[0])
}

func TestSession_Send_OptimisticAppendBeforeReply(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "hello"), nil
		},
	}
	clock := clockwork.NewFakeClock()
	s := New("u1", api, WithClock(clock))

	h, err := s.StartSend(context.Background(), "  hi there  ")
	require.NoError(t, err)
	require.True(t, h.IsRunning())
	require.NotEmpty(t, h.ID)

	snap := s.Snapshot()
	assert.True(t, snap.Pending)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hi there", snap.Messages[0].Content)
	assert.Equal(t, conversation.RoleUser, snap.Messages[0].Role)
	assert.True(t, clock.Now().Equal(snap.Messages[0].Time))

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.False(t, h.IsRunning())

	snap = s.Snapshot()
	assert.False(t, snap.Pending)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "hi there", snap.Messages[0].Content)
}

func TestSession_Send_BlankInputIsRejected(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			t.Fatal("blank input must not reach the backend")
			return nil, nil
		},
	}
	sink := &recordingSink{}
	s := New("u1", api, WithSink(sink))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Send(context.Background(), text)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	}

	assert.True(t, s.Snapshot().IsNew())
	assert.Equal(t, uint64(0), s.Snapshot().Version)
	assert.Empty(t, sink.versions())
	assert.Empty(t, api.sendCalls())
}

func TestSession_Send_RejectsWhilePending(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "first"), nil
		},
	}
	s := New("u1", api)

	h, err := s.StartSend(context.Background(), "one")
	require.NoError(t, err)

	_, err = s.StartSend(context.Background(), "two")
	require.Error(t, err)
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	require.Len(t, s.Snapshot().Messages, 1)

	close(release)
	_, err = h.Wait()
	require.NoError(t, err)

	assert.Len(t, api.sendCalls(), 1)
	require.Len(t, s.Snapshot().Messages, 2)

	// the gate opens again once the first send resolved
	_, err = s.Send(context.Background(), "two")
	require.NoError(t, err)
	assert.Len(t, api.sendCalls(), 2)
}

func TestSession_Send_FailureAppendsFallback(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := New("u1", api)

	result, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, result.Failed())
	assert.EqualError(t, result.Err, "connection refused")

	snap := s.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, "", snap.ConversationID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, FallbackReply, snap.Messages[1].Content)
	assert.True(t, snap.Messages[1].Error)
	assert.Equal(t, 0, api.listCallCount())
}

func TestSession_Send_EmptyReplyIsFailure(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "  "), nil
		},
	}
	s := New("u1", api)

	result, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, result.Failed())

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.True(t, snap.Messages[1].Error)
	assert.Equal(t, "", snap.ConversationID)
}

func TestSession_Send_RefreshesListOnlyWhenIDChanges(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "ok"), nil
		},
	}
	s := New("u1", api)

	_, err := s.Send(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, 1, api.listCallCount())

	_, err = s.Send(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 1, api.listCallCount())

	calls := api.sendCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[0].conversationID)
	assert.Equal(t, "c1", calls[1].conversationID)
	assert.Len(t, s.Snapshot().Messages, 4)
}

func TestSession_Send_RefreshFailureKeepsReply(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "ok"), nil
		},
		list: func(ctx context.Context) ([]conversation.Summary, error) {
			return nil, errors.New("boom")
		},
	}
	s := New("u1", api)

	result, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, "c1", s.Snapshot().ConversationID)
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestSession_Load_ReplacesMessages(t *testing.T) {
	server := []conversation.Message{
		conversation.NewUserMessage("a", conversation.WithID("m1")),
		conversation.NewAssistantMessage("b", conversation.WithID("m2")),
		conversation.NewUserMessage("c", conversation.WithID("m3")),
	}
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c9", "local"), nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			require.Equal(t, "c2", conversationID)
			return server, nil
		},
	}
	s := New("u1", api)
	_, err := s.Send(context.Background(), "local message")
	require.NoError(t, err)

	require.NoError(t, s.Load(context.Background(), "c2"))

	snap := s.Snapshot()
	assert.Equal(t, "c2", snap.ConversationID)
	require.Len(t, snap.Messages, 3)
	for i, m := range snap.Messages {
		assert.Equal(t, server[i].ID, m.ID)
		assert.Equal(t, server[i].Content, m.Content)
	}
}

func TestSession_Load_FailureLeavesState(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "ok"), nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			return nil, errors.New("not found")
		},
	}
	s := New("u1", api)
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	before := s.Snapshot()

	err = s.Load(context.Background(), "c2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	after := s.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, "c1", after.ConversationID)
	assert.Len(t, after.Messages, 2)
}

func TestSession_Load_EmptyIDIsRejected(t *testing.T) {
	s := New("u1", &fakeChatAPI{})
	err := s.Load(context.Background(), " ")
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSession_LoadWhileSendPending_LoadWins(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "late reply"), nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			return []conversation.Message{conversation.NewUserMessage("old")}, nil
		},
	}
	s := New("u1", api)

	h, err := s.StartSend(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, s.Load(context.Background(), "c2"))
	assert.True(t, s.Snapshot().Pending)

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.Nil(t, result.Reply)
	assert.False(t, result.Failed())

	snap := s.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, "c2", snap.ConversationID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "old", snap.Messages[0].Content)
	// c1 was created by the dropped send, it is listed but not adopted
	assert.Equal(t, 1, api.listCallCount())
}

func TestSession_FailedLoadDoesNotDropPendingReply(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "reply"), nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			return nil, errors.New("offline")
		},
	}
	s := New("u1", api)

	h, err := s.StartSend(context.Background(), "hi")
	require.NoError(t, err)
	require.Error(t, s.Load(context.Background(), "c2"))

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	assert.False(t, result.Stale)
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestSession_NewConversation_DropsStaleReply(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "reply"), nil
		},
	}
	s := New("u1", api)

	h, err := s.StartSend(context.Background(), "hi")
	require.NoError(t, err)

	s.NewConversation()
	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, "", snap.ConversationID)
	assert.True(t, snap.Pending)

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, result.Stale)

	snap = s.Snapshot()
	assert.True(t, snap.IsNew())
	assert.False(t, snap.Pending)
}

func TestSession_NewConversation_StaleNewThreadStillListed(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply("c1", "reply"), nil
		},
		list: func(ctx context.Context) ([]conversation.Summary, error) {
			return []conversation.Summary{{ID: "c1", Title: "first"}}, nil
		},
	}
	s := New("u1", api)

	h, err := s.StartSend(context.Background(), "first")
	require.NoError(t, err)
	s.NewConversation()

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	require.True(t, result.Stale)

	assert.Equal(t, 1, api.listCallCount())
	snap := s.Snapshot()
	assert.Equal(t, "", snap.ConversationID)
	assert.Empty(t, snap.Messages)
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "c1", snap.Conversations[0].ID)
}

func TestSession_StaleReplyInExistingThreadDoesNotRefresh(t *testing.T) {
	release := make(chan struct{})
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			<-release
			return reply(conversationID, "reply"), nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			return []conversation.Message{conversation.NewUserMessage("old")}, nil
		},
	}
	s := New("u1", api)
	require.NoError(t, s.Load(context.Background(), "c1"))

	h, err := s.StartSend(context.Background(), "more")
	require.NoError(t, err)
	s.NewConversation()

	close(release)
	result, err := h.Wait()
	require.NoError(t, err)
	require.True(t, result.Stale)
	assert.Equal(t, 0, api.listCallCount())
}

func TestSession_Load_LastIssuedWins(t *testing.T) {
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	api := &fakeChatAPI{
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			<-gates[conversationID]
			return []conversation.Message{conversation.NewUserMessage(conversationID)}, nil
		},
	}
	s := New("u1", api)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Load(context.Background(), "first")
	}()
	// make sure the first load is issued before the second
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.loadSeq == 1
	}, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.Load(context.Background(), "second")
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.loadSeq == 2
	}, time.Second, time.Millisecond)

	close(gates["second"])
	require.NoError(t, <-secondDone)
	close(gates["first"])
	require.NoError(t, <-firstDone)

	snap := s.Snapshot()
	assert.Equal(t, "second", snap.ConversationID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "second", snap.Messages[0].Content)
}

func TestSession_Resume_EmptyListStaysNew(t *testing.T) {
	api := &fakeChatAPI{
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			t.Fatal("nothing to load")
			return nil, nil
		},
	}
	s := New("u1", api)

	require.NoError(t, s.Resume(context.Background()))
	snap := s.Snapshot()
	assert.True(t, snap.IsNew())
	assert.Empty(t, snap.Conversations)
}

func TestSession_Resume_LoadsMostRecent(t *testing.T) {
	api := &fakeChatAPI{
		list: func(ctx context.Context) ([]conversation.Summary, error) {
			return []conversation.Summary{{ID: "recent"}, {ID: "older"}}, nil
		},
		messages: func(ctx context.Context, conversationID string) ([]conversation.Message, error) {
			return []conversation.Message{conversation.NewUserMessage("from " + conversationID)}, nil
		},
	}
	s := New("u1", api)

	require.NoError(t, s.Resume(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, "recent", snap.ConversationID)
	require.Len(t, snap.Conversations, 2)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "from recent", snap.Messages[0].Content)
}

func TestSession_Resume_ListFailure(t *testing.T) {
	api := &fakeChatAPI{
		list: func(ctx context.Context) ([]conversation.Summary, error) {
			return nil, errors.New("down")
		},
	}
	s := New("u1", api)
	require.Error(t, s.Resume(context.Background()))
	assert.True(t, s.Snapshot().IsNew())
}

func TestSession_PublishesIncreasingVersions(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "ok"), nil
		},
	}
	sink := &recordingSink{}
	s := New("u1", api, WithSink(sink))

	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	s.NewConversation()

	// user append, reply, list refresh, new conversation
	assert.Equal(t, []uint64{1, 2, 3, 4}, sink.versions())
	assert.Equal(t, uint64(4), s.Snapshot().Version)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	api := &fakeChatAPI{
		send: func(ctx context.Context, conversationID string, text string) (*conversation.Reply, error) {
			return reply("c1", "ok", "search"), nil
		},
	}
	s := New("u1", api)
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Messages[0].Content = "changed"
	snap.Messages[1].ToolCalls[0].Tool = "changed"

	again := s.Snapshot()
	assert.Equal(t, "hi", again.Messages[0].Content)
	assert.Equal(t, "search", again.Messages[1].ToolCalls[0].Tool)
}

func TestSendHandle_Nil(t *testing.T) {
	var h *SendHandle
	_, err := h.Wait()
	require.ErrorIs(t, err, ErrSendHandleNil)
	assert.False(t, h.IsRunning())
}
