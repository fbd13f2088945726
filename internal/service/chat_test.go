package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-sync/internal/llm"
	"github.com/capitalize-ai/chat-sync/internal/model"
)

func newTestChat(t *testing.T, client *fakeLLM) (*ChatService, *memStore, *fakeNotifier) {
	t.Helper()
	syncSvc, st, n, _ := newTestSync(t)
	var router *llm.Router
	if client != nil {
		router = llm.NewRouter(llm.ProviderAnthropic, client)
	}
	return NewChatService(syncSvc, router, nil), st, n
}

func TestChatCreatesConversationAndNotifiesOnce(t *testing.T) {
	client := &fakeLLM{tokens: []string{"Hel", "lo", "!"}}
	svc, st, n := newTestChat(t, client)

	var streamed []string
	conv, msg, err := svc.Send(context.Background(), "alice", &model.ChatRequest{
		Content: "Tell me something interesting about octopuses please",
	}, func(token string, index int) error {
		streamed = append(streamed, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", "!"}, streamed)
	assert.Equal(t, "Hello!", msg.Content)
	assert.Nil(t, msg.Error)
	require.NotNil(t, msg.TokenCount)
	assert.Equal(t, 3, *msg.TokenCount)

	assert.Equal(t, "Tell me something interesting ...", conv.Title)
	assert.Equal(t, "fake-model", conv.ModelID)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)

	assert.Equal(t, 1, st.writes)
	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello!", sent[0].doc.FindConversation(conv.ID).Messages[1].Content)
}

func TestChatContinuesExistingConversation(t *testing.T) {
	client := &fakeLLM{tokens: []string{"again"}}
	svc, st, _ := newTestChat(t, client)

	doc := model.NewUserDocument()
	require.NoError(t, doc.AddConversation(model.Conversation{
		ID:    "c1",
		Title: "Existing",
		Messages: []model.Message{
			{ID: "m0", Role: model.RoleSystem, Content: "be terse"},
			{ID: "m1", Role: model.RoleUser, Content: "hi"},
			{ID: "m2", Role: model.RoleAssistant, Content: "hello"},
		},
	}))
	_, err := st.Write(context.Background(), "alice", doc)
	require.NoError(t, err)

	conv, _, err := svc.Send(context.Background(), "alice", &model.ChatRequest{ConversationID: "c1", Content: "more"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Existing", conv.Title)
	assert.Len(t, conv.Messages, 5)
	assert.Equal(t, "be terse", client.got.System)
	require.Len(t, client.got.Messages, 3)
	assert.Equal(t, "more", client.got.Messages[2].Content)
}

func TestChatProviderFailureIsSaved(t *testing.T) {
	client := &fakeLLM{tokens: []string{"partial"}, err: errors.New("overloaded")}
	svc, st, n := newTestChat(t, client)

	conv, msg, err := svc.Send(context.Background(), "alice", &model.ChatRequest{Content: "hi"}, nil)
	require.NoError(t, err)

	require.NotNil(t, msg.Error)
	assert.Contains(t, msg.Error.Message, "overloaded")
	assert.Equal(t, "partial", msg.Content)

	stored := st.stored("alice").FindConversation(conv.ID)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Messages[1].Error)
	assert.Len(t, n.all(), 1)
}

func TestChatOutlivesClientDisconnect(t *testing.T) {
	client := &fakeLLM{tokens: []string{"still", " here"}}
	svc, st, _ := newTestChat(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv, msg, err := svc.Send(ctx, "alice", &model.ChatRequest{Content: "hi"}, func(string, int) error {
		cancel()
		return nil
	})
	require.NoError(t, err)

	assert.NoError(t, client.ctxErr)
	assert.Nil(t, msg.Error)
	assert.Equal(t, "still here", msg.Content)

	stored := st.stored("alice").FindConversation(conv.ID)
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Nil(t, stored.Messages[1].Error)
}

func TestChatWithoutProvider(t *testing.T) {
	svc, st, n := newTestChat(t, nil)
	assert.False(t, svc.HasProvider(""))

	_, _, err := svc.Send(context.Background(), "alice", &model.ChatRequest{Content: "hi"}, nil)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Zero(t, st.writes)
	assert.Empty(t, n.all())

	withClient, _, _ := newTestChat(t, &fakeLLM{})
	assert.True(t, withClient.HasProvider(""))
	assert.False(t, withClient.HasProvider("openai"))
}

func TestChatRejectsDeletedConversation(t *testing.T) {
	svc, st, _ := newTestChat(t, &fakeLLM{tokens: []string{"x"}})

	doc := model.NewUserDocument()
	require.NoError(t, doc.AddConversation(model.Conversation{ID: "c1", Deleted: true}))
	_, err := st.Write(context.Background(), "alice", doc)
	require.NoError(t, err)

	_, _, err = svc.Send(context.Background(), "alice", &model.ChatRequest{ConversationID: "c1", Content: "hi"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "New Chat", deriveTitle("   "))
	assert.Equal(t, "short one", deriveTitle("short\n one"))
	assert.Equal(t, strings.Repeat("é", 30)+"...", deriveTitle(strings.Repeat("é", 40)))
}
