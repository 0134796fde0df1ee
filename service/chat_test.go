package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"capstone/llm"
	"capstone/llm/llmtest"
	"capstone/lock"
	"capstone/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChat(t *testing.T, gw llm.Gateway, defaultKey string) (*ChatService, *ConversationService) {
	t.Helper()
	s := newTestStore(t)
	personality := filepath.Join(t.TempDir(), "personality.txt")
	require.NoError(t, os.WriteFile(personality, []byte("Answer briefly."), 0o644))
	return NewChatService(s, gw, lock.NewMemory(), defaultKey, personality), NewConversationService(s)
}

func TestStartTurnValidation(t *testing.T) {
	ctx := ctxTimeout(t)
	chat, _ := newChat(t, llmtest.Reply("hi"), "")

	_, err := chat.StartTurn(ctx, TurnInput{Message: "hello", APIKey: "k"})
	assert.Equal(t, Unauthorized, KindOf(err))

	_, err = chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hello"})
	assert.Equal(t, BadRequest, KindOf(err))
	assert.Equal(t, noAPIKeyMessage, MessageOf(err))

	_, err = chat.StartTurn(ctx, TurnInput{UserID: "u1", APIKey: "k"})
	assert.Equal(t, BadRequest, KindOf(err))
	assert.Equal(t, "Missing message or file.", MessageOf(err))

	_, err = chat.StartTurn(ctx, TurnInput{UserID: "u1", APIKey: "k", Message: "hi", ConversationID: "missing"})
	assert.Equal(t, NotFound, KindOf(err))
}

func TestChatStreamsAndPersistsTurn(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := llmtest.Reply("Hel", "lo")
	chat, convs := newChat(t, gw, "default-key")

	turn, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "Say hello to everyone in the room please"})
	require.NoError(t, err)
	assert.True(t, turn.Created())

	w := &recorder{}
	require.NoError(t, turn.Relay(ctx, w))
	assert.Equal(t, "Hello", w.String())
	assert.Equal(t, []string{"Hel", "lo"}, w.flushed)

	detail, err := convs.Get(ctx, "u1", turn.ConversationID())
	require.NoError(t, err)
	assert.Equal(t, "Say hello to everyone in the r", detail.Title)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, model.RoleUser, detail.Messages[0].Role)
	assert.Equal(t, "Say hello to everyone in the room please", detail.Messages[0].Content)
	assert.Equal(t, model.RoleModel, detail.Messages[1].Role)
	assert.Equal(t, "Hello", detail.Messages[1].Content)
	assert.True(t, detail.Messages[1].CreatedAt.After(detail.Messages[0].CreatedAt))

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "default-key", reqs[0].APIKey)
	assert.Equal(t, "Answer briefly.", reqs[0].SystemInstruction)
	assert.Empty(t, reqs[0].History)

	// second turn on the same conversation carries the history
	turn, err = chat.StartTurn(ctx, TurnInput{UserID: "u1", APIKey: "own-key", Message: "again", ConversationID: detail.ID})
	require.NoError(t, err)
	assert.False(t, turn.Created())
	require.NoError(t, turn.Relay(ctx, &recorder{}))

	reqs = gw.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "own-key", reqs[1].APIKey)
	require.Len(t, reqs[1].History, 2)
	assert.Equal(t, model.RoleUser, reqs[1].History[0].Role)
	assert.Equal(t, model.RoleModel, reqs[1].History[1].Role)
	assert.Equal(t, "again", reqs[1].Prompt.Text)

	detail, err = convs.Get(ctx, "u1", detail.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 4)
}

func TestKeyErrorBeforeStream(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := &llmtest.Gateway{Chunks: []llm.Chunk{{Err: errors.New("googleapi: Error 400: API key not valid")}}}
	chat, convs := newChat(t, gw, "k")

	_, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi"})
	assert.Equal(t, Unauthorized, KindOf(err))
	assert.Equal(t, badKeyMessage, MessageOf(err))

	list, err := convs.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	detail, err := convs.Get(ctx, "u1", list[0].ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Messages)

	// the turn lock was released
	gw.Chunks = []llm.Chunk{{Text: "ok"}}
	turn, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi", ConversationID: list[0].ID})
	require.NoError(t, err)
	require.NoError(t, turn.Relay(ctx, &recorder{}))
}

func TestOtherErrorBeforeStream(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := &llmtest.Gateway{Chunks: []llm.Chunk{{Err: errors.New("503 Service Unavailable")}}}
	chat, _ := newChat(t, gw, "k")

	_, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi"})
	assert.Equal(t, Internal, KindOf(err))
}

func TestMidStreamErrorIsInlined(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := &llmtest.Gateway{Chunks: []llm.Chunk{{Text: "partial"}, {Err: errors.New("connection reset")}}}
	chat, convs := newChat(t, gw, "k")

	turn, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	w := &recorder{}
	err = turn.Relay(ctx, w)
	assert.Equal(t, UpstreamDegraded, KindOf(err))
	assert.Equal(t, "partial"+errorNotice, w.String())

	detail, err := convs.Get(ctx, "u1", turn.ConversationID())
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "partial"+errorNotice, detail.Messages[1].Content)
}

func TestConcurrentTurnConflicts(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := llmtest.Reply("a", "b")
	gw.Hold = make(chan struct{})
	chat, _ := newChat(t, gw, "k")

	first, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "one"})
	require.NoError(t, err)

	_, err = chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "two", ConversationID: first.ConversationID()})
	assert.Equal(t, Conflict, KindOf(err))

	close(gw.Hold)
	w := &recorder{}
	require.NoError(t, first.Relay(ctx, w))
	assert.Equal(t, "ab", w.String())
}

func TestDisconnectSkipsPersistence(t *testing.T) {
	gw := llmtest.Reply("a", "b")
	gw.Hold = make(chan struct{})
	chat, convs := newChat(t, gw, "k")

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err = turn.Relay(ctx, &recorder{})
	assert.ErrorIs(t, err, ErrClientGone)

	detail, err := convs.Get(ctxTimeout(t), "u1", turn.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, detail.Messages)
}

func TestWriteFailureSkipsPersistence(t *testing.T) {
	ctx := ctxTimeout(t)
	chat, convs := newChat(t, llmtest.Reply("a", "b", "c"), "k")

	turn, err := chat.StartTurn(ctx, TurnInput{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	err = turn.Relay(ctx, &recorder{failOn: 2})
	assert.ErrorIs(t, err, ErrClientGone)

	detail, err := convs.Get(ctx, "u1", turn.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, detail.Messages)
}

func TestAttachmentIsForwardedAndRecorded(t *testing.T) {
	ctx := ctxTimeout(t)
	gw := llmtest.Reply("seen")
	chat, convs := newChat(t, gw, "k")

	turn, err := chat.StartTurn(ctx, TurnInput{
		UserID: "u1",
		File: &Upload{
			Filename:    "page.html",
			ContentType: "text/html",
			Data:        []byte("<h1>Hello</h1>"),
		},
	})
	require.NoError(t, err)
	require.NoError(t, turn.Relay(ctx, &recorder{}))

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Prompt.Attachment)
	assert.Equal(t, "text/plain", reqs[0].Prompt.Attachment.MIMEType)
	assert.Contains(t, string(reqs[0].Prompt.Attachment.Data), "# Hello")

	detail, err := convs.Get(ctx, "u1", turn.ConversationID())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, detail.Title)
	require.Len(t, detail.Messages, 2)
	require.NotNil(t, detail.Messages[0].FileID)
}
