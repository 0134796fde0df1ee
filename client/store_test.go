package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"capstone/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordedNav) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordedNav) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func newStore(t *testing.T, h http.Handler) (*Store, *recordedNav) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	api := NewAPI(srv.URL)
	api.SetToken("token")
	nav := &recordedNav{}
	return NewStore(api, NewCache(), nav), nav
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func replyText(conv Conversation) string {
	for _, m := range conv.Messages {
		if m.Role == model.RoleModel {
			return m.Content
		}
	}
	return "<none>"
}

func TestSendNewConversationStreamsIntoPlaceholder(t *testing.T) {
	sawHel := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hello", r.FormValue("message"))
		assert.Empty(t, r.FormValue("conversationId"))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("x-conversation-id", "c1")
		_, _ = w.Write([]byte("Hel"))
		w.(http.Flusher).Flush()
		select {
		case <-sawHel:
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte("lo"))
	})
	s, nav := newStore(t, mux)

	var mu sync.Mutex
	var replies []string
	s.Cache().Subscribe(func(list []Conversation) {
		for _, conv := range list {
			if conv.ID != "c1" {
				continue
			}
			text := replyText(conv)
			if text == "<none>" {
				continue
			}
			mu.Lock()
			if len(replies) == 0 || replies[len(replies)-1] != text {
				replies = append(replies, text)
			}
			mu.Unlock()
			if text == "Hel" {
				select {
				case sawHel <- struct{}{}:
				default:
				}
			}
		}
	})

	convID, err := s.Send(context.Background(), "", SendInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "c1", convID)
	assert.Equal(t, []string{"/chat/c1"}, nav.all())

	mu.Lock()
	assert.Equal(t, []string{"", "Hel", "Hello"}, replies)
	mu.Unlock()

	conv, ok := s.Cache().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "hello", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "hello", conv.Messages[0].Content)
	assert.Contains(t, conv.Messages[1].ID, "local-")
	assert.Equal(t, "Hello", conv.Messages[1].Content)
}

func TestSendToExistingConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.FormValue("conversationId"))
		_, _ = w.Write([]byte("ok"))
	})
	s, nav := newStore(t, mux)
	s.Cache().Replace(Conversation{ID: "c1", CreatedAt: t0, Messages: []model.Message{}})

	convID, err := s.Send(context.Background(), "c1", SendInput{Message: "again"})
	require.NoError(t, err)
	assert.Equal(t, "c1", convID)
	assert.Empty(t, nav.all())

	conv, _ := s.Cache().Get("c1")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "again", conv.Messages[0].Content)
	assert.Equal(t, "ok", conv.Messages[1].Content)
}

func TestSendError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Your API key is invalid or lacks permission."})
	})
	s, _ := newStore(t, mux)
	s.Cache().Replace(Conversation{ID: "c1", CreatedAt: t0, Messages: []model.Message{}})

	_, err := s.Send(context.Background(), "c1", SendInput{Message: "hi", APIKey: "bad"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Your API key is invalid or lacks permission.", apiErr.Message)

	// the optimistic user message stays, no placeholder is added
	conv, _ := s.Cache().Get("c1")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
}

func TestDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted successfully"})
	})
	mux.HandleFunc("/conversations/fail", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	})
	s, nav := newStore(t, mux)
	s.Cache().Replace(Conversation{ID: "ok", CreatedAt: t0})
	s.Cache().Replace(Conversation{ID: "fail", CreatedAt: t0, Messages: []model.Message{{ID: "m"}}})

	err := s.Delete(context.Background(), "fail", "fail")
	require.Error(t, err)
	conv, ok := s.Cache().Get("fail")
	require.True(t, ok)
	assert.Len(t, conv.Messages, 1)
	assert.Empty(t, nav.all())

	require.NoError(t, s.Delete(context.Background(), "ok", "other"))
	_, ok = s.Cache().Get("ok")
	assert.False(t, ok)
	assert.Empty(t, nav.all())

	s.Cache().Replace(Conversation{ID: "ok", CreatedAt: t0})
	require.NoError(t, s.Delete(context.Background(), "ok", "ok"))
	assert.Equal(t, []string{"/chat"}, nav.all())
}

func TestDeleteIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) > 1 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	})
	s, _ := newStore(t, mux)
	s.Cache().Replace(Conversation{ID: "c1", CreatedAt: t0})

	err := s.Delete(context.Background(), "c1", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.EqualValues(t, 1, hits.Load())
}

func TestRefreshAndOpen(t *testing.T) {
	var fail atomic.Bool
	var detailHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, []Conversation{
			{ID: "a", Title: "A", CreatedAt: t0},
			{ID: "b", Title: "B", CreatedAt: t0.Add(time.Minute)},
		})
	})
	mux.HandleFunc("/conversations/a", func(w http.ResponseWriter, r *http.Request) {
		detailHits.Add(1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "a", "title": "A", "createdAt": t0,
			"messages": []model.Message{{ID: "m1", ConversationID: "a", Role: model.RoleUser, Content: "q"}},
		})
	})
	mux.HandleFunc("/conversations/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Conversation not found"})
	})
	s, _ := newStore(t, mux)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	list := s.Cache().Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Nil(t, list[1].Messages)

	require.NoError(t, s.Open(ctx, "a"))
	require.NoError(t, s.Open(ctx, "a"))
	assert.Equal(t, int32(1), detailHits.Load())
	a, _ := s.Cache().Get("a")
	assert.Len(t, a.Messages, 1)

	// a refresh does not drop loaded messages
	require.NoError(t, s.Refresh(ctx))
	a, _ = s.Cache().Get("a")
	assert.Len(t, a.Messages, 1)

	before := s.Cache().Conversations()
	assert.Error(t, s.Open(ctx, "missing"))
	assert.Equal(t, before, s.Cache().Conversations())

	fail.Store(true)
	assert.Error(t, s.Refresh(ctx))
	assert.Empty(t, s.Cache().Conversations())
}
