package client

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"capstone/model"

	"github.com/google/uuid"
)

// Navigator moves the user's view, e.g. to "/chat/<id>".
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

type SendInput struct {
	Message string
	APIKey  string
	File    *FileUpload
}

// Store combines the API with the cache and applies server results to it.
type Store struct {
	api   *API
	cache *Cache
	nav   Navigator
}

func NewStore(api *API, cache *Cache, nav Navigator) *Store {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Store{api: api, cache: cache, nav: nav}
}

func (s *Store) Cache() *Cache {
	return s.cache
}

func localID() string {
	return "local-" + uuid.NewString()
}

// Refresh merges the server's conversation list into the cache. On failure
// the cache is emptied.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.api.ListConversations(ctx)
	if err != nil {
		s.cache.Clear()
		return err
	}
	s.cache.MergeList(list)
	return nil
}

// Open loads the messages of a conversation unless they are cached already.
func (s *Store) Open(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if conv, ok := s.cache.Get(id); ok && conv.Messages != nil {
		return nil
	}
	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	s.cache.Replace(*conv)
	return nil
}

// Delete removes the conversation from the cache right away and restores it
// if the server refuses. Deleting the current conversation navigates to /chat.
func (s *Store) Delete(ctx context.Context, id, current string) error {
	undo := Begin(s.cache)
	s.cache.Remove(id)

	if err := s.api.DeleteConversation(ctx, id); err != nil {
		undo.Rollback()
		return err
	}
	if id == current {
		s.nav.Navigate("/chat")
	}
	return nil
}

// Send posts a message to the current conversation, or starts a new one
// when current is empty, and streams the reply into the cache. It returns
// the id of the conversation the reply belongs to.
func (s *Store) Send(ctx context.Context, current string, in SendInput) (string, error) {
	if in.Message == "" && in.File == nil {
		return current, nil
	}

	userMsg := model.Message{
		ID:             localID(),
		ConversationID: current,
		Role:           model.RoleUser,
		Content:        in.Message,
		CreatedAt:      time.Now(),
	}
	if current != "" {
		s.cache.AppendMessage(current, userMsg)
	}

	stream, err := s.api.Chat(ctx, ChatRequest{
		Message:        in.Message,
		ConversationID: current,
		APIKey:         in.APIKey,
		File:           in.File,
	})
	if err != nil {
		return current, err
	}
	defer stream.Body.Close()

	convID := current
	if stream.ConversationID != "" && current == "" {
		convID = stream.ConversationID
		userMsg.ConversationID = convID
		s.cache.Insert(Conversation{
			ID:        convID,
			Title:     model.TitleFor(in.Message),
			CreatedAt: userMsg.CreatedAt,
			Messages:  []model.Message{userMsg},
		})
		s.nav.Navigate("/chat/" + convID)
	}

	reply := model.Message{
		ID:             localID(),
		ConversationID: convID,
		Role:           model.RoleModel,
		CreatedAt:      time.Now(),
	}
	s.cache.AppendMessage(convID, reply)

	var raw []byte
	buf := make([]byte, 4096)
	for {
		n, err := stream.Body.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
			reply.Content = string(raw[:completeRunes(raw)])
			s.cache.AppendMessage(convID, reply)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return convID, err
		}
	}
	if text := string(raw); text != reply.Content {
		reply.Content = text
		s.cache.AppendMessage(convID, reply)
	}
	return convID, nil
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}
