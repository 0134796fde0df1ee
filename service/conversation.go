package service

import (
	"context"
	"errors"
	"time"

	"capstone/model"
	"capstone/store"

	"github.com/google/uuid"
)

// ConversationDetail is a conversation together with its ordered messages.
type ConversationDetail struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"createdAt"`
	Messages  []model.Message `json:"messages"`
}

type ConversationService struct {
	store store.Store
}

func NewConversationService(s store.Store) *ConversationService {
	return &ConversationService{store: s}
}

// List returns the caller's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, newError(Unauthorized, "Unauthorized", nil)
	}
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, newError(Internal, "Internal Server Error", err)
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, nil
}

// Create makes an empty conversation titled model.EmptyTitle.
func (s *ConversationService) Create(ctx context.Context, userID string) (*model.Conversation, error) {
	if userID == "" {
		return nil, newError(Unauthorized, "Unauthorized", nil)
	}
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     model.EmptyTitle,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, newError(Internal, "Internal Server Error", err)
	}
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	conv, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, newError(Internal, "Internal Server Error", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &ConversationDetail{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		Messages:  msgs,
	}, nil
}

// Delete removes the conversation with its messages and attachment records.
func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return newError(Unauthorized, "Unauthorized", nil)
	}
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(NotFound, "Conversation not found", err)
		}
		return newError(Internal, "Internal Server Error", err)
	}
	return nil
}

func (s *ConversationService) owned(ctx context.Context, userID, id string) (*model.Conversation, error) {
	if userID == "" {
		return nil, newError(Unauthorized, "Unauthorized", nil)
	}
	conv, err := s.store.GetConversation(ctx, userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(NotFound, "Conversation not found", err)
		}
		return nil, newError(Internal, "Internal Server Error", err)
	}
	return conv, nil
}
