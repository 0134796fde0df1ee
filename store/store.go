// Package store persists users, conversations, messages and attachment
// records. Every conversation query is scoped by the owning user.
package store

import (
	"context"
	"errors"

	"capstone/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Turn is the unit written once a streamed reply completes: the user
// message (with its optional attachment record) and the model message.
type Turn struct {
	File         *model.File
	UserMessage  *model.Message
	ModelMessage *model.Message
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	// GetConversation returns ErrNotFound when the conversation is absent or owned by someone else.
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	// ListConversations returns the user's conversations, newest first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	UpdateTitle(ctx context.Context, id, title string) error
	// DeleteConversation removes the conversation and everything under it.
	DeleteConversation(ctx context.Context, userID, id string) error
}

type MessageStore interface {
	// ListMessages returns the conversation's messages in ascending creation order.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	// SaveTurn writes both messages of a turn together.
	SaveTurn(ctx context.Context, turn Turn) error
	// DeleteOrphans removes messages and files that no longer belong to a conversation.
	DeleteOrphans(ctx context.Context) (int64, error)
}

type UserStore interface {
	// CreateUser returns ErrDuplicate when the e-mail is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type Store interface {
	ConversationStore
	MessageStore
	UserStore
	Close() error
}
