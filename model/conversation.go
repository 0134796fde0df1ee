package model

import "time"

const (
	DefaultTitle  = "New Chat"
	EmptyTitle    = "New Conversation"
	titleMaxRunes = 30
)

type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_user_id_created_at" bson:"user_id" json:"-"`
	Title     string    `gorm:"type:varchar(255);not null" bson:"title" json:"title"`
	CreatedAt time.Time `gorm:"index:idx_user_id_created_at" bson:"created_at" json:"createdAt"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" bson:"-" json:"-"`
}

// TitleFor derives a conversation title from the first user message.
func TitleFor(input string) string {
	runes := []rune(input)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	if len(runes) == 0 {
		return DefaultTitle
	}
	return string(runes)
}
