package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;index:idx_conversation_id_created_at" bson:"conversation_id" json:"conversationId"`
	Role           Role      `gorm:"type:varchar(16);not null" bson:"role" json:"role"`
	Content        string    `gorm:"type:text" bson:"content" json:"content"`
	FileID         *string   `gorm:"type:varchar(36)" bson:"file_id,omitempty" json:"fileId,omitempty"`
	CreatedAt      time.Time `gorm:"index:idx_conversation_id_created_at" bson:"created_at" json:"createdAt"`
}
