package model

import "time"

// File is the metadata of an attachment sent with a user message. The bytes
// go to the model gateway and are not kept.
type File struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index" bson:"user_id" json:"-"`
	Filename    string    `gorm:"type:varchar(255);not null" bson:"filename" json:"filename"`
	ContentType string    `gorm:"type:varchar(255);not null" bson:"content_type" json:"contentType"`
	Size        int64     `bson:"size" json:"size"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}
