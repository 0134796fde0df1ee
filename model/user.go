package model

import "time"

// User is a registered account. Password holds the bcrypt hash and is never serialized.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" bson:"_id" json:"id"`
	Email     string    `gorm:"type:varchar(255);not null;unique" bson:"email" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" bson:"password" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" bson:"created_at" json:"createdAt"`
}
