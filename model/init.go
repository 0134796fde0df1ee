package model

import "gorm.io/gorm"

// InstallDB creates or migrates every table the gorm store uses.
func InstallDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Conversation{},
		&File{},
		&Message{},
	)
}
