package store

import (
	"context"
	stderrors "errors"

	"capstone/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Gorm is the relational store (MySQL in production, SQLite locally).
type Gorm struct {
	db *gorm.DB
}

var _ Store = (*Gorm)(nil)

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Gorm) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if err := s.db.WithContext(ctx).Omit("Messages").Create(conv).Error; err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	return nil
}

func (s *Gorm) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "database query failed")
	}
	return &conv, nil
}

func (s *Gorm) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return convs, nil
}

func (s *Gorm) UpdateTitle(ctx context.Context, id, title string) error {
	result := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update conversation title")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) DeleteConversation(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Conversation{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return errors.Wrap(err, "database query failed")
		}
		if count == 0 {
			return ErrNotFound
		}

		fileIDs := tx.Model(&model.Message{}).
			Select("file_id").
			Where("conversation_id = ? AND file_id IS NOT NULL", id)
		if err := tx.Where("id IN (?)", fileIDs).Delete(&model.File{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete attachments")
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete messages")
		}
		if err := tx.Where("id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete conversation")
		}
		return nil
	})
}

func (s *Gorm) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return msgs, nil
}

func (s *Gorm) SaveTurn(ctx context.Context, turn Turn) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if turn.File != nil {
			if err := tx.Create(turn.File).Error; err != nil {
				return errors.Wrap(err, "failed to save attachment")
			}
		}
		msgs := []*model.Message{turn.UserMessage, turn.ModelMessage}
		if err := tx.Create(msgs).Error; err != nil {
			return errors.Wrap(err, "failed to save messages")
		}
		return nil
	})
}

func (s *Gorm) DeleteOrphans(ctx context.Context) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		live := tx.Model(&model.Conversation{}).Select("id")
		result := tx.Where("conversation_id NOT IN (?)", live).Delete(&model.Message{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to delete orphan messages")
		}
		removed += result.RowsAffected

		referenced := tx.Model(&model.Message{}).Select("file_id").Where("file_id IS NOT NULL")
		result = tx.Where("id NOT IN (?)", referenced).Delete(&model.File{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to delete orphan attachments")
		}
		removed += result.RowsAffected
		return nil
	})
	return removed, err
}

func (s *Gorm) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check user existence")
		}
		if count > 0 {
			return ErrDuplicate
		}
		if err := tx.Create(user).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return errors.Wrap(err, "failed to create user")
		}
		return nil
	})
}

func (s *Gorm) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *Gorm) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *Gorm) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "database query failed")
	}
	return &user, nil
}
