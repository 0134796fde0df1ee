package store

import (
	"context"
	stderrors "errors"
	"time"

	"capstone/model"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	filesCollection         = "files"

	// orphanFileGrace keeps attachments of turns still being written out of the sweep.
	orphanFileGrace = time.Hour
)

// Mongo is the document store backend.
type Mongo struct {
	db            *mongo.Database
	users         *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
	files         *mongo.Collection
}

var _ Store = (*Mongo)(nil)

// NewMongo wraps db and makes sure the indexes the queries rely on exist.
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	s := &Mongo{
		db:            db,
		users:         db.Collection(usersCollection),
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
		files:         db.Collection(filesCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return errors.Wrap(err, "failed to index users")
	}
	if _, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return errors.Wrap(err, "failed to index conversations")
	}
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return errors.Wrap(err, "failed to index messages")
	}
	return nil
}

func (s *Mongo) Close() error {
	return s.db.Client().Disconnect(context.Background())
}

func (s *Mongo) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return errors.Wrap(err, "failed to create conversation")
	}
	return nil
}

func (s *Mongo) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&conv)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "database query failed")
	}
	return &conv, nil
}

func (s *Mongo) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	cursor, err := s.conversations.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	convs := []model.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, errors.Wrap(err, "failed to decode conversations")
	}
	return convs, nil
}

func (s *Mongo) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"title": title}})
	if err != nil {
		return errors.Wrap(err, "failed to update conversation title")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation first, then its messages and
// attachments. A failure after the first step leaves orphans for DeleteOrphans.
func (s *Mongo) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	fileIDs, err := s.messages.Distinct(ctx, "file_id", bson.M{"conversation_id": id, "file_id": bson.M{"$ne": nil}})
	if err != nil {
		return errors.Wrap(err, "failed to list attachments")
	}
	if len(fileIDs) > 0 {
		if _, err := s.files.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": fileIDs}}); err != nil {
			return errors.Wrap(err, "failed to delete attachments")
		}
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": id}); err != nil {
		return errors.Wrap(err, "failed to delete messages")
	}
	return nil
}

func (s *Mongo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	cursor, err := s.messages.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	msgs := []model.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "failed to decode messages")
	}
	return msgs, nil
}

// SaveTurn writes the messages before the attachment record, so a stored
// file is always referenced by the time DeleteOrphans can see it. If the
// attachment write fails the messages are removed again.
func (s *Mongo) SaveTurn(ctx context.Context, turn Turn) error {
	docs := []interface{}{turn.UserMessage, turn.ModelMessage}
	if _, err := s.messages.InsertMany(ctx, docs); err != nil {
		return errors.Wrap(err, "failed to save messages")
	}
	if turn.File == nil {
		return nil
	}
	if _, err := s.files.InsertOne(ctx, turn.File); err != nil {
		ids := bson.A{turn.UserMessage.ID, turn.ModelMessage.ID}
		if _, derr := s.messages.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": ids}}); derr != nil {
			logrus.Warnf("failed to undo messages of conversation %s: %s", turn.UserMessage.ConversationID, derr)
		}
		return errors.Wrap(err, "failed to save attachment")
	}
	return nil
}

func (s *Mongo) DeleteOrphans(ctx context.Context) (int64, error) {
	convIDs, err := s.messages.Distinct(ctx, "conversation_id", bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list message owners")
	}
	live, err := s.conversations.Distinct(ctx, "_id", bson.M{"_id": bson.M{"$in": nonNil(convIDs)}})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list conversations")
	}

	var removed int64
	res, err := s.messages.DeleteMany(ctx, bson.M{"conversation_id": bson.M{"$nin": nonNil(live)}})
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete orphan messages")
	}
	removed += res.DeletedCount

	referenced, err := s.messages.Distinct(ctx, "file_id", bson.M{"file_id": bson.M{"$ne": nil}})
	if err != nil {
		return removed, errors.Wrap(err, "failed to list referenced attachments")
	}
	res, err = s.files.DeleteMany(ctx, bson.M{
		"_id":        bson.M{"$nin": nonNil(referenced)},
		"created_at": bson.M{"$lt": time.Now().Add(-orphanFileGrace)},
	})
	if err != nil {
		return removed, errors.Wrap(err, "failed to delete orphan attachments")
	}
	removed += res.DeletedCount
	return removed, nil
}

// nonNil keeps $in/$nin operands encoded as arrays rather than null.
func nonNil(values []interface{}) []interface{} {
	if values == nil {
		return []interface{}{}
	}
	return values
}

func (s *Mongo) CreateUser(ctx context.Context, user *model.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "failed to create user")
	}
	return nil
}

func (s *Mongo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, bson.M{"email": email})
}

func (s *Mongo) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, bson.M{"_id": id})
}

func (s *Mongo) getUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "database query failed")
	}
	return &user, nil
}
