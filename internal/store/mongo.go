package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/capitalize-ai/colloquy/internal/model"
)

const (
	conversationsCollection = "conversations"
	sharesCollection        = "shared-content"
)

// MongoStore persists documents in MongoDB.
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	shares        *mongo.Collection
}

// shareDocument keeps share content as a JSON string so any payload shape
// round-trips unchanged.
type shareDocument struct {
	ID        string    `bson:"id"`
	Type      string    `bson:"type"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
}

// summaryDocument is the projection used for listing.
type summaryDocument struct {
	ID        string          `bson:"id"`
	Title     string          `bson:"title"`
	Messages  []model.Message `bson:"messages"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

// NewMongoStore connects to uri and prepares the collections of database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		conversations: db.Collection(conversationsCollection),
		shares:        db.Collection(sharesCollection),
	}

	for _, coll := range []*mongo.Collection{s.conversations, s.shares} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create index on %s: %w", coll.Name(), err)
		}
	}

	return s, nil
}

// CreateConversation inserts a conversation document.
func (s *MongoStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation finds a conversation by its id field.
func (s *MongoStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

// UpdateConversation replaces the stored document.
func (s *MongoStore) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	res, err := s.conversations.ReplaceOne(ctx, bson.M{"id": conv.ID}, conv)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation document.
func (s *MongoStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.conversations.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversations projects each document down to its last message.
func (s *MongoStore) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetProjection(bson.M{
			"id":        1,
			"title":     1,
			"updatedAt": 1,
			"messages":  bson.M{"$slice": -1},
		})

	cur, err := s.conversations.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var docs []summaryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	summaries := make([]model.ConversationSummary, 0, len(docs))
	for _, d := range docs {
		conv := model.Conversation{ID: d.ID, Title: d.Title, Messages: d.Messages, UpdatedAt: d.UpdatedAt}
		summaries = append(summaries, conv.Summary())
	}
	return summaries, nil
}

// CreateShare inserts shared content.
func (s *MongoStore) CreateShare(ctx context.Context, share *model.Share) error {
	doc := shareDocument{
		ID:        share.ID,
		Type:      share.Type,
		Content:   string(share.Content),
		CreatedAt: share.CreatedAt,
	}
	if _, err := s.shares.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

// GetShare finds shared content by id.
func (s *MongoStore) GetShare(ctx context.Context, id string) (*model.Share, error) {
	var doc shareDocument
	err := s.shares.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find share: %w", err)
	}
	return &model.Share{
		ID:        doc.ID,
		Type:      doc.Type,
		Content:   json.RawMessage(doc.Content),
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
