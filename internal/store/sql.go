package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/capitalize-ai/colloquy/internal/model"
)

// conversationRecord is the SQL row of a conversation. Messages are stored
// as a JSON column; the last message content is denormalized for listing.
type conversationRecord struct {
	ID          string          `gorm:"primaryKey;size:64"`
	Title       string          `gorm:"size:255"`
	Messages    []model.Message `gorm:"serializer:json"`
	LastMessage string
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;index"`
}

func (conversationRecord) TableName() string { return "conversations" }

type shareRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Type      string `gorm:"size:64"`
	Content   string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (shareRecord) TableName() string { return "shared_content" }

// SQLStore persists conversations through gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&conversationRecord{}, &shareRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func toRecord(c *model.Conversation) *conversationRecord {
	rec := &conversationRecord{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  c.Messages,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if rec.Messages == nil {
		rec.Messages = []model.Message{}
	}
	rec.LastMessage = c.Summary().LastMessage
	return rec
}

func (r *conversationRecord) toModel() *model.Conversation {
	return &model.Conversation{
		ID:        r.ID,
		Title:     r.Title,
		Messages:  r.Messages,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CreateConversation inserts a conversation row.
func (s *SQLStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	if err := s.db.WithContext(ctx).Create(toRecord(conv)).Error; err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation loads a conversation row.
func (s *SQLStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var rec conversationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return rec.toModel(), nil
}

// UpdateConversation overwrites every column of an existing row.
func (s *SQLStore) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	res := s.db.WithContext(ctx).
		Model(&conversationRecord{}).
		Where("id = ?", conv.ID).
		Select("*").
		Updates(toRecord(conv))
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation row.
func (s *SQLStore) DeleteConversation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&conversationRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversations reads summaries without loading message bodies.
func (s *SQLStore) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	var recs []conversationRecord
	err := s.db.WithContext(ctx).
		Select("id", "title", "last_message", "updated_at").
		Order("updated_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]model.ConversationSummary, 0, len(recs))
	for _, r := range recs {
		summaries = append(summaries, model.ConversationSummary{
			ID:          r.ID,
			Title:       r.Title,
			LastMessage: r.LastMessage,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return summaries, nil
}

// CreateShare inserts shared content.
func (s *SQLStore) CreateShare(ctx context.Context, share *model.Share) error {
	rec := shareRecord{
		ID:        share.ID,
		Type:      share.Type,
		Content:   string(share.Content),
		CreatedAt: share.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

// GetShare loads shared content.
func (s *SQLStore) GetShare(ctx context.Context, id string) (*model.Share, error) {
	var rec shareRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	return &model.Share{
		ID:        rec.ID,
		Type:      rec.Type,
		Content:   json.RawMessage(rec.Content),
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
