package services

import (
	"context"
	"fmt"
	"strings"

	"classroom-poll-backend/internal/models"

	"gorm.io/gorm"
)

const DefaultChatHistoryLimit = 50

// ChatService keeps the side chat. Only the newest limit messages are kept,
// and limit never exceeds DefaultChatHistoryLimit.
type ChatService struct {
	db    *gorm.DB
	now   Clock
	limit int
}

func NewChatService(db *gorm.DB, clock Clock, limit int) *ChatService {
	if limit <= 0 || limit > DefaultChatHistoryLimit {
		limit = DefaultChatHistoryLimit
	}
	return &ChatService{db: db, now: orNow(clock), limit: limit}
}

func (s *ChatService) Post(ctx context.Context, user, text string) (*models.ChatMessage, error) {
	user = strings.TrimSpace(user)
	text = strings.TrimSpace(text)
	if user == "" {
		return nil, invalid("user", "must not be empty")
	}
	if text == "" {
		return nil, invalid("text", "must not be empty")
	}
	if len(text) > 2000 {
		return nil, invalid("text", "must be at most 2000 characters")
	}

	msg := models.ChatMessage{User: user, Text: text, Timestamp: s.now()}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	if _, err := s.Prune(ctx); err != nil {
		return nil, err
	}
	return &msg, nil
}

// History returns the retained messages, oldest first.
func (s *ChatService) History(ctx context.Context) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(s.limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Prune deletes everything older than the newest limit messages.
func (s *ChatService) Prune(ctx context.Context) (int64, error) {
	db := s.db.WithContext(ctx)
	newest := db.Model(&models.ChatMessage{}).Select("id").Order("id DESC").Limit(s.limit)
	res := db.Where("id NOT IN (?)", newest).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune chat: %w", res.Error)
	}
	return res.RowsAffected, nil
}
