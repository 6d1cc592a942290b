package repository

import (
	"time"

	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type ChatMessageRepository interface {
	Create(message *models.ChatMessage) error
	FindByRoomID(roomID uint) ([]models.ChatMessage, error)
	// ExistsRecent 檢查時間窗內是否已有相同 (內容, 房間, 用戶) 的訊息，
	// 用來過濾重送造成的重複投遞
	ExistsRecent(roomID, userID uint, message string, window time.Duration) (bool, error)
}

type chatMessageRepository struct {
	db *storage.PostgresDB
}

func NewChatMessageRepository(db *storage.PostgresDB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

func (r *chatMessageRepository) Create(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

func (r *chatMessageRepository) FindByRoomID(roomID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("room_id = ?", roomID).Order("created_at asc").Find(&messages).Error
	return messages, err
}

func (r *chatMessageRepository) ExistsRecent(roomID, userID uint, message string, window time.Duration) (bool, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).
		Where("room_id = ? AND user_id = ? AND message = ? AND created_at > ?",
			roomID, userID, message, time.Now().Add(-window)).
		Count(&count).Error
	return count > 0, err
}
