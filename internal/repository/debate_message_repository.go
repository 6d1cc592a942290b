package repository

import (
	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type DebateMessageRepository interface {
	Create(message *models.DebateMessage) error
	Update(message *models.DebateMessage) error
	FindByRoomID(roomID uint) ([]models.DebateMessage, error)
}

type debateMessageRepository struct {
	db *storage.PostgresDB
}

func NewDebateMessageRepository(db *storage.PostgresDB) DebateMessageRepository {
	return &debateMessageRepository{db: db}
}

func (r *debateMessageRepository) Create(message *models.DebateMessage) error {
	return r.db.Create(message).Error
}

func (r *debateMessageRepository) Update(message *models.DebateMessage) error {
	return r.db.Save(message).Error
}

func (r *debateMessageRepository) FindByRoomID(roomID uint) ([]models.DebateMessage, error) {
	var messages []models.DebateMessage
	err := r.db.Where("room_id = ?", roomID).Order("created_at asc").Find(&messages).Error
	return messages, err
}
