package repository

import (
	"errors"

	"gorm.io/gorm"

	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type ParticipantRepository interface {
	Create(participant *models.RoomParticipant) error
	Update(participant *models.RoomParticipant) error
	FindByUserAndRoom(userID, roomID uint) (*models.RoomParticipant, error)
	CountActiveByRoom(roomID uint) (int64, error)
}

// ErrParticipantNotFound 查無出席紀錄
var ErrParticipantNotFound = errors.New("participant not found")

type participantRepository struct {
	db *storage.PostgresDB
}

func NewParticipantRepository(db *storage.PostgresDB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(participant *models.RoomParticipant) error {
	return r.db.Create(participant).Error
}

func (r *participantRepository) Update(participant *models.RoomParticipant) error {
	return r.db.Save(participant).Error
}

func (r *participantRepository) FindByUserAndRoom(userID, roomID uint) (*models.RoomParticipant, error) {
	var participant models.RoomParticipant
	err := r.db.Where("user_id = ? AND room_id = ?", userID, roomID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepository) CountActiveByRoom(roomID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND active = ?", roomID, true).
		Count(&count).Error
	return count, err
}
