package repository

import (
	"gorm.io/gorm"

	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type RoomRepository interface {
	Create(room *models.Room) error
	FindByID(id uint) (*models.Room, error)
	FindWithMessages(id uint) (*models.Room, error)
	Update(room *models.Room) error
	Delete(id uint) error
	FindAll() ([]models.Room, error)
	FindHot(limit int) ([]models.Room, error)
	FindByDebater(userID uint) ([]models.Room, error)
	FindScheduledForDeletion() ([]models.Room, error)
}

type roomRepository struct {
	db *storage.PostgresDB
}

func NewRoomRepository(db *storage.PostgresDB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(room *models.Room) error {
	return r.db.Create(room).Error
}

func (r *roomRepository) FindByID(id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.Preload("Keywords").First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindWithMessages 連同辯論消息一起載入，給房間詳情頁使用
func (r *roomRepository) FindWithMessages(id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.Preload("Keywords").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) Update(room *models.Room) error {
	return r.db.Save(room).Error
}

func (r *roomRepository) Delete(id uint) error {
	return r.db.Delete(&models.Room{}, id).Error
}

// FindAll 查詢所有房間
func (r *roomRepository) FindAll() ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Preload("Keywords").Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

// FindHot 依目前參與人數排序取前幾名
func (r *roomRepository) FindHot(limit int) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Preload("Keywords").Order("current_participants DESC").Limit(limit).Find(&rooms).Error
	return rooms, err
}

// FindByDebater 查詢用戶以辯論者身分參與的房間
func (r *roomRepository) FindByDebater(userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Preload("Keywords").
		Where("debater_a_id = ? OR debater_b_id = ?", userID, userID).
		Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) FindScheduledForDeletion() ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.Where("scheduled_for_deletion = ?", true).Find(&rooms).Error
	return rooms, err
}
