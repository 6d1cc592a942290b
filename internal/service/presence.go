package service

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// PresenceTracker 追蹤每個房間的出席狀態
//
// currentParticipants 只會從出席紀錄重新計算，絕不獨立加減，
// 避免計數與紀錄漂移。
type PresenceTracker struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	broadcaster  Broadcaster
	locks        *RoomLocker
	logger       zerolog.Logger
}

func NewPresenceTracker(
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	broadcaster Broadcaster,
	locks *RoomLocker,
	logger zerolog.Logger,
) *PresenceTracker {
	return &PresenceTracker{
		rooms:        rooms,
		participants: participants,
		broadcaster:  broadcaster,
		locks:        locks,
		logger:       logger,
	}
}

// Enter 登記用戶進入房間
//
// 已在場時為 no-op；離場後重新進入會重新啟用同一筆紀錄。
// 非辯論者首次進入時累計 totalVisits。
func (t *PresenceTracker) Enter(roomID uint, user *models.User) error {
	lock := t.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := t.rooms.FindByID(roomID)
	if err != nil {
		return err
	}

	firstVisit := false
	participant, err := t.participants.FindByUserAndRoom(user.ID, roomID)
	switch {
	case errors.Is(err, repository.ErrParticipantNotFound):
		firstVisit = true
		participant = &models.RoomParticipant{
			UserID:    user.ID,
			RoomID:    roomID,
			EnteredAt: time.Now(),
			Active:    true,
		}
		if err := t.participants.Create(participant); err != nil {
			return err
		}
	case err != nil:
		return err
	case participant.Active:
		// 已經在場
		return nil
	default:
		participant.Active = true
		participant.EnteredAt = time.Now()
		participant.ExitedAt = nil
		if err := t.participants.Update(participant); err != nil {
			return err
		}
	}

	if firstVisit && !room.HasDebater(user.ID) {
		room.TotalVisits++
	}

	return t.refreshCount(room)
}

// Leave 登記用戶離開房間，不在場時為 no-op
func (t *PresenceTracker) Leave(roomID uint, user *models.User) error {
	lock := t.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	participant, err := t.participants.FindByUserAndRoom(user.ID, roomID)
	if errors.Is(err, repository.ErrParticipantNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !participant.Active {
		return nil
	}

	now := time.Now()
	participant.Active = false
	participant.ExitedAt = &now
	if err := t.participants.Update(participant); err != nil {
		return err
	}

	room, err := t.rooms.FindByID(roomID)
	if err != nil {
		return err
	}
	return t.refreshCount(room)
}

// refreshCount 以活躍出席紀錄重算房間人數並廣播
func (t *PresenceTracker) refreshCount(room *models.Room) error {
	count, err := t.participants.CountActiveByRoom(room.ID)
	if err != nil {
		return err
	}

	room.CurrentParticipants = int(count)
	if err := t.rooms.Update(room); err != nil {
		return err
	}

	t.broadcaster.Publish(ParticipantsTopic(room.ID), map[string]interface{}{
		"room_id":              room.ID,
		"current_participants": room.CurrentParticipants,
	})
	return nil
}
