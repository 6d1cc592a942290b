package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// RoomService 負責房間的生命週期：建立、加入、離開、刪除與刪除排程
type RoomService struct {
	rooms       repository.RoomRepository
	messages    repository.DebateMessageRepository
	chats       repository.ChatMessageRepository
	broadcaster Broadcaster
	timers      *TurnTimerManager
	negotiation *EndNegotiationTracker
	locks       *RoomLocker
	grace       time.Duration // 強制結束後到刪除房間的緩衝時間
	sweep       time.Duration // 刪除排程的掃描間隔
	logger      zerolog.Logger
}

func NewRoomService(
	rooms repository.RoomRepository,
	messages repository.DebateMessageRepository,
	chats repository.ChatMessageRepository,
	broadcaster Broadcaster,
	timers *TurnTimerManager,
	negotiation *EndNegotiationTracker,
	locks *RoomLocker,
	grace, sweep time.Duration,
	logger zerolog.Logger,
) *RoomService {
	return &RoomService{
		rooms:       rooms,
		messages:    messages,
		chats:       chats,
		broadcaster: broadcaster,
		timers:      timers,
		negotiation: negotiation,
		locks:       locks,
		grace:       grace,
		sweep:       sweep,
		logger:      logger,
	}
}

// CreateRoom 建立房間，創建者固定為辯論者A
func (s *RoomService) CreateRoom(title, topic string, keywords []string, creator *models.User) (*models.Room, error) {
	room := &models.Room{
		Title:      title,
		Topic:      topic,
		Active:     true,
		DebaterAID: creator.ID,
	}
	for _, name := range keywords {
		room.Keywords = append(room.Keywords, models.Keyword{Name: name})
	}

	if err := s.rooms.Create(room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) GetRoom(roomID uint) (*models.Room, error) {
	return s.rooms.FindByID(roomID)
}

// GetRoomWithMessages 取得房間與完整的辯論消息歷史
func (s *RoomService) GetRoomWithMessages(roomID uint) (*models.Room, error) {
	return s.rooms.FindWithMessages(roomID)
}

func (s *RoomService) ListRooms() ([]models.Room, error) {
	return s.rooms.FindAll()
}

// HotRooms 依目前參與人數取前 8 個房間
func (s *RoomService) HotRooms() ([]models.Room, error) {
	return s.rooms.FindHot(8)
}

// MyRooms 取得用戶以辯論者身分參與的房間
func (s *RoomService) MyRooms(userID uint) ([]models.Room, error) {
	return s.rooms.FindByDebater(userID)
}

// GetChatMessages 取得房間的觀眾聊天歷史
func (s *RoomService) GetChatMessages(roomID uint) ([]models.ChatMessage, error) {
	return s.chats.FindByRoomID(roomID)
}

// JoinAsDebaterB 以辯論者B的身分加入房間
func (s *RoomService) JoinAsDebaterB(roomID uint, user *models.User) (*models.Room, error) {
	lock := s.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return nil, err
	}

	if !room.Active {
		return nil, ErrRoomClosed
	}
	if room.DebaterAID == user.ID {
		// 創建者本來就在房間裡
		return room, nil
	}
	if room.DebaterBID == user.ID {
		return room, nil
	}
	if room.DebaterBID != 0 {
		return nil, ErrRoomFull
	}

	room.DebaterBID = user.ID
	if err := s.rooms.Update(room); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(RoomTopic(roomID), models.NewSystemMessage(
		models.TypeSystem, fmt.Sprintf("%s 以辯論者B的身分加入", user.Username), roomID))
	s.broadcastStatus(room)
	return room, nil
}

// IsHost 判斷用戶是否為房間主持人（辯論者A）
func (s *RoomService) IsHost(roomID, userID uint) (bool, error) {
	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return false, err
	}
	return room.DebaterAID == userID, nil
}

// LeaveRoom 處理辯論者B或觀眾離開房間
//
// 辯論中B離開會強制結束辯論並排定刪除；觀眾離開只影響出席統計
// （由 PresenceTracker 處理），不會改動辯論狀態。主持人離開必須
// 走 DeleteRoom。
func (s *RoomService) LeaveRoom(roomID uint, user *models.User) error {
	lock := s.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return err
	}

	if room.DebaterAID == user.ID {
		return ErrHostCannotLeave
	}
	if room.DebaterBID != user.ID {
		// 觀眾離開與辯論狀態無關
		return nil
	}

	wasStarted := room.Started

	room.DebaterBID = 0
	room.DebaterBReady = false

	if wasStarted {
		room.Started = false
		room.DebaterAReady = false
		room.ScheduledForDeletion = true
		room.DeletionTime = time.Now().Add(s.grace)

		s.timers.Cancel(roomID)
		s.negotiation.Clear(roomID)
	}

	if err := s.rooms.Update(room); err != nil {
		return err
	}

	if wasStarted {
		notice := fmt.Sprintf("辯論者B %s 已離開，辯論結束，房間將於 %d 分鐘後刪除",
			user.Username, int(s.grace.Minutes()))

		endMessage := &models.DebateMessage{
			RoomID:  roomID,
			Type:    models.TypeEnd,
			Content: notice,
			Sender:  "System",
		}
		if err := s.messages.Create(endMessage); err != nil {
			s.logger.Warn().Err(err).Uint("room_id", roomID).Msg("persist leave notice failed")
		}

		s.broadcaster.Publish(RoomTopic(roomID), models.NewSystemMessage(models.TypeSystem, notice, roomID))
		s.broadcaster.Publish(RoomTopic(roomID), models.NewSystemMessage(models.TypeInfo, "辯論已結束", roomID))
		s.broadcastStatus(room)
	}

	return nil
}

// DeleteRoom 主持人刪除房間，離開以外的唯一拆除路徑
func (s *RoomService) DeleteRoom(roomID, userID uint) error {
	lock := s.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return err
	}
	if room.DebaterAID != userID {
		return ErrNotHost
	}

	s.timers.Cancel(roomID)
	s.negotiation.Clear(roomID)

	if err := s.rooms.Delete(roomID); err != nil {
		return err
	}

	s.broadcaster.Publish(RoomTopic(roomID), models.NewSystemMessage(
		models.TypeSystem, "主持人已離開，房間已刪除", roomID))

	s.locks.Remove(roomID)
	return nil
}

// RunDeletionSweep 週期性掃描排定刪除的房間，刪除已過緩衝期者
//
// 會一直執行到 ctx 結束，適合在 main 以 goroutine 啟動。
func (s *RoomService) RunDeletionSweep(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce 執行一輪刪除掃描
func (s *RoomService) SweepOnce() {
	rooms, err := s.rooms.FindScheduledForDeletion()
	if err != nil {
		s.logger.Error().Err(err).Msg("deletion sweep: list failed")
		return
	}

	now := time.Now()
	for i := range rooms {
		room := &rooms[i]
		if room.DeletionTime.After(now) {
			continue
		}

		lock := s.locks.Get(room.ID)
		lock.Lock()

		s.timers.Cancel(room.ID)
		s.negotiation.Clear(room.ID)
		if err := s.rooms.Delete(room.ID); err != nil {
			s.logger.Error().Err(err).Uint("room_id", room.ID).Msg("deletion sweep: delete failed")
			lock.Unlock()
			continue
		}

		lock.Unlock()
		s.locks.Remove(room.ID)
		s.logger.Info().Uint("room_id", room.ID).Msg("room deleted by sweep")
	}
}

func (s *RoomService) broadcastStatus(room *models.Room) {
	s.broadcaster.Publish(StatusTopic(room.ID), map[string]interface{}{
		"room_id":         room.ID,
		"title":           room.Title,
		"topic":           room.Topic,
		"active":          room.Active,
		"started":         room.Started,
		"debater_a_id":    room.DebaterAID,
		"debater_b_id":    room.DebaterBID,
		"debater_a_ready": room.DebaterAReady,
		"debater_b_ready": room.DebaterBReady,
		"ended":           !room.Started && !room.Active,
	})
}
