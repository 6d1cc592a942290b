package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// DebateEngine 是辯論房間的協議狀態機
//
// 它是唯一允許改動房間回合、準備與進行狀態的元件。所有入站協議
// 消息經由 HandleMessage 進入，逾時回呼經由 TurnTimerManager 進入，
// 兩者都在該房間的互斥鎖之下執行完整的「驗證、改狀態、入庫、廣播、
// 重排計時器」流程。
type DebateEngine struct {
	rooms       repository.RoomRepository
	users       repository.UserRepository
	messages    repository.DebateMessageRepository
	chats       repository.ChatMessageRepository
	broadcaster Broadcaster
	summarizer  Summarizer
	timers      *TurnTimerManager
	negotiation *EndNegotiationTracker
	locks       *RoomLocker
	dupWindow   time.Duration
	logger      zerolog.Logger
}

func NewDebateEngine(
	rooms repository.RoomRepository,
	users repository.UserRepository,
	messages repository.DebateMessageRepository,
	chats repository.ChatMessageRepository,
	broadcaster Broadcaster,
	summarizer Summarizer,
	timers *TurnTimerManager,
	negotiation *EndNegotiationTracker,
	locks *RoomLocker,
	dupWindow time.Duration,
	logger zerolog.Logger,
) *DebateEngine {
	e := &DebateEngine{
		rooms:       rooms,
		users:       users,
		messages:    messages,
		chats:       chats,
		broadcaster: broadcaster,
		summarizer:  summarizer,
		timers:      timers,
		negotiation: negotiation,
		locks:       locks,
		dupWindow:   dupWindow,
		logger:      logger,
	}
	timers.SetHandler(e.onTurnTimeout)
	return e
}

// HandleMessage 處理辯論頻道的入站消息
//
// 驗證失敗會發布到房間的錯誤頻道並回傳 nil（房間狀態不變）；
// 查無用戶或房間、以及基礎設施失敗才會回傳 error 給傳輸層。
func (e *DebateEngine) HandleMessage(msg *models.Message) error {
	sender, err := e.users.FindByUsername(msg.Sender)
	if err != nil {
		return fmt.Errorf("找不到用戶 %s: %w", msg.Sender, err)
	}

	lock := e.locks.Get(msg.RoomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := e.rooms.FindByID(msg.RoomID)
	if err != nil {
		return fmt.Errorf("找不到房間 %d: %w", msg.RoomID, err)
	}

	switch msg.Type {
	case models.TypeChat, models.TypeDebate:
		return e.handleChat(sender, room, msg)
	case models.TypeReady:
		return e.handleReady(sender, room)
	case models.TypeForfeit, models.TypeExit, models.TypeAck:
		return e.endDebate(msg, room)
	case models.TypeEndRequest:
		return e.handleEndRequest(sender, room)
	case models.TypeEndAccept:
		return e.handleEndAccept(sender, room)
	case models.TypeEndReject:
		return e.handleEndReject(sender, room)
	default:
		e.logger.Warn().Str("type", msg.Type).Uint("room_id", msg.RoomID).
			Msg("unknown message type dropped")
		return nil
	}
}

// handleChat 處理辯論發言：檢查回合、入庫、廣播、摘要、翻轉回合、重排計時器
func (e *DebateEngine) handleChat(sender *models.User, room *models.Room, msg *models.Message) error {
	if !room.Started {
		e.broadcastError(room.ID, ErrCodeNotStarted, "辯論尚未開始")
		return nil
	}
	if sender.ID != room.CurrentTurnUserID {
		e.broadcastError(room.ID, ErrCodeWrongTurn, "現在不是您的發言回合")
		return nil
	}

	// 本回合的計時器作廢，稍後翻轉回合時再排新的
	e.timers.Cancel(room.ID)

	debateMessage := &models.DebateMessage{
		RoomID:  room.ID,
		UserID:  sender.ID,
		Type:    msg.Type,
		Content: msg.Content,
		Sender:  msg.Sender,
	}
	if err := e.messages.Create(debateMessage); err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist debate message failed")
		return err
	}

	e.broadcaster.Publish(RoomTopic(room.ID), msg)

	// 摘要是附加功能，失敗不影響回合流程
	if summary, err := e.summarizer.Summarize(msg.Content); err != nil {
		e.logger.Warn().Err(err).Uint("room_id", room.ID).Msg("summarize failed")
	} else {
		debateMessage.Summary = summary
		if err := e.messages.Update(debateMessage); err != nil {
			e.logger.Warn().Err(err).Uint("room_id", room.ID).Msg("persist summary failed")
		}
		e.broadcaster.Publish(SummaryTopic(room.ID), &models.Message{
			Type:    models.TypeSummary,
			Content: summary,
			Sender:  "AI",
			RoomID:  room.ID,
		})
	}

	return e.advanceTurn(room, sender.ID)
}

// advanceTurn 把發言權交給另一位辯論者並重排計時器
func (e *DebateEngine) advanceTurn(room *models.Room, fromUserID uint) error {
	room.CurrentTurnUserID = room.OtherDebater(fromUserID)
	if err := e.rooms.Update(room); err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist turn flip failed")
		return err
	}

	nextName := e.usernameOf(room.CurrentTurnUserID)
	e.broadcaster.Publish(TurnTopic(room.ID), models.NewSystemMessage(models.TypeTurn, nextName, room.ID))

	e.timers.Start(room.ID)
	return nil
}

// handleReady 處理準備消息，雙方都就緒時開始辯論
func (e *DebateEngine) handleReady(sender *models.User, room *models.Room) error {
	if room.Started {
		e.broadcastError(room.ID, ErrCodeAlreadyStarted, "辯論已經開始")
		return nil
	}

	changed := false
	switch sender.ID {
	case room.DebaterAID:
		if !room.DebaterAReady {
			room.DebaterAReady = true
			changed = true
		}
	case room.DebaterBID:
		if !room.DebaterBReady {
			room.DebaterBReady = true
			changed = true
		}
	default:
		e.broadcastError(room.ID, ErrCodeNotDebater, "您不是此房間的辯論者")
		return nil
	}

	starting := room.DebaterAReady && room.DebaterBReady && !room.Started
	if starting {
		room.Started = true
		room.CurrentTurnUserID = room.DebaterAID // A 為先手
	}

	if err := e.rooms.Update(room); err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist ready state failed")
		return err
	}

	// 狀態真的改變才通知，重複 READY 靜默吸收
	if changed {
		e.broadcaster.Publish(RoomTopic(room.ID), models.NewSystemMessage(
			models.TypeReady, fmt.Sprintf("%s 已完成準備", sender.Username), room.ID))
	}

	if starting {
		startMessage := &models.DebateMessage{
			RoomID:  room.ID,
			Type:    models.TypeInfo,
			Content: "辯論開始",
			Sender:  "System",
		}
		if err := e.messages.Create(startMessage); err != nil {
			e.logger.Warn().Err(err).Uint("room_id", room.ID).Msg("persist start message failed")
		}

		e.broadcaster.Publish(RoomTopic(room.ID), models.NewSystemMessage(
			models.TypeStart,
			fmt.Sprintf("辯論開始，由 %s 先發言", e.usernameOf(room.DebaterAID)),
			room.ID))

		e.timers.Start(room.ID)
	}

	return nil
}

// endDebate 處理 FORFEIT、EXIT、ACK：無條件結束辯論
func (e *DebateEngine) endDebate(msg *models.Message, room *models.Room) error {
	var reason string
	switch msg.Type {
	case models.TypeForfeit:
		reason = fmt.Sprintf("%s 已棄權，辯論結束", msg.Sender)
	case models.TypeExit:
		reason = fmt.Sprintf("%s 離開了辯論", msg.Sender)
	default:
		reason = "辯論已結束"
	}

	room.Active = false
	room.Started = false
	room.DebaterAReady = false
	room.DebaterBReady = false
	if err := e.rooms.Update(room); err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist debate end failed")
		return err
	}

	endMessage := &models.DebateMessage{
		RoomID:  room.ID,
		Type:    models.TypeEnd,
		Content: reason,
		Sender:  "System",
	}
	if err := e.messages.Create(endMessage); err != nil {
		e.logger.Warn().Err(err).Uint("room_id", room.ID).Msg("persist end message failed")
	}

	e.broadcaster.Publish(RoomTopic(room.ID), models.NewSystemMessage(models.TypeEnd, reason, room.ID))

	e.timers.Cancel(room.ID)
	e.negotiation.Clear(room.ID)
	return nil
}

// onTurnTimeout 回合逾時：視同放棄本回合，發言權轉給對方
//
// 逾時本身就是觸發條件，不需要驗證發言權
func (e *DebateEngine) onTurnTimeout(roomID uint, gen uint64) {
	lock := e.locks.Get(roomID)
	lock.Lock()
	defer lock.Unlock()

	// 等鎖期間計時器可能已被發言或結束事件取消，過期的一發不得動房間
	if !e.timers.Consume(roomID, gen) {
		return
	}

	room, err := e.rooms.FindByID(roomID)
	if err != nil {
		e.logger.Error().Err(err).Uint("room_id", roomID).Msg("timeout: load room failed")
		return
	}
	if !room.Started {
		// 計時器觸發前辯論已結束
		return
	}

	holder := e.usernameOf(room.CurrentTurnUserID)
	reason := fmt.Sprintf("%s 發言逾時，回合轉移", holder)

	timeoutMessage := &models.DebateMessage{
		RoomID:  room.ID,
		Type:    models.TypeInfo,
		Content: reason,
		Sender:  "System",
	}
	if err := e.messages.Create(timeoutMessage); err != nil {
		e.logger.Error().Err(err).Uint("room_id", roomID).Msg("timeout: persist message failed")
		return
	}

	e.broadcaster.Publish(RoomTopic(room.ID), models.NewSystemMessage(models.TypeInfo, reason, room.ID))

	if err := e.advanceTurn(room, room.CurrentTurnUserID); err != nil {
		e.logger.Error().Err(err).Uint("room_id", roomID).Msg("timeout: advance turn failed")
	}
}

// handleEndRequest 處理結束辯論的請求
func (e *DebateEngine) handleEndRequest(sender *models.User, room *models.Room) error {
	if !room.Started {
		e.broadcastError(room.ID, ErrCodeNotStarted, "辯論尚未開始")
		return nil
	}
	if !room.HasDebater(sender.ID) {
		e.broadcastError(room.ID, ErrCodeNotDebater, "您不是此房間的辯論者")
		return nil
	}
	if !e.negotiation.Request(room.ID, sender.ID) {
		e.broadcastError(room.ID, ErrCodeRequestInFlight, "已有結束辯論的請求待處理")
		return nil
	}

	notice := fmt.Sprintf("%s 提議結束辯論", sender.Username)
	requestMessage := &models.DebateMessage{
		RoomID:  room.ID,
		Type:    models.TypeInfo,
		Content: notice,
		Sender:  "System",
	}
	if err := e.messages.Create(requestMessage); err != nil {
		// 入庫失敗就撤回請求，避免留下一筆沒人看得到的未決狀態
		e.negotiation.Clear(room.ID)
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist end request failed")
		return err
	}

	e.broadcaster.Publish(RoomTopic(room.ID), &models.Message{
		Type:    models.TypeEndRequest,
		Content: notice,
		Sender:  sender.Username,
		RoomID:  room.ID,
	})
	return nil
}

// handleEndAccept 處理對結束請求的同意，雙方合意則結束辯論
func (e *DebateEngine) handleEndAccept(sender *models.User, room *models.Room) error {
	requester, ok := e.negotiation.Requester(room.ID)
	if !ok {
		e.broadcastError(room.ID, ErrCodeNoPendingRequest, "沒有待處理的結束請求")
		return nil
	}
	if !room.HasDebater(sender.ID) {
		e.broadcastError(room.ID, ErrCodeNotDebater, "您不是此房間的辯論者")
		return nil
	}
	if sender.ID == requester {
		e.broadcastError(room.ID, ErrCodeSelfAccept, "不能同意自己提出的結束請求")
		return nil
	}

	e.negotiation.Clear(room.ID)
	e.timers.Cancel(room.ID)

	room.Started = false
	room.DebaterAReady = false
	room.DebaterBReady = false
	if err := e.rooms.Update(room); err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist negotiated end failed")
		return err
	}

	reason := "雙方同意結束辯論"
	endMessage := &models.DebateMessage{
		RoomID:  room.ID,
		Type:    models.TypeEnd,
		Content: reason,
		Sender:  "System",
	}
	if err := e.messages.Create(endMessage); err != nil {
		e.logger.Warn().Err(err).Uint("room_id", room.ID).Msg("persist end message failed")
	}

	e.broadcaster.Publish(RoomTopic(room.ID), &models.Message{
		Type:    models.TypeEndAccept,
		Content: reason,
		Sender:  sender.Username,
		RoomID:  room.ID,
	})
	e.broadcaster.Publish(StatusTopic(room.ID), map[string]interface{}{
		"room_id": room.ID,
		"started": false,
		"ended":   true,
	})
	return nil
}

// handleEndReject 處理對結束請求的拒絕，辯論不受影響地繼續
func (e *DebateEngine) handleEndReject(sender *models.User, room *models.Room) error {
	requester, ok := e.negotiation.Requester(room.ID)
	if !ok {
		e.broadcastError(room.ID, ErrCodeNoPendingRequest, "沒有待處理的結束請求")
		return nil
	}
	if !room.HasDebater(sender.ID) {
		e.broadcastError(room.ID, ErrCodeNotDebater, "您不是此房間的辯論者")
		return nil
	}
	if sender.ID == requester {
		e.broadcastError(room.ID, ErrCodeSelfReject, "不能拒絕自己提出的結束請求")
		return nil
	}

	// 只清除請求，回合、計時器與準備狀態都不動
	e.negotiation.Clear(room.ID)

	e.broadcaster.Publish(RoomTopic(room.ID), &models.Message{
		Type:    models.TypeEndReject,
		Content: fmt.Sprintf("%s 拒絕了結束辯論的請求", sender.Username),
		Sender:  sender.Username,
		RoomID:  room.ID,
	})
	return nil
}

// HandleChatMessage 處理觀眾聊天頻道的消息，與回合協議完全獨立
func (e *DebateEngine) HandleChatMessage(msg *models.Message) error {
	sender, err := e.users.FindByUsername(msg.Sender)
	if err != nil {
		return fmt.Errorf("找不到用戶 %s: %w", msg.Sender, err)
	}
	room, err := e.rooms.FindByID(msg.RoomID)
	if err != nil {
		return fmt.Errorf("找不到房間 %d: %w", msg.RoomID, err)
	}

	fullMessage := msg.Sender + ": " + msg.Content

	// 時間窗內的重複訊息視為重送，直接丟棄（盡力而為，不是嚴格去重）
	exists, err := e.chats.ExistsRecent(room.ID, sender.ID, fullMessage, e.dupWindow)
	if err != nil {
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("duplicate check failed")
		return err
	}
	if exists {
		e.logger.Debug().Uint("room_id", room.ID).Str("sender", msg.Sender).
			Msg("duplicate chat message dropped")
		return nil
	}

	chatMessage := &models.ChatMessage{
		RoomID:    room.ID,
		UserID:    sender.ID,
		Message:   fullMessage,
		Timestamp: time.Now(),
	}
	if err := e.chats.Create(chatMessage); err != nil {
		// 入庫失敗就不廣播，訊息整筆丟棄
		e.logger.Error().Err(err).Uint("room_id", room.ID).Msg("persist chat message failed")
		return err
	}

	e.broadcaster.Publish(ChatTopic(room.ID), msg)
	return nil
}

func (e *DebateEngine) broadcastError(roomID uint, code, message string) {
	e.broadcaster.Publish(ErrorTopic(roomID), debateError(code, message))
	e.logger.Debug().Uint("room_id", roomID).Str("code", code).Msg(message)
}

func (e *DebateEngine) usernameOf(userID uint) string {
	user, err := e.users.FindByID(userID)
	if err != nil {
		e.logger.Warn().Err(err).Uint("user_id", userID).Msg("resolve username failed")
		return fmt.Sprintf("用戶 %d", userID)
	}
	return user.Username
}
