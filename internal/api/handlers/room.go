package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"debate_live/internal/models"
	"debate_live/internal/service"
)

// RoomHandler 處理與辯論房間相關的請求
type RoomHandler struct {
	roomService *service.RoomService
	userService *service.UserService
	presence    *service.PresenceTracker
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService, userService *service.UserService, presence *service.PresenceTracker) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		userService: userService,
		presence:    presence,
	}
}

func roomIDParam(c *gin.Context) (uint, bool) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的房間ID"})
		return 0, false
	}
	return uint(roomID), true
}

func (h *RoomHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, _ := c.Get("userID")
	user, err := h.userService.GetUserByID(userID.(uint))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用戶不存在"})
		return nil, false
	}
	return user, true
}

// CreateRoom 處理創建新房間的請求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		Title    string   `json:"title" binding:"required"`
		Topic    string   `json:"topic"`
		Keywords []string `json:"keywords"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	room, err := h.roomService.CreateRoom(input.Title, input.Topic, input.Keywords, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建房間失敗"})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms 獲取房間列表
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法取得房間列表"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// HotRooms 獲取熱門房間列表
func (h *RoomHandler) HotRooms(c *gin.Context) {
	rooms, err := h.roomService.HotRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法取得熱門房間"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// MyRooms 獲取用戶參與的房間列表
func (h *RoomHandler) MyRooms(c *gin.Context) {
	userID, _ := c.Get("userID")
	rooms, err := h.roomService.MyRooms(userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法取得我的房間"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetRoom 處理獲取房間訊息的請求，連同辯論消息歷史
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.roomService.GetRoomWithMessages(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetChatMessages 獲取觀眾聊天歷史
func (h *RoomHandler) GetChatMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	messages, err := h.roomService.GetChatMessages(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法取得聊天訊息"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// JoinRoom 處理以辯論者B身分加入房間的請求
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	room, err := h.roomService.JoinAsDebaterB(roomID, user)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
	case errors.Is(err, service.ErrRoomFull), errors.Is(err, service.ErrRoomClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "加入房間失敗"})
	default:
		c.JSON(http.StatusOK, room)
	}
}

// EnterRoom 登記用戶進入房間（出席統計）
func (h *RoomHandler) EnterRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.presence.Enter(roomID, user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "進入房間失敗"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "成功進入房間"})
}

// LeaveRoom 處理離開房間的請求
//
// 主持人離開會刪除整個房間；辯論者B離開會結束辯論並排定刪除；
// 觀眾離開只更新出席統計。
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	isHost, err := h.roomService.IsHost(roomID, user.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
		return
	}

	if isHost {
		if err := h.roomService.DeleteRoom(roomID, user.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "刪除房間失敗"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "房間已刪除"})
		return
	}

	if err := h.roomService.LeaveRoom(roomID, user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.presence.Leave(roomID, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新出席狀態失敗"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "成功離開房間"})
}
