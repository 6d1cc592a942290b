package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"debate_live/internal/models"
	"debate_live/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接
//
// 每個房間有兩條入站通道：辯論通道走回合協議，聊天通道給觀眾
// 自由發言、完全不做回合檢查。
type WebSocketHandler struct {
	wsManager *service.WebSocketManager
	engine    *service.DebateEngine
	logger    zerolog.Logger
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(wsManager *service.WebSocketManager, engine *service.DebateEngine, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		engine:    engine,
		logger:    logger,
	}
}

// HandleDebateSocket 辯論通道的 WebSocket 連接點
func (h *WebSocketHandler) HandleDebateSocket(c *gin.Context) {
	h.handleSocket(c, h.engine.HandleMessage)
}

// HandleChatSocket 觀眾聊天通道的 WebSocket 連接點
func (h *WebSocketHandler) HandleChatSocket(c *gin.Context) {
	h.handleSocket(c, h.engine.HandleChatMessage)
}

func (h *WebSocketHandler) handleSocket(c *gin.Context, dispatch func(*models.Message) error) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的房間ID"})
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	username, _ := c.Get("username")

	// 升級 HTTP 連接為 WebSocket 連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	// 連線期間阻塞在這裡，斷線時自動清理訂閱
	h.wsManager.HandleConnection(conn, userID.(uint), username.(string), uint(roomID),
		service.RoomTopics(uint(roomID)),
		func(msg *models.Message) {
			if err := dispatch(msg); err != nil {
				h.logger.Error().Err(err).Uint("room_id", uint(roomID)).
					Str("type", msg.Type).Msg("dispatch failed")
			}
		})
}
