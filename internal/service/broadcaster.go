package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"debate_live/internal/models"
)

// Broadcaster 將事件發布到具名主題，送出即不追蹤（不等待任何確認）
type Broadcaster interface {
	Publish(topic string, payload interface{})
}

// 房間相關的主題名稱
func RoomTopic(roomID uint) string         { return fmt.Sprintf("room/%d", roomID) }
func ErrorTopic(roomID uint) string        { return fmt.Sprintf("error/%d", roomID) }
func SummaryTopic(roomID uint) string      { return fmt.Sprintf("summary/%d", roomID) }
func TurnTopic(roomID uint) string         { return fmt.Sprintf("turn/%d", roomID) }
func ChatTopic(roomID uint) string         { return fmt.Sprintf("chat/%d", roomID) }
func StatusTopic(roomID uint) string       { return fmt.Sprintf("status/%d", roomID) }
func ParticipantsTopic(roomID uint) string { return fmt.Sprintf("participants/%d", roomID) }

// RoomTopics 回傳一個房間底下所有的主題，連線時整組訂閱
func RoomTopics(roomID uint) []string {
	return []string{
		RoomTopic(roomID),
		ErrorTopic(roomID),
		SummaryTopic(roomID),
		TurnTopic(roomID),
		ChatTopic(roomID),
		StatusTopic(roomID),
		ParticipantsTopic(roomID),
	}
}

// envelope 是發給客戶端的外層結構，讓前端能分辨事件來自哪個主題
type envelope struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	ID       string          // 連線識別碼
	UserID   uint            // 用戶 ID
	Username string          // 用戶名
	RoomID   uint            // 房間 ID
	Conn     *websocket.Conn // WebSocket 連接
	send     chan *envelope  // 消息發送通道，用於異步傳送消息
	topics   []string
}

// WebSocketManager 管理所有的 WebSocket 連接和主題發布
type WebSocketManager struct {
	topics    map[string]map[*Client]bool // topic -> client -> bool
	topicsMux sync.RWMutex                // 用於保護 topics map 的讀寫鎖
	logger    zerolog.Logger
}

// NewWebSocketManager 創建並初始化新的 WebSocket 管理器
func NewWebSocketManager(logger zerolog.Logger) *WebSocketManager {
	return &WebSocketManager{
		topics: make(map[string]map[*Client]bool),
		logger: logger,
	}
}

// HandleConnection 處理新的 WebSocket 連接請求
//
// topics 是此連線要訂閱的主題；onMessage 在收到入站消息時被呼叫，
// 消息的 Sender 與 RoomID 一律以伺服器端的身分覆寫，不信任客戶端。
func (m *WebSocketManager) HandleConnection(conn *websocket.Conn, userID uint, username string, roomID uint, topics []string, onMessage func(*models.Message)) {
	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		RoomID:   roomID,
		Conn:     conn,
		send:     make(chan *envelope, 256),
		topics:   topics,
	}

	m.addClient(client)

	defer func() {
		m.removeClient(client)
		conn.Close()
	}()

	go m.writePump(client)
	m.readPump(client, onMessage)
}

// readPump 持續監聽並處理從客戶端接收的消息
func (m *WebSocketManager) readPump(client *Client, onMessage func(*models.Message)) {
	client.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn().Err(err).Str("client_id", client.ID).Msg("websocket unexpected close")
			}
			break
		}

		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			m.logger.Warn().Err(err).Str("client_id", client.ID).Msg("message parse error")
			continue
		}

		// 以連線身分覆寫，防止偽造發送者或跨房間投遞
		msg.Sender = client.Username
		msg.RoomID = client.RoomID

		if onMessage != nil {
			onMessage(&msg)
		}
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (m *WebSocketManager) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-client.send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(env)
			if err != nil {
				m.logger.Warn().Err(err).Msg("message encoding error")
				continue
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish 向訂閱該主題的所有客戶端發布消息
func (m *WebSocketManager) Publish(topic string, payload interface{}) {
	env := &envelope{Topic: topic, Payload: payload}

	m.topicsMux.RLock()
	clients := make([]*Client, 0, len(m.topics[topic]))
	for client := range m.topics[topic] {
		clients = append(clients, client)
	}
	m.topicsMux.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- env:
			// 消息成功加入發送隊列
		default:
			// 客戶端消息隊列已滿，關閉連接
			m.removeClient(client)
			client.Conn.Close()
		}
	}
}

// addClient 安全地登記客戶端的所有訂閱
func (m *WebSocketManager) addClient(client *Client) {
	m.topicsMux.Lock()
	defer m.topicsMux.Unlock()

	for _, topic := range client.topics {
		if m.topics[topic] == nil {
			m.topics[topic] = make(map[*Client]bool)
		}
		m.topics[topic][client] = true
	}
}

// removeClient 安全地移除客戶端的所有訂閱
func (m *WebSocketManager) removeClient(client *Client) {
	m.topicsMux.Lock()
	defer m.topicsMux.Unlock()

	for _, topic := range client.topics {
		if clients, ok := m.topics[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(m.topics, topic)
			}
		}
	}
}

// TopicClients 獲取指定主題目前的訂閱數量
func (m *WebSocketManager) TopicClients(topic string) int {
	m.topicsMux.RLock()
	defer m.topicsMux.RUnlock()
	return len(m.topics[topic])
}
