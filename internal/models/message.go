package models

import (
	"time"

	"gorm.io/gorm"
)

// WebSocket 協議的訊息類型
const (
	// 入站（由客戶端發出）
	TypeChat       = "CHAT"
	TypeDebate     = "DEBATE"
	TypeReady      = "READY"
	TypeForfeit    = "FORFEIT"
	TypeExit       = "EXIT"
	TypeAck        = "ACK"
	TypeEndRequest = "DEBATE_END_REQUEST"
	TypeEndAccept  = "DEBATE_END_ACCEPT"
	TypeEndReject  = "DEBATE_END_REJECT"

	// 出站（由伺服器發出）
	TypeError   = "ERROR"
	TypeInfo    = "INFO"
	TypeSystem  = "SYSTEM"
	TypeStart   = "START"
	TypeEnd     = "END"
	TypeTurn    = "TURN"
	TypeSummary = "SUMMARY"
)

// Message 是 WebSocket 上的協議信封，不直接入庫
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
	RoomID  uint   `json:"roomId"`
}

// NewSystemMessage 建立一條系統通知
func NewSystemMessage(msgType, content string, roomID uint) *Message {
	return &Message{
		Type:    msgType,
		Content: content,
		Sender:  "System",
		RoomID:  roomID,
	}
}

// DebateMessage 表示一條已入庫的辯論消息
type DebateMessage struct {
	gorm.Model
	RoomID  uint   `json:"room_id"`
	UserID  uint   `json:"user_id"`
	Type    string `json:"type" gorm:"type:varchar(50)"`
	Content string `json:"content" gorm:"type:text"`
	Sender  string `json:"sender"`
	Summary string `json:"summary,omitempty" gorm:"type:text"`
}

// ChatMessage 表示觀眾聊天頻道的一條消息
type ChatMessage struct {
	gorm.Model
	RoomID    uint      `json:"room_id"`
	UserID    uint      `json:"user_id"`
	Message   string    `json:"message" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp"`
}
