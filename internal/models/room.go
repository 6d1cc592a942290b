package models

import (
	"time"

	"gorm.io/gorm"
)

// Room 表示一個辯論房間
//
// DebaterAID 固定是房間創建者；DebaterBID 為 0 表示該席位尚未有人。
// Started 為 true 時 CurrentTurnUserID 一定是兩位辯論者之一。
type Room struct {
	gorm.Model
	Title string
	Topic string

	Active bool // 房間是否仍可使用，強制終止後為 false

	DebaterAID uint
	DebaterBID uint

	DebaterAReady bool
	DebaterBReady bool

	Started           bool
	CurrentTurnUserID uint // 目前持有發言權的用戶，僅在 Started 時有意義

	CurrentParticipants int // 由出席紀錄重新計算，不可獨立加減
	TotalVisits         int

	ScheduledForDeletion bool
	DeletionTime         time.Time

	Keywords []Keyword       `gorm:"foreignKey:RoomID"`
	Messages []DebateMessage `gorm:"foreignKey:RoomID"`
}

// Keyword 房間的關鍵字標籤
type Keyword struct {
	gorm.Model
	RoomID uint   `json:"room_id"`
	Name   string `json:"name"`
}

// HasDebater 判斷用戶是否占有辯論席位
func (r *Room) HasDebater(userID uint) bool {
	return userID != 0 && (userID == r.DebaterAID || userID == r.DebaterBID)
}

// OtherDebater 回傳另一位辯論者的 ID
func (r *Room) OtherDebater(userID uint) uint {
	if userID == r.DebaterAID {
		return r.DebaterBID
	}
	return r.DebaterAID
}
