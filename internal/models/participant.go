package models

import (
	"time"

	"gorm.io/gorm"
)

// RoomParticipant 記錄一位用戶在某房間的出席狀態
//
// 同一 (user, room) 只會有一筆紀錄：再次進入時重新啟用原紀錄，
// 離開時標記為非活躍並蓋上離開時間。
type RoomParticipant struct {
	gorm.Model
	UserID    uint       `json:"user_id" gorm:"index:idx_participant_user_room,unique"`
	RoomID    uint       `json:"room_id" gorm:"index:idx_participant_user_room,unique"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at"`
	Active    bool       `json:"active"`
}
