package service

import "sync"

// RoomLocker 為每個房間提供一把互斥鎖
//
// 所有會改動房間狀態的路徑（訊息處理、計時器觸發、結束協商、
// 離開房間）都必須先取得該房間的鎖，確保發言與逾時不會同時翻轉回合。
type RoomLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewRoomLocker() *RoomLocker {
	return &RoomLocker{locks: make(map[uint]*sync.Mutex)}
}

// Get 取得指定房間的鎖，不存在時建立
func (l *RoomLocker) Get(roomID uint) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	return lock
}

// Remove 房間刪除後釋放對應的鎖
func (l *RoomLocker) Remove(roomID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, roomID)
}
