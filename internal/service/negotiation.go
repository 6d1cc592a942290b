package service

import "sync"

// EndNegotiationTracker 追蹤各房間待處理的結束辯論請求
//
// 每個房間最多只會有一筆未決請求，記錄提出者的用戶 ID。
type EndNegotiationTracker struct {
	mu      sync.Mutex
	pending map[uint]uint // roomID -> 提出請求的用戶 ID
}

func NewEndNegotiationTracker() *EndNegotiationTracker {
	return &EndNegotiationTracker{pending: make(map[uint]uint)}
}

// Request 登記一筆結束請求，若該房間已有未決請求則回傳 false
func (t *EndNegotiationTracker) Request(roomID, userID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[roomID]; exists {
		return false
	}
	t.pending[roomID] = userID
	return true
}

// Requester 回傳該房間未決請求的提出者
func (t *EndNegotiationTracker) Requester(roomID uint) (uint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.pending[roomID]
	return userID, ok
}

// Clear 清除該房間的未決請求，沒有請求時為 no-op
func (t *EndNegotiationTracker) Clear(roomID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, roomID)
}
