package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TimeoutFunc 是回合逾時的處理函式，gen 用於在房間鎖下確認時效
type TimeoutFunc func(roomID uint, gen uint64)

type roomTimer struct {
	gen   uint64
	timer *time.Timer
}

// TurnTimerManager 保證每個房間最多只有一個待觸發的回合計時器
//
// Start 會先取消舊計時器再排新的；Cancel 與觸發之間的競爭用
// 世代編號解決。回呼可能在房間鎖外等待，期間計時器可能已被
// Cancel 或新的 Start 取代，所以回呼取得房間鎖後必須先以
// Consume 確認自己仍是最新的一發，否則不得動房間狀態。
type TurnTimerManager struct {
	mu      sync.Mutex
	timers  map[uint]*roomTimer
	gen     uint64
	timeout time.Duration
	handler TimeoutFunc
	logger  zerolog.Logger
}

func NewTurnTimerManager(timeout time.Duration, logger zerolog.Logger) *TurnTimerManager {
	return &TurnTimerManager{
		timers:  make(map[uint]*roomTimer),
		timeout: timeout,
		logger:  logger,
	}
}

// SetHandler 設定逾時回呼，必須在第一次 Start 之前呼叫
func (m *TurnTimerManager) SetHandler(fn TimeoutFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Start 為房間排一個新的回合計時器，舊的一律作廢
func (m *TurnTimerManager) Start(roomID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.timers[roomID]; ok {
		existing.timer.Stop()
	}

	m.gen++
	gen := m.gen
	rt := &roomTimer{gen: gen}
	rt.timer = time.AfterFunc(m.timeout, func() {
		m.fire(roomID, gen)
	})
	m.timers[roomID] = rt
}

// Cancel 取消房間的計時器，沒有計時器時為 no-op
func (m *TurnTimerManager) Cancel(roomID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.timers[roomID]; ok {
		rt.timer.Stop()
		delete(m.timers, roomID)
	}
}

// Active 回報房間是否有待觸發的計時器
func (m *TurnTimerManager) Active(roomID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[roomID]
	return ok
}

// Consume 確認此次觸發是否仍是房間最新的計時器
//
// 是則移除計時器並回傳 true；已被 Cancel 或新的 Start 取代時回傳
// false。逾時回呼必須先取得房間鎖、再呼叫 Consume，通過了才能改動
// 房間狀態。
func (m *TurnTimerManager) Consume(roomID uint, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.timers[roomID]
	if !ok || rt.gen != gen {
		return false
	}
	delete(m.timers, roomID)
	return true
}

func (m *TurnTimerManager) fire(roomID uint, gen uint64) {
	m.mu.Lock()
	rt, ok := m.timers[roomID]
	stale := !ok || rt.gen != gen
	handler := m.handler
	m.mu.Unlock()

	// 提前出局只是省一次回呼，時效的最終裁定在 Consume
	if stale || handler == nil {
		return
	}

	// 回呼內的恐慌不能拖垮其他房間的計時
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Uint("room_id", roomID).Interface("panic", r).
				Msg("turn timeout handler panicked")
		}
	}()
	handler(roomID, gen)
}
