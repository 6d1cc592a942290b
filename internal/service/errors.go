package service

import "errors"

// 驗證錯誤的代碼，會連同訊息一起發布到房間的錯誤頻道
const (
	ErrCodeNotStarted       = "not_started"
	ErrCodeWrongTurn        = "wrong_turn"
	ErrCodeNotDebater       = "not_debater"
	ErrCodeAlreadyStarted   = "already_started"
	ErrCodeRequestInFlight  = "request_in_flight"
	ErrCodeNoPendingRequest = "no_pending_request"
	ErrCodeSelfAccept       = "self_accept_not_allowed"
	ErrCodeSelfReject       = "self_reject_not_allowed"
)

// DebateError 表示一個可恢復的協議驗證錯誤，房間狀態不受影響。
// 會原樣發布到房間的錯誤頻道，前端依 Code 分辨錯誤種類。
type DebateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DebateError) Error() string {
	return e.Message
}

func debateError(code, message string) *DebateError {
	return &DebateError{Code: code, Message: message}
}

var (
	ErrRoomFull        = errors.New("辯論席位已滿")
	ErrRoomClosed      = errors.New("房間不開放加入")
	ErrNotHost         = errors.New("只有房間主持人可以刪除房間")
	ErrHostCannotLeave = errors.New("主持人離開請使用刪除房間操作")
)
