package notification

import "errors"

var (
	// ErrDuplicateMessage は同じメッセージIDの通知が既に存在する場合のエラー。
	ErrDuplicateMessage = errors.New("同じメッセージIDの通知が既に存在します")
	// ErrInvalidDirection は通知の方向が不正な場合のエラー。
	ErrInvalidDirection = errors.New("通知の方向が不正です")
	// ErrInvalidStatus は通知のステータスが不正な場合のエラー。
	ErrInvalidStatus = errors.New("通知のステータスが不正です")
)

// NotificationError は通知の送信に失敗したことを表すエラー。
type NotificationError struct {
	// Message はエラーの説明。原因のメッセージを含む。
	Message string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *NotificationError) Error() string {
	return e.Message
}

// Unwrap は原因となったエラーを返す。
func (e *NotificationError) Unwrap() error {
	return e.Err
}
