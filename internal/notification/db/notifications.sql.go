package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gorm.io/datatypes"
)

const notificationColumns = `id, created_at, message_id, sender_bpn, receiver_bpn, direction, status, full_notification`

const createNotification = `
INSERT INTO notifications (
    created_at, message_id, sender_bpn, receiver_bpn, direction, status, full_notification
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

// CreateNotificationParams は CreateNotification の引数。
type CreateNotificationParams struct {
	CreatedAt        time.Time
	MessageID        uuid.UUID
	SenderBpn        string
	ReceiverBpn      string
	Direction        string
	Status           string
	FullNotification datatypes.JSON
}

// CreateNotification は通知を1件挿入し、挿入した行を返す。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	if _, err := q.db.ExecContext(ctx, q.db.Rebind(createNotification),
		arg.CreatedAt,
		arg.MessageID,
		arg.SenderBpn,
		arg.ReceiverBpn,
		arg.Direction,
		arg.Status,
		arg.FullNotification,
	); err != nil {
		return Notification{}, err
	}
	return q.GetNotificationByMessageID(ctx, arg.MessageID)
}

const getNotificationByMessageID = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE message_id = ?
`

// GetNotificationByMessageID はメッセージIDで通知を取得する。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetNotificationByMessageID(ctx context.Context, messageID uuid.UUID) (Notification, error) {
	var n Notification
	err := sqlx.GetContext(ctx, q.db, &n, q.db.Rebind(getNotificationByMessageID), messageID)
	return n, err
}

const updateNotificationStatus = `
UPDATE notifications
SET status = ?
WHERE message_id = ?
`

// UpdateNotificationStatusParams は UpdateNotificationStatus の引数。
type UpdateNotificationStatusParams struct {
	MessageID uuid.UUID
	Status    string
}

// UpdateNotificationStatus は通知のステータスを更新し、更新後の行を返す。
// 対象が存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) UpdateNotificationStatus(ctx context.Context, arg UpdateNotificationStatusParams) (Notification, error) {
	if _, err := q.db.ExecContext(ctx, q.db.Rebind(updateNotificationStatus), arg.Status, arg.MessageID); err != nil {
		return Notification{}, err
	}
	return q.GetNotificationByMessageID(ctx, arg.MessageID)
}

const listNotificationsByReceiver = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE receiver_bpn = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`

const listNotificationsByReceiverAndStatus = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE receiver_bpn = ? AND status = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`

// ListNotificationsParams は ListNotificationsByReceiver の引数。
// Status が空の場合はステータスで絞り込まない。
type ListNotificationsParams struct {
	ReceiverBpn string
	Status      string
	Limit       int
	Offset      int
}

// ListNotificationsByReceiver は受信者の通知を新しい順に返す。
func (q *Queries) ListNotificationsByReceiver(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	items := []Notification{}
	var err error
	if arg.Status == "" {
		err = sqlx.SelectContext(ctx, q.db, &items, q.db.Rebind(listNotificationsByReceiver),
			arg.ReceiverBpn, arg.Limit, arg.Offset)
	} else {
		err = sqlx.SelectContext(ctx, q.db, &items, q.db.Rebind(listNotificationsByReceiverAndStatus),
			arg.ReceiverBpn, arg.Status, arg.Limit, arg.Offset)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

const deleteNotificationByMessageID = `
DELETE FROM notifications
WHERE message_id = ?
`

// DeleteNotificationByMessageID はメッセージIDで通知を削除し、削除件数を返す。
func (q *Queries) DeleteNotificationByMessageID(ctx context.Context, messageID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.db.Rebind(deleteNotificationByMessageID), messageID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
