package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification は notifications テーブルの1行。
type Notification struct {
	ID               int64          `db:"id"`
	CreatedAt        time.Time      `db:"created_at"`
	MessageID        uuid.UUID      `db:"message_id"`
	SenderBpn        string         `db:"sender_bpn"`
	ReceiverBpn      string         `db:"receiver_bpn"`
	Direction        string         `db:"direction"`
	Status           string         `db:"status"`
	FullNotification datatypes.JSON `db:"full_notification"`
}
