package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	notificationdb "github.com/nao1215/ichub/internal/notification/db"
)

// Direction は通知の方向（受信/送信）を表す。
type Direction string

const (
	// DirectionIncoming は他の事業者から受信した通知。
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing は他の事業者へ送信する通知。
	DirectionOutgoing Direction = "outgoing"
)

// Valid は定義済みの方向かどうかを返す。
func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Status は通知の処理状態を表す。
type Status string

const (
	// StatusReceived は受信済み。受信通知の初期状態。
	StatusReceived Status = "received"
	// StatusRead は既読。
	StatusRead Status = "read"
	// StatusPending は送信待ち。送信通知の初期状態。
	StatusPending Status = "pending"
	// StatusSent は送信済み。
	StatusSent Status = "sent"
	// StatusFailed は送信失敗。
	StatusFailed Status = "failed"
)

// Valid は定義済みのステータスかどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusRead, StatusPending, StatusSent, StatusFailed:
		return true
	default:
		return false
	}
}

// InitialStatus は方向ごとの初期ステータスを返す。
func InitialStatus(d Direction) (Status, error) {
	switch d {
	case DirectionIncoming:
		return StatusReceived, nil
	case DirectionOutgoing:
		return StatusPending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, d)
	}
}

// Header は通知のヘッダー。事業者間でやり取りされる識別情報を持つ。
type Header struct {
	// MessageID は通知の一意識別子。
	MessageID uuid.UUID `json:"messageId" binding:"required"`
	// Context は通知の種類を表す文字列（例: "IndustryCore-DigitalTwinEventAPI-ConnectToParent:1.0.0"）。
	Context string `json:"context,omitempty"`
	// SenderBPN は送信者の事業者番号。
	SenderBPN string `json:"senderBpn" binding:"required,bpn"`
	// ReceiverBPN は受信者の事業者番号。
	ReceiverBPN string `json:"receiverBpn" binding:"required,bpn"`
	// SentDateTime は送信日時。
	SentDateTime *time.Time `json:"sentDateTime,omitempty"`
	// Version は通知フォーマットのバージョン。
	Version string `json:"version,omitempty"`
	// ExpectedResponseBy は応答期限。
	ExpectedResponseBy *time.Time `json:"expectedResponseBy,omitempty"`
	// RelatedMessageID は関連する通知のメッセージID。
	RelatedMessageID *uuid.UUID `json:"relatedMessageId,omitempty"`
}

// Notification は事業者間でやり取りされる通知のペイロード。
// Contentの形はこのサービスでは解釈しない。
type Notification struct {
	// Header は通知のヘッダー。
	Header Header `json:"header"`
	// Content は通知本文。JSONのまま保持する。
	Content json.RawMessage `json:"content,omitempty"`
}

// Entity は永続化された通知レコード。
type Entity struct {
	// ID はサロゲートキー。
	ID int64 `json:"id"`
	// CreatedAt はレコードの作成日時（UTC）。
	CreatedAt time.Time `json:"created_at"`
	// MessageID は通知の一意識別子。
	MessageID uuid.UUID `json:"message_id"`
	// SenderBPN は送信者の事業者番号。
	SenderBPN string `json:"sender_bpn"`
	// ReceiverBPN は受信者の事業者番号。
	ReceiverBPN string `json:"receiver_bpn"`
	// Direction は通知の方向。
	Direction Direction `json:"direction"`
	// Status は通知の処理状態。
	Status Status `json:"status"`
	// FullNotification は受信/送信した通知そのもの。
	FullNotification datatypes.JSON `json:"full_notification"`
}

// NewEntity は通知ペイロードを検索可能なフラットなレコードに変換する。
// ヘッダーの識別子を列に展開し、ペイロード全体をJSONとして保持する。
func NewEntity(n Notification, direction Direction, status Status) (Entity, error) {
	if !direction.Valid() {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if !status.Valid() {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	raw, err := json.Marshal(n)
	if err != nil {
		return Entity{}, fmt.Errorf("通知のシリアライズに失敗: %w", err)
	}

	return Entity{
		CreatedAt:        time.Now().UTC(),
		MessageID:        n.Header.MessageID,
		SenderBPN:        n.Header.SenderBPN,
		ReceiverBPN:      n.Header.ReceiverBPN,
		Direction:        direction,
		Status:           status,
		FullNotification: datatypes.JSON(raw),
	}, nil
}

// Notification は保持しているJSONから元の通知ペイロードを復元する。
func (e Entity) Notification() (Notification, error) {
	var n Notification
	if err := json.Unmarshal(e.FullNotification, &n); err != nil {
		return Notification{}, fmt.Errorf("通知のデシリアライズに失敗: %w", err)
	}
	return n, nil
}

// toEntity はDB行をEntityに変換する。
func toEntity(n notificationdb.Notification) Entity {
	return Entity{
		ID:               n.ID,
		CreatedAt:        n.CreatedAt.UTC(),
		MessageID:        n.MessageID,
		SenderBPN:        n.SenderBpn,
		ReceiverBPN:      n.ReceiverBpn,
		Direction:        Direction(n.Direction),
		Status:           Status(n.Status),
		FullNotification: n.FullNotification,
	}
}

// toEntities はDB行のスライスをEntityのスライスに変換する。
func toEntities(rows []notificationdb.Notification) []Entity {
	entities := make([]Entity, 0, len(rows))
	for _, n := range rows {
		entities = append(entities, toEntity(n))
	}
	return entities
}
