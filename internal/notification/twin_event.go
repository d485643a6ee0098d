package notification

import (
	"context"

	"github.com/labstack/gommon/log"
)

// TwinEventKind はデジタルツインイベントの種類。
type TwinEventKind string

const (
	// TwinEventConnectToParent は親部品への接続イベント。
	TwinEventConnectToParent TwinEventKind = "connect-to-parent"
	// TwinEventConnectToChild は子部品への接続イベント。
	TwinEventConnectToChild TwinEventKind = "connect-to-child"
	// TwinEventSubmodelUpdate はサブモデル更新イベント。
	TwinEventSubmodelUpdate TwinEventKind = "submodel-update"
	// TwinEventFeedback はフィードバックイベント。
	TwinEventFeedback TwinEventKind = "feedback"
)

// TwinEventService は他の事業者から届くデジタルツインイベントを受け付ける。
// イベント種別ごとの処理はまだ無く、受信通知として記録する。
type TwinEventService struct {
	notifications *Service
}

// NewTwinEventService は新しいデジタルツインイベントサービスを生成する。
func NewTwinEventService(notifications *Service) *TwinEventService {
	return &TwinEventService{notifications: notifications}
}

// ReceiveConnectToParent は親部品への接続イベントを受信する。
func (s *TwinEventService) ReceiveConnectToParent(ctx context.Context, n Notification) (Entity, error) {
	return s.receive(ctx, TwinEventConnectToParent, n)
}

// ReceiveConnectToChild は子部品への接続イベントを受信する。
func (s *TwinEventService) ReceiveConnectToChild(ctx context.Context, n Notification) (Entity, error) {
	return s.receive(ctx, TwinEventConnectToChild, n)
}

// ReceiveSubmodelUpdate はサブモデル更新イベントを受信する。
func (s *TwinEventService) ReceiveSubmodelUpdate(ctx context.Context, n Notification) (Entity, error) {
	return s.receive(ctx, TwinEventSubmodelUpdate, n)
}

// ReceiveFeedback はフィードバックイベントを受信する。
func (s *TwinEventService) ReceiveFeedback(ctx context.Context, n Notification) (Entity, error) {
	return s.receive(ctx, TwinEventFeedback, n)
}

func (s *TwinEventService) receive(ctx context.Context, kind TwinEventKind, n Notification) (Entity, error) {
	log.Infof("[TwinEvent] %s イベントを受信しました: message_id=%s", kind, n.Header.MessageID)
	return s.notifications.Create(ctx, n, DirectionIncoming)
}
