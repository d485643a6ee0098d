package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	notificationdb "github.com/nao1215/ichub/internal/notification/db"
)

const (
	// DefaultListLimit は一覧取得の既定の件数。
	DefaultListLimit = 10
	// MaxListLimit は一覧取得で指定できる最大件数。
	MaxListLimit = 1000
)

// Sender は通知を相手の事業者へ届けるコネクタ。
type Sender interface {
	// Send は通知を送信し、コネクタが報告した結果を返す。
	Send(ctx context.Context, params SendParams) (*SendResult, error)
}

// SendParams は通知送信のパラメータ。
type SendParams struct {
	// Notification は送信する通知。
	Notification Notification
	// EndpointPath は相手側の通知受付エンドポイントのパス。
	EndpointPath string
	// ProviderBPN は送信先の事業者番号。
	ProviderBPN string
	// ProviderDSPURL は送信先コネクタのDSPエンドポイントURL。
	ProviderDSPURL string
	// Policies はデータ転送の交渉に使うポリシー。
	Policies []map[string]any
}

// SendResult はコネクタが報告した送信結果。
type SendResult struct {
	// TransferID はコネクタが採番した転送ID。
	TransferID string `json:"transferId"`
	// State は転送の状態。
	State string `json:"state"`
}

// ListParams は通知一覧取得の条件。
type ListParams struct {
	// ReceiverBPN は受信者の事業者番号。
	ReceiverBPN string
	// Status は絞り込むステータス。空の場合は絞り込まない。
	Status Status
	// Offset は読み飛ばす件数。
	Offset int
	// Limit は取得する最大件数。
	Limit int
}

// Service は通知の管理を行う。
type Service struct {
	repo   *Repository
	sender Sender
}

// NewService は新しい通知管理サービスを生成する。
// senderがnilの場合、送信は常に失敗する。
func NewService(repo *Repository, sender Sender) *Service {
	return &Service{repo: repo, sender: sender}
}

// Create は通知を保存する。ステータスは方向から決まる。
func (s *Service) Create(ctx context.Context, n Notification, direction Direction) (Entity, error) {
	status, err := InitialStatus(direction)
	if err != nil {
		return Entity{}, err
	}
	entity, err := NewEntity(n, direction, status)
	if err != nil {
		return Entity{}, err
	}

	log.Infof("[Notification] %s 通知を作成します: message_id=%s", direction, n.Header.MessageID)

	var created notificationdb.Notification
	err = s.repo.Session(ctx, func(q *notificationdb.Queries) error {
		var err error
		created, err = q.CreateNotification(ctx, notificationdb.CreateNotificationParams{
			CreatedAt:        entity.CreatedAt,
			MessageID:        entity.MessageID,
			SenderBpn:        entity.SenderBPN,
			ReceiverBpn:      entity.ReceiverBPN,
			Direction:        string(entity.Direction),
			Status:           string(entity.Status),
			FullNotification: entity.FullNotification,
		})
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Entity{}, fmt.Errorf("%w: %s", ErrDuplicateMessage, n.Header.MessageID)
		}
		return Entity{}, fmt.Errorf("通知の保存に失敗: %w", err)
	}
	return toEntity(created), nil
}

// Get はメッセージIDで通知を取得する。存在しない場合はfalseを返す。
func (s *Service) Get(ctx context.Context, messageID uuid.UUID) (Entity, bool, error) {
	var found notificationdb.Notification
	err := s.repo.Session(ctx, func(q *notificationdb.Queries) error {
		var err error
		found, err = q.GetNotificationByMessageID(ctx, messageID)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return toEntity(found), true, nil
}

// UpdateStatus は通知のステータスを更新する。存在しない場合はfalseを返す。
func (s *Service) UpdateStatus(ctx context.Context, messageID uuid.UUID, status Status) (Entity, bool, error) {
	if !status.Valid() {
		return Entity{}, false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated notificationdb.Notification
	err := s.repo.Session(ctx, func(q *notificationdb.Queries) error {
		var err error
		updated, err = q.UpdateNotificationStatus(ctx, notificationdb.UpdateNotificationStatusParams{
			MessageID: messageID,
			Status:    string(status),
		})
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, fmt.Errorf("ステータスの更新に失敗: %w", err)
	}
	return toEntity(updated), true, nil
}

// List は受信者宛ての通知を新しい順に返す。
// Limitが0以下の場合はDefaultListLimit、MaxListLimitを超える場合はMaxListLimitに丸める。
func (s *Service) List(ctx context.Context, params ListParams) ([]Entity, error) {
	if params.Status != "" && !params.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, params.Status)
	}
	limit := params.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset := max(params.Offset, 0)

	var rows []notificationdb.Notification
	err := s.repo.Session(ctx, func(q *notificationdb.Queries) error {
		var err error
		rows, err = q.ListNotificationsByReceiver(ctx, notificationdb.ListNotificationsParams{
			ReceiverBpn: params.ReceiverBPN,
			Status:      string(params.Status),
			Limit:       limit,
			Offset:      offset,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// Delete はメッセージIDで通知を削除する。存在しない場合はfalseを返す。
func (s *Service) Delete(ctx context.Context, messageID uuid.UUID) (bool, error) {
	var affected int64
	err := s.repo.Session(ctx, func(q *notificationdb.Queries) error {
		var err error
		affected, err = q.DeleteNotificationByMessageID(ctx, messageID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("通知の削除に失敗: %w", err)
	}
	return affected > 0, nil
}

// Send はコネクタ経由で通知を送信する。
// 失敗した場合は必ず *NotificationError を返す。
func (s *Service) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	if s.sender == nil {
		return nil, &NotificationError{Message: "通知の送信に失敗: コネクタが設定されていません"}
	}

	result, err := s.sender.Send(ctx, params)
	if err != nil {
		var notificationErr *NotificationError
		if errors.As(err, &notificationErr) {
			return nil, err
		}
		log.Errorf("[Notification] 通知の送信に失敗: %v", err)
		return nil, &NotificationError{
			Message: fmt.Sprintf("通知の送信に失敗: %v", err),
			Err:     err,
		}
	}

	log.Infof("[Notification] 通知を送信しました: message_id=%s, transfer_id=%s, state=%s",
		params.Notification.Header.MessageID, result.TransferID, result.State)
	return result, nil
}

// Dispatch は送信通知を保存してから送信し、結果に応じてステータスを更新する。
// 送信に失敗した場合はfailedに更新した通知と *NotificationError を返す。
func (s *Service) Dispatch(ctx context.Context, params SendParams) (Entity, error) {
	entity, err := s.Create(ctx, params.Notification, DirectionOutgoing)
	if err != nil {
		return Entity{}, err
	}

	status := StatusSent
	_, sendErr := s.Send(ctx, params)
	if sendErr != nil {
		status = StatusFailed
	}

	updated, found, err := s.UpdateStatus(ctx, entity.MessageID, status)
	if err != nil {
		return entity, errors.Join(sendErr, err)
	}
	if found {
		entity = updated
	}
	return entity, sendErr
}
