package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/nao1215/ichub/internal/notification"
	"github.com/nao1215/ichub/pkg/httpclient"
)

const (
	// TransferPath はコネクタの通知転送APIのパス。
	TransferPath = "/management/v3/notifications/transfer"
	// ProtocolDSP はコネクタ間の通信プロトコル。
	ProtocolDSP = "dataspace-protocol-http"
	// HeaderAPIKey はコネクタの管理APIが要求するAPIキーヘッダー。
	HeaderAPIKey = "X-Api-Key"
)

// 転送状態。これ以外の状態は送信済みとみなす。
const (
	StateTerminated = "TERMINATED"
	StateFailed     = "FAILED"
)

// Config はコンシューマコネクタへの接続設定。
type Config struct {
	// BaseURL はコネクタの管理APIのベースURL。
	BaseURL string
	// APIKey はコネクタの管理APIキー。
	APIKey string
	// Timeout は1回の転送依頼のタイムアウト。
	Timeout time.Duration
}

// Consumer はコンシューマコネクタのクライアント。
type Consumer struct {
	client *httpclient.Client
}

// NewConsumer は新しいコネクタクライアントを生成する。
func NewConsumer(cfg Config) *Consumer {
	return &Consumer{
		client: httpclient.New(cfg.BaseURL,
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithHeader(HeaderAPIKey, cfg.APIKey),
		),
	}
}

// transferRequest はコネクタへの転送依頼のJSON構造。
type transferRequest struct {
	// CounterPartyID は送信先の事業者番号。
	CounterPartyID string `json:"counterPartyId"`
	// CounterPartyAddress は送信先コネクタのDSPエンドポイントURL。
	CounterPartyAddress string `json:"counterPartyAddress"`
	// Protocol はコネクタ間の通信プロトコル。
	Protocol string `json:"protocol"`
	// EndpointPath は相手側の通知受付エンドポイントのパス。
	EndpointPath string `json:"endpointPath"`
	// Policies は交渉に使うポリシー。
	Policies []map[string]any `json:"policies"`
	// Payload は届ける通知。
	Payload notification.Notification `json:"payload"`
}

// Send はコネクタに通知の転送を依頼する。
// コネクタが依頼を拒否した場合や転送が失敗状態で終わった場合は *notification.NotificationError を返す。
func (c *Consumer) Send(ctx context.Context, params notification.SendParams) (*notification.SendResult, error) {
	req := transferRequest{
		CounterPartyID:      params.ProviderBPN,
		CounterPartyAddress: params.ProviderDSPURL,
		Protocol:            ProtocolDSP,
		EndpointPath:        params.EndpointPath,
		Policies:            params.Policies,
		Payload:             params.Notification,
	}
	if req.Policies == nil {
		req.Policies = []map[string]any{}
	}

	var result notification.SendResult
	if err := c.client.PostJSON(ctx, TransferPath, req, &result); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, &notification.NotificationError{
				Message: fmt.Sprintf("コネクタが転送を拒否しました: status=%d, body=%s", statusErr.StatusCode, statusErr.Body),
				Err:     err,
			}
		}
		return nil, err
	}

	switch strings.ToUpper(result.State) {
	case StateTerminated, StateFailed:
		return nil, &notification.NotificationError{
			Message: fmt.Sprintf("通知の転送に失敗しました: transfer_id=%s, state=%s", result.TransferID, result.State),
		}
	}

	log.Debugf("[Connector] 転送を依頼しました: provider=%s, transfer_id=%s", params.ProviderBPN, result.TransferID)
	return &result, nil
}
