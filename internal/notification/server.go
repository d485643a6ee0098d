package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/gommon/log"

	"github.com/nao1215/ichub/pkg/middleware"
)

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はサーバーのリッスンポート。
	Port string
	// APIPrefix は業務APIのパスプレフィックス（例: "/v1"）。
	APIPrefix string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Auth は業務APIの認証ゲート。nilの場合は認証しない。
	Auth gin.HandlerFunc
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg ServerConfig
	// notifications は通知管理サービス。
	notifications *Service
	// twinEvents はデジタルツインイベントの受付サービス。
	twinEvents *TwinEventService
}

// NewServer は新しい通知サーバーを生成する。
// サービスは呼び出し側で組み立てて渡す。
func NewServer(cfg ServerConfig, notifications *Service, twinEvents *TwinEventService) *Server {
	registerValidators()

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	s := &Server{
		router:        router,
		cfg:           cfg,
		notifications: notifications,
		twinEvents:    twinEvents,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// shutdownTimeout は処理中のリクエストの完了を待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("通知サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	log.Infof("通知サービスを停止しました")
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group(s.cfg.APIPrefix)
	if s.cfg.Auth != nil {
		api.Use(s.cfg.Auth)
	}
	{
		management := api.Group("/notifications-management")
		{
			// 受信者宛ての通知一覧取得
			management.POST("/notifications", s.handleList())
			// 通知送信
			management.POST("/notification", s.handleSend())
			// 通知取得
			management.GET("/notification", s.handleGet())
			// ステータス更新
			management.PUT("/notification/status", s.handleUpdateStatus())
			// 通知削除
			management.DELETE("/notification", s.handleDelete())
		}

		events := api.Group("/digital-twin-event")
		{
			events.POST("/connect-to-parent", s.handleTwinEvent(s.twinEvents.ReceiveConnectToParent))
			events.POST("/connect-to-child", s.handleTwinEvent(s.twinEvents.ReceiveConnectToChild))
			events.POST("/submodel-update", s.handleTwinEvent(s.twinEvents.ReceiveSubmodelUpdate))
			events.POST("/feedback", s.handleTwinEvent(s.twinEvents.ReceiveFeedback))
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}
