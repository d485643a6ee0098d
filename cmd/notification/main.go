// 通知サービスのエントリポイント。
// 事業者間でやり取りするデジタルツインイベントの通知を記録・管理し、
// コネクタ経由で相手の事業者へ送信する。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/nao1215/ichub/internal/config"
	"github.com/nao1215/ichub/internal/connector"
	"github.com/nao1215/ichub/internal/notification"
	"github.com/nao1215/ichub/pkg/database"
	"github.com/nao1215/ichub/pkg/middleware"
)

func main() {
	configPath := flag.String("config", os.Getenv("ICHUB_CONFIG"), "設定ファイルのパス")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	log.SetLevel(cfg.Log.GommonLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("データベースの初期化に失敗: %v", err)
	}
	defer db.Close()

	if err := notification.InitSchema(db, cfg.Database.Driver); err != nil {
		log.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	auth, err := middleware.Authentication(middleware.AuthMode(cfg.Auth.Mode), cfg.Auth.APIKey, cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatalf("認証の設定に失敗: %v", err)
	}

	var sender notification.Sender
	if cfg.Connector.BaseURL != "" {
		sender = connector.NewConsumer(connector.Config{
			BaseURL: cfg.Connector.BaseURL,
			APIKey:  cfg.Connector.APIKey,
			Timeout: cfg.Connector.Timeout,
		})
	} else {
		log.Warnf("コネクタが設定されていないため、通知の送信は失敗します")
	}

	notifications := notification.NewService(notification.NewRepository(db), sender)
	server := notification.NewServer(notification.ServerConfig{
		Port:           cfg.Server.Port,
		APIPrefix:      cfg.Server.APIPrefix,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth:           auth,
	}, notifications, notification.NewTwinEventService(notifications))

	log.Infof("通知サービスを起動します: :%s (db=%s, auth=%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Auth.Mode)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
