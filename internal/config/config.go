// Package config は通知サービスの設定を読み込む。
//
// 設定ファイル（config.yaml）は任意で、ICHUB_ で始まる環境変数が優先される。
// 例: server.port は ICHUB_SERVER_PORT、database.dsn は ICHUB_DATABASE_DSN で上書きできる。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"github.com/spf13/viper"
)

// EnvPrefix は環境変数のプレフィックス。
const EnvPrefix = "ICHUB"

// Config はアプリケーション全体の設定。
type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Auth      Auth      `mapstructure:"auth"`
	Connector Connector `mapstructure:"connector"`
	Log       Log       `mapstructure:"log"`
}

// Server はHTTPサーバーの設定。
type Server struct {
	Port           string   `mapstructure:"port" validate:"required,numeric"`
	APIPrefix      string   `mapstructure:"api_prefix" validate:"required,startswith=/"`
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"dive,url|eq=*"`
}

// Database はデータベースの設定。
type Database struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Auth は業務APIの認証設定。
type Auth struct {
	Mode      string `mapstructure:"mode" validate:"required,oneof=none api-key jwt"`
	APIKey    string `mapstructure:"api_key" validate:"required_if=Mode api-key"`
	JWTSecret string `mapstructure:"jwt_secret" validate:"required_if=Mode jwt"`
}

// Connector はコンシューマコネクタへの接続設定。
// BaseURLが空の場合、通知の送信は常に失敗する。
type Connector struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Log はログ出力の設定。
type Log struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// defaults は各設定キーの既定値。
// 環境変数での上書きはここに登録したキーのみ有効になる。
var defaults = map[string]any{
	"server.port":                "9000",
	"server.api_prefix":          "/v1",
	"server.allowed_origins":     []string{"http://localhost:5173"},
	"database.driver":            "sqlite",
	"database.dsn":               "/data/notification.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 30 * time.Minute,
	"auth.mode":                  "none",
	"auth.api_key":               "",
	"auth.jwt_secret":            "",
	"connector.base_url":         "",
	"connector.api_key":          "",
	"connector.timeout":          30 * time.Second,
	"log.level":                  "info",
}

// Load は設定を読み込んで検証する。
// pathが空の場合はカレントディレクトリと ./configs の config.yaml を探し、無ければ既定値と環境変数のみを使う。
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	} else {
		log.Infof("設定ファイルを読み込みました: %s", v.ConfigFileUsed())
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// validate は設定値を検証し、違反したフィールドをまとめて返す。
func validate(c *Config) error {
	err := goValidator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors goValidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s(%s)", ve.StructNamespace(), ve.Tag()))
	}
	return fmt.Errorf("設定が不正です: %s", strings.Join(fields, ", "))
}

// GommonLevel はログレベルをgommon/logのレベルに変換する。
func (l Log) GommonLevel() log.Lvl {
	switch l.Level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
