// Package database はsqlxによるデータベース接続の生成を提供する。
// SQLite（modernc.org/sqlite）とPostgreSQL（lib/pq）を同じAPIで扱う。
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite はmodernc.org/sqliteのドライバ名。
	DriverSQLite = "sqlite"
	// DriverPostgres はlib/pqのドライバ名。
	DriverPostgres = "postgres"
)

func init() {
	// sqlxはmodernc.org/sqliteのドライバ名を知らないため、"?"プレースホルダとして登録する
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// PoolConfig はコネクションプールの設定。
type PoolConfig struct {
	// MaxOpenConns は同時に開くコネクションの最大数。0の場合は無制限。
	MaxOpenConns int
	// MaxIdleConns はアイドル状態で保持するコネクションの最大数。
	MaxIdleConns int
	// ConnMaxLifetime はコネクションを再利用できる最大時間。
	ConnMaxLifetime time.Duration
}

// Open は指定ドライバでデータベースに接続し、疎通を確認する。
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("未対応のデータベースドライバです: %s", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if driver == DriverSQLite && isMemoryDSN(dsn) {
		// インメモリDBはコネクションごとに別のDBになるため1本に固定し、閉じずに保持する
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
		pool.ConnMaxLifetime = 0
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	return db, nil
}

// isMemoryDSN はSQLiteのDSNがインメモリDBを指すかを判定する。
func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || len(dsn) >= 13 && dsn[:13] == "file::memory:"
}
