package notification

import (
	"embed"
	"fmt"
	"path"

	"github.com/jmoiron/sqlx"

	"github.com/nao1215/ichub/pkg/database"
	"github.com/nao1215/ichub/pkg/migration"
)

// migrationsFS はドライバごとのマイグレーションファイル。
//
//go:embed migrations
var migrationsFS embed.FS

// InitSchema はドライバに対応するマイグレーションを適用する。
func InitSchema(db *sqlx.DB, driver string) error {
	switch driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return fmt.Errorf("未対応のデータベースドライバです: %s", driver)
	}
	if err := migration.Run(db, migrationsFS, path.Join("migrations", driver)); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
