package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	notificationdb "github.com/nao1215/ichub/internal/notification/db"
)

// pgUniqueViolation はPostgreSQLの一意制約違反コード。
const pgUniqueViolation = "23505"

// Repository は通知の永続化を担う。
// 呼び出しごとにトランザクションを開始し、処理が終わると必ず解放する。
type Repository struct {
	db *sqlx.DB
}

// NewRepository は新しいリポジトリを生成する。
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Session はトランザクション内でfnを実行する。
// fnがエラーを返した場合はロールバックし、そうでなければコミットする。
func (r *Repository) Session(ctx context.Context, fn func(q *notificationdb.Queries) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(notificationdb.New(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// isUniqueViolation は一意制約違反のエラーかどうかを判定する。
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}
