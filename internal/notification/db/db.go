// Package db は notifications テーブルに対するクエリを提供する。
package db

import (
	"github.com/jmoiron/sqlx"
)

// DBTX は *sqlx.DB と *sqlx.Tx の共通インターフェース。
type DBTX interface {
	sqlx.ExtContext
}

// New はクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries は notifications テーブルのクエリ群。
type Queries struct {
	db DBTX
}
