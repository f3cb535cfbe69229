package repository

import (
	"database/sql"
	"errors"
)

// ErrNotFound 行不存在
var ErrNotFound = errors.New("not found")

// DB 仓库层需要的最小执行接口，store.Store 与 *sql.DB 均满足
// （测试用 sqlmock 直接注入 *sql.DB）
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
