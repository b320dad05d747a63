// Package repo holds what every gorm-backed repository embeds.
package repo

import (
	"context"

	"gorm.io/gorm"
)

type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB is the repository's own connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	return b.Conn(ctx, nil)
}

// Conn joins the caller's transaction when tx is set, so reads and writes
// land in the same unit of work.
func (b Base) Conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	conn := b.db
	if tx != nil {
		conn = tx
	}
	if ctx != nil {
		conn = conn.WithContext(ctx)
	}
	return conn
}

// First loads one T matching the query, passing gorm.ErrRecordNotFound
// through for callers to map.
func First[T any](q *gorm.DB, conds ...any) (*T, error) {
	out := new(T)
	if err := q.First(out, conds...).Error; err != nil {
		return nil, err
	}
	return out, nil
}
