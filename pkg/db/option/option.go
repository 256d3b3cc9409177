// Package option provides composable gorm query modifiers used by the
// repositories.
package option

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jimmy-lan/habits-restapi/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option mutates a gorm query before it executes.
type Option func(*gorm.DB) *gorm.DB

// Apply folds options over a query.
func Apply(db *gorm.DB, opts ...Option) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt(db)
		}
	}
	return db
}

// ApplyPagination applies the cursor filter and fetches one row beyond
// the page size so callers can detect further pages. A malformed token
// is treated as the first page.
func ApplyPagination(p pagination.Pagination) Option {
	return func(db *gorm.DB) *gorm.DB {
		if cursor, err := pagination.DecodeCursor(p.PageToken); err == nil {
			ts, terr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			id, ierr := snowflake.ParseString(cursor.ID)
			if terr == nil && ierr == nil {
				db = db.Where(
					"created_at < ? OR (created_at = ? AND id < ?)",
					ts, ts, int64(id),
				)
			}
		}
		return db.Limit(p.Size() + 1)
	}
}

// QuerySortBy restricts caller-supplied sort columns to an allow list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders the query by the requested column with a stable id
// tiebreak. Disallowed or empty fields fall back to created_at.
func WithSortBy(s QuerySortBy) Option {
	return func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(s.Field)
		if field == "" || (s.Allow != nil && !s.Allow[field]) {
			field = "created_at"
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		return db.Order(field + " " + dir).Order("id " + dir)
	}
}
