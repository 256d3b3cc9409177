package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists quota records.
type Repository interface {
	// FindOrCreate returns the user's quota row, creating it with the
	// supplied limits when absent. The row is locked for the duration
	// of the surrounding transaction.
	FindOrCreate(ctx context.Context, db *gorm.DB, userID snowflake.ID, limits Limits, now time.Time) (*Quota, error)
	Update(ctx context.Context, db *gorm.DB, quota *Quota) error
	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Quota, error)
	// ResetDeletedCounters zeroes the deleted-item counters for up to
	// batchSize users and reports how many rows changed.
	ResetDeletedCounters(ctx context.Context, db *gorm.DB, batchSize int, now time.Time) (int64, error)
}
