// Package domain contains the per-user resource quota record. Each
// user has exactly one quota row holding four usage/limit counter
// pairs; it is created lazily and never deleted.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrQuotaExceeded is returned when a commit would push any usage
// counter over its limit.
var ErrQuotaExceeded = errors.New("quota_exceeded")

// Limits carries the counter limits stamped onto a quota record at
// creation time. Defaults come from configuration; raises happen out
// of band.
type Limits struct {
	MaxTransactions        int64
	MaxDeletedTransactions int64
	MaxProperties          int64
	MaxDeletedProperties   int64
}

// DefaultLimits mirror the limits granted to regular users.
func DefaultLimits() Limits {
	return Limits{
		MaxTransactions:        1000,
		MaxDeletedTransactions: 1000,
		MaxProperties:          100,
		MaxDeletedProperties:   100,
	}
}

// Quota tracks resource usage for one user. The deleted counters are
// not shown to users; they bound how much can be deleted between two
// runs of the reset worker.
type Quota struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"not null;uniqueIndex:ux_quotas_user" json:"user_id"`

	NumTransactions        int64 `gorm:"not null;default:0" json:"num_transactions"`
	NumDeletedTransactions int64 `gorm:"not null;default:0" json:"-"`
	NumProperties          int64 `gorm:"not null;default:0" json:"num_properties"`
	NumDeletedProperties   int64 `gorm:"not null;default:0" json:"-"`

	MaxTransactions        int64 `gorm:"not null" json:"max_transactions"`
	MaxDeletedTransactions int64 `gorm:"not null" json:"-"`
	MaxProperties          int64 `gorm:"not null" json:"max_properties"`
	MaxDeletedProperties   int64 `gorm:"not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Quota) TableName() string { return "quotas" }

// Exceeded reports the first counter over its limit, or "" when the
// record is within limits.
func (q *Quota) Exceeded() string {
	switch {
	case q.NumTransactions > q.MaxTransactions:
		return "transactions"
	case q.NumDeletedTransactions > q.MaxDeletedTransactions:
		return "deleted_transactions"
	case q.NumProperties > q.MaxProperties:
		return "properties"
	case q.NumDeletedProperties > q.MaxDeletedProperties:
		return "deleted_properties"
	}
	return ""
}
