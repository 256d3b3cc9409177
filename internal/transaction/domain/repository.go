package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jimmy-lan/habits-restapi/pkg/db/option"
	"gorm.io/gorm"
)

// Repository persists transactions. Find methods only see live rows
// and return (nil, nil) when nothing matches.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transaction *Transaction) error
	Update(ctx context.Context, db *gorm.DB, transaction *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Transaction, error)
	// SoftDeleteByProperty flags every live transaction of a property
	// as deleted and reports how many rows were affected.
	SoftDeleteByProperty(ctx context.Context, db *gorm.DB, userID, propertyID snowflake.ID, now time.Time) (int64, error)
	// SumLiveByProperty recomputes a property balance from its ledger.
	SumLiveByProperty(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, userID, propertyID snowflake.ID, opts ...option.Option) ([]*Transaction, error)
}
