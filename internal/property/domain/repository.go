package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/jimmy-lan/habits-restapi/pkg/db/option"
	"gorm.io/gorm"
)

// Repository persists properties. Every method takes the database
// handle explicitly so the caller decides the transaction boundary.
// Find methods return (nil, nil) when no live row matches.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, property *Property) error
	Update(ctx context.Context, db *gorm.DB, property *Property) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Property, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Property, error)
	FindOldestForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Property, error)
	FindLiveByName(ctx context.Context, db *gorm.DB, userID snowflake.ID, name string) (*Property, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.Option) ([]*Property, error)
}
