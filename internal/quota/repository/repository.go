package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct {
	genID *snowflake.Node
}

// Provide constructs the gorm-backed quota repository.
func Provide(genID *snowflake.Node) quotadomain.Repository {
	return &gormRepository{genID: genID}
}

func (r *gormRepository) FindOrCreate(ctx context.Context, db *gorm.DB, userID snowflake.ID, limits quotadomain.Limits, now time.Time) (*quotadomain.Quota, error) {
	var quota quotadomain.Quota
	err := forUpdate(db.WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&quota).Error
	if err == nil {
		return &quota, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	quota = quotadomain.Quota{
		ID:                     r.genID.Generate(),
		UserID:                 userID,
		MaxTransactions:        limits.MaxTransactions,
		MaxDeletedTransactions: limits.MaxDeletedTransactions,
		MaxProperties:          limits.MaxProperties,
		MaxDeletedProperties:   limits.MaxDeletedProperties,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := db.WithContext(ctx).Create(&quota).Error; err != nil {
		return nil, err
	}
	return &quota, nil
}

func (r *gormRepository) Update(ctx context.Context, db *gorm.DB, quota *quotadomain.Quota) error {
	return db.WithContext(ctx).Save(quota).Error
}

func (r *gormRepository) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*quotadomain.Quota, error) {
	var quota quotadomain.Quota
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&quota).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

func (r *gormRepository) ResetDeletedCounters(ctx context.Context, db *gorm.DB, batchSize int, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotas
		 SET num_deleted_transactions = 0,
		     num_deleted_properties = 0,
		     updated_at = ?
		 WHERE id IN (
		   SELECT id FROM quotas
		   WHERE num_deleted_transactions > 0 OR num_deleted_properties > 0
		   ORDER BY id
		   LIMIT ?
		 )`,
		now,
		batchSize,
	)
	return result.RowsAffected, result.Error
}

// forUpdate adds a row lock on postgres. SQLite rejects FOR UPDATE and
// serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
