package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	transactiondomain "github.com/jimmy-lan/habits-restapi/internal/transaction/domain"
	"github.com/jimmy-lan/habits-restapi/pkg/db/option"
	"gorm.io/gorm"
)

type gormRepository struct{}

// Provide constructs the gorm-backed transaction repository.
func Provide() transactiondomain.Repository {
	return &gormRepository{}
}

func (r *gormRepository) Insert(ctx context.Context, db *gorm.DB, transaction *transactiondomain.Transaction) error {
	return db.WithContext(ctx).Create(transaction).Error
}

func (r *gormRepository) Update(ctx context.Context, db *gorm.DB, transaction *transactiondomain.Transaction) error {
	return db.WithContext(ctx).Save(transaction).Error
}

func (r *gormRepository) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*transactiondomain.Transaction, error) {
	var transaction transactiondomain.Transaction
	err := db.WithContext(ctx).
		Where("user_id = ? AND id = ? AND is_deleted = ?", userID, id, false).
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *gormRepository) SoftDeleteByProperty(ctx context.Context, db *gorm.DB, userID, propertyID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&transactiondomain.Transaction{}).
		Where("user_id = ? AND property_id = ? AND is_deleted = ?", userID, propertyID, false).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *gormRepository) SumLiveByProperty(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&transactiondomain.Transaction{}).
		Where("property_id = ? AND is_deleted = ?", propertyID, false).
		Select("COALESCE(SUM(points_change), 0)").
		Scan(&total).Error
	return total, err
}

func (r *gormRepository) List(ctx context.Context, db *gorm.DB, userID, propertyID snowflake.ID, opts ...option.Option) ([]*transactiondomain.Transaction, error) {
	query := db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false)
	if propertyID != 0 {
		query = query.Where("property_id = ?", propertyID)
	}
	query = option.Apply(query, opts...)

	var transactions []*transactiondomain.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
