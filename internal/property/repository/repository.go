package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	propertydomain "github.com/jimmy-lan/habits-restapi/internal/property/domain"
	"github.com/jimmy-lan/habits-restapi/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormRepository struct{}

// Provide constructs the gorm-backed property repository.
func Provide() propertydomain.Repository {
	return &gormRepository{}
}

func (r *gormRepository) Insert(ctx context.Context, db *gorm.DB, property *propertydomain.Property) error {
	return db.WithContext(ctx).Create(property).Error
}

func (r *gormRepository) Update(ctx context.Context, db *gorm.DB, property *propertydomain.Property) error {
	return db.WithContext(ctx).Save(property).Error
}

func (r *gormRepository) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*propertydomain.Property, error) {
	return r.findOne(db.WithContext(ctx), userID, id)
}

func (r *gormRepository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*propertydomain.Property, error) {
	return r.findOne(forUpdate(db.WithContext(ctx)), userID, id)
}

// FindOldestForUpdate returns the user's first live property. Callers
// use it when a posting does not name a property explicitly.
func (r *gormRepository) FindOldestForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*propertydomain.Property, error) {
	var property propertydomain.Property
	err := forUpdate(db.WithContext(ctx)).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at ASC").
		Order("id ASC").
		First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *gormRepository) FindLiveByName(ctx context.Context, db *gorm.DB, userID snowflake.ID, name string) (*propertydomain.Property, error) {
	var property propertydomain.Property
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND is_deleted = ?", userID, name, false).
		First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *gormRepository) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.Option) ([]*propertydomain.Property, error) {
	query := db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false)
	query = option.Apply(query, opts...)

	var properties []*propertydomain.Property
	if err := query.Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}

func (r *gormRepository) findOne(db *gorm.DB, userID, id snowflake.ID) (*propertydomain.Property, error) {
	var property propertydomain.Property
	err := db.
		Where("user_id = ? AND id = ? AND is_deleted = ?", userID, id, false).
		First(&property).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// forUpdate adds a row lock on postgres. SQLite rejects FOR UPDATE and
// serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
