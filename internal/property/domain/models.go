// Package domain contains the persistence model for user properties:
// the per-(user, name) balance records that transactions post against.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Property is a user-defined balance record. `amount` always equals
// the sum of points_change over the live transactions referencing it.
type Property struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"not null;index" json:"user_id"`
	Name   string       `gorm:"type:text;not null" json:"name"`

	Description *string `gorm:"type:text" json:"description,omitempty"`

	Amount int64 `gorm:"not null;default:0" json:"amount"`

	// AmountInStock counts how much of this property remains available
	// to obtain. Nil means stock is not tracked. When tracked it is
	// reduced by every positive posting and may never go negative.
	AmountInStock *int64 `json:"amount_in_stock,omitempty"`

	IsDeleted bool `gorm:"not null;default:false;index" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Property) TableName() string { return "properties" }
