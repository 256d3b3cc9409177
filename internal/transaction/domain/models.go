// Package domain contains the persistence model for the transaction
// ledger: signed point deltas posted against a property.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DefaultTitle names transactions created without a title.
const DefaultTitle = "Untitled"

// AdjustmentTitle names the transaction recorded when a property
// amount is set directly instead of posted to.
const AdjustmentTitle = "Adjustment"

// Transaction is one signed change in points. A positive points_change
// adds points, a negative one deducts them; zero is never stored.
type Transaction struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID `gorm:"not null;index" json:"-"`
	PropertyID snowflake.ID `gorm:"not null;index" json:"property_id"`

	Title        string `gorm:"type:text;not null" json:"title"`
	PointsChange int64  `gorm:"not null" json:"points_change"`

	IsDeleted bool `gorm:"not null;default:false;index" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
