package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Entry describes one audit record to append.
type Entry struct {
	ActorType  ActorType
	UserID     *snowflake.ID
	Action     string
	TargetType string
	TargetID   *string
	Metadata   map[string]any
}

// Service appends audit records. Record writes through tx when one is
// supplied so the entry commits atomically with the audited change.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}
