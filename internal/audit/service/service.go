package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/jimmy-lan/habits-restapi/internal/audit/domain"
	"github.com/jimmy-lan/habits-restapi/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	if entry.Action == "" || entry.TargetType == "" {
		return errors.New("invalid_audit_entry")
	}
	actor := entry.ActorType
	if actor == "" {
		actor = auditdomain.ActorTypeSystem
	}

	record := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		UserID:     entry.UserID,
		ActorType:  string(actor),
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  s.clock.Now(),
	}
	for key, value := range entry.Metadata {
		record.Metadata[key] = value
	}

	db := tx
	if db == nil {
		db = s.db
	}
	return s.repo.Insert(ctx, db, record)
}
