// Package service implements the reconciliation engine. Every write
// runs as one database transaction that touches the property record,
// the transaction ledger and the user's quota together.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/jimmy-lan/habits-restapi/internal/audit/domain"
	"github.com/jimmy-lan/habits-restapi/internal/cache"
	"github.com/jimmy-lan/habits-restapi/internal/clock"
	"github.com/jimmy-lan/habits-restapi/internal/events"
	ledgerdomain "github.com/jimmy-lan/habits-restapi/internal/ledger/domain"
	"github.com/jimmy-lan/habits-restapi/internal/observability/metrics"
	"github.com/jimmy-lan/habits-restapi/internal/observability/tracing"
	propertydomain "github.com/jimmy-lan/habits-restapi/internal/property/domain"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	transactiondomain "github.com/jimmy-lan/habits-restapi/internal/transaction/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const propertyCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Properties   propertydomain.Repository
	Transactions transactiondomain.Repository
	Quotas       quotadomain.Repository
	Outbox       *events.Outbox
	Audit        auditdomain.Service `optional:"true"`
	Limits       quotadomain.Limits
	Config       Config `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	properties   propertydomain.Repository
	transactions transactiondomain.Repository
	quotas       quotadomain.Repository
	outbox       *events.Outbox
	audit        auditdomain.Service
	limits       quotadomain.Limits
	cfg          Config
	tracer       trace.Tracer

	propCache cache.Cache[string, propertydomain.Property]
	group     singleflight.Group
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		properties:   p.Properties,
		transactions: p.Transactions,
		quotas:       p.Quotas,
		outbox:       p.Outbox,
		audit:        p.Audit,
		limits:       p.Limits,
		cfg:          p.Config.withDefaults(),
		tracer:       otel.Tracer("ledger.service"),
		propCache:    cache.NewTTLCache[string, propertydomain.Property](),
	}
}

func parseUser(raw string) (snowflake.ID, error) {
	id, err := ledgerdomain.ParseID(raw)
	if err != nil {
		return 0, ledgerdomain.ErrInvalidUser
	}
	return id, nil
}

// lockProperty resolves and row-locks the live property targeted by a
// posting. An empty raw id falls back to the user's oldest property.
func (s *Service) lockProperty(ctx context.Context, tx *gorm.DB, userID snowflake.ID, raw string) (*propertydomain.Property, error) {
	if strings.TrimSpace(raw) == "" {
		property, err := s.properties.FindOldestForUpdate(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		if property == nil {
			return nil, ledgerdomain.ErrPropertyNotFound
		}
		return property, nil
	}

	id, err := ledgerdomain.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return s.lockPropertyID(ctx, tx, userID, id)
}

func (s *Service) lockPropertyID(ctx context.Context, tx *gorm.DB, userID, id snowflake.ID) (*propertydomain.Property, error) {
	property, err := s.properties.FindByIDForUpdate(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, ledgerdomain.ErrPropertyNotFound
	}
	return property, nil
}

// applyDelta posts a signed points change onto a property. Tracked
// stock moves opposite to the delta and may never go negative.
func applyDelta(property *propertydomain.Property, delta int64) error {
	property.Amount += delta
	if property.AmountInStock != nil {
		remaining := *property.AmountInStock - delta
		if remaining < 0 {
			return ledgerdomain.ErrInsufficientStock
		}
		property.AmountInStock = &remaining
	}
	return nil
}

// adjustQuota loads the caller's quota row under lock, applies the
// counter changes and rejects the whole transaction when any counter
// would exceed its limit.
func (s *Service) adjustQuota(ctx context.Context, tx *gorm.DB, userID snowflake.ID, mutate func(*quotadomain.Quota)) error {
	quota, err := s.quotas.FindOrCreate(ctx, tx, userID, s.limits, s.clock.Now())
	if err != nil {
		return err
	}
	mutate(quota)
	if counter := quota.Exceeded(); counter != "" {
		metrics.Engine().IncQuotaDenial(counter)
		return fmt.Errorf("%w: %s", quotadomain.ErrQuotaExceeded, counter)
	}
	quota.UpdatedAt = s.clock.Now()
	return s.quotas.Update(ctx, tx, quota)
}

func (s *Service) recordAudit(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, entry)
}

func cacheKey(userID, propertyID snowflake.ID) string {
	return userID.String() + "/" + propertyID.String()
}

func (s *Service) invalidateProperty(userID, propertyID snowflake.ID) {
	s.propCache.Delete(cacheKey(userID, propertyID))
}

func (s *Service) start(ctx context.Context, operation, userID string) (context.Context, trace.Span, time.Time) {
	attrs := tracing.SafeAttributes(attribute.String("user_id", userID))
	ctx, span := s.tracer.Start(ctx, "ledger."+operation, trace.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (s *Service) finish(operation string, span trace.Span, startedAt time.Time, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	metrics.Engine().ObserveOperation(operation, resultLabel(err), time.Since(startedAt))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isDomainError(err):
		return "rejected"
	default:
		return "error"
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ledgerdomain.ErrInvalidUser,
		ledgerdomain.ErrInvalidID,
		ledgerdomain.ErrInvalidName,
		ledgerdomain.ErrPropertyNotFound,
		ledgerdomain.ErrTransactionNotFound,
		ledgerdomain.ErrZeroPointsChange,
		ledgerdomain.ErrNoFieldsToUpdate,
		ledgerdomain.ErrValueUnchanged,
		ledgerdomain.ErrDuplicateProperty,
		ledgerdomain.ErrInsufficientStock,
		quotadomain.ErrQuotaExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
