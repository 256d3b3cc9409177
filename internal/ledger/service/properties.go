package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/jimmy-lan/habits-restapi/internal/audit/domain"
	"github.com/jimmy-lan/habits-restapi/internal/events"
	ledgerdomain "github.com/jimmy-lan/habits-restapi/internal/ledger/domain"
	propertydomain "github.com/jimmy-lan/habits-restapi/internal/property/domain"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	transactiondomain "github.com/jimmy-lan/habits-restapi/internal/transaction/domain"
	"github.com/jimmy-lan/habits-restapi/pkg/db/option"
	"github.com/jimmy-lan/habits-restapi/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateProperty(ctx context.Context, req ledgerdomain.CreatePropertyRequest) (property *propertydomain.Property, err error) {
	ctx, span, startedAt := s.start(ctx, "CreateProperty", req.UserID)
	defer func() { s.finish("create_property", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ledgerdomain.ErrInvalidName
	}
	description := normalizeDescription(req.Description)
	stock := normalizeStock(req.AmountInStock)

	err = s.runTx(ctx, "create_property", func(ctx context.Context, tx *gorm.DB) error {
		existing, err := s.properties.FindLiveByName(ctx, tx, userID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledgerdomain.ErrDuplicateProperty
		}

		now := s.clock.Now()
		property = &propertydomain.Property{
			ID:            s.genID.Generate(),
			UserID:        userID,
			Name:          name,
			Description:   description,
			AmountInStock: stock,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.properties.Insert(ctx, tx, property); err != nil {
			return err
		}
		if err := s.adjustQuota(ctx, tx, userID, func(q *quotadomain.Quota) {
			q.NumProperties++
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventPropertyCreated,
			Payload: events.PropertyPayload{
				PropertyID: property.ID.String(),
			}.ToMap(),
			DedupeKey: events.EventPropertyCreated + ":" + property.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("property created",
		zap.String("property_id", property.ID.String()),
		zap.String("name", property.Name),
	)
	return property, nil
}

func (s *Service) UpdateProperty(ctx context.Context, req ledgerdomain.UpdatePropertyRequest) (resp *ledgerdomain.UpdatePropertyResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "UpdateProperty", req.UserID)
	defer func() { s.finish("update_property", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	propertyID, err := ledgerdomain.ParseID(req.PropertyID)
	if err != nil {
		return nil, err
	}
	if req.Name == nil && req.Description == nil && req.Amount == nil && req.AmountInStock == nil {
		return nil, ledgerdomain.ErrNoFieldsToUpdate
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, ledgerdomain.ErrInvalidName
	}

	var (
		updated *propertydomain.Property
		before  propertydomain.Property
	)
	err = s.runTx(ctx, "update_property", func(ctx context.Context, tx *gorm.DB) error {
		property, err := s.lockPropertyID(ctx, tx, userID, propertyID)
		if err != nil {
			return err
		}
		before = *property

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == property.Name {
				return ledgerdomain.ErrValueUnchanged
			}
			other, err := s.properties.FindLiveByName(ctx, tx, userID, name)
			if err != nil {
				return err
			}
			if other != nil && other.ID != property.ID {
				return ledgerdomain.ErrDuplicateProperty
			}
			property.Name = name
		}
		if req.Description != nil {
			description := normalizeDescription(req.Description)
			if equalStringPtr(description, property.Description) {
				return ledgerdomain.ErrValueUnchanged
			}
			property.Description = description
		}
		if req.AmountInStock != nil {
			stock := normalizeStock(req.AmountInStock)
			if equalInt64Ptr(stock, property.AmountInStock) {
				return ledgerdomain.ErrValueUnchanged
			}
			property.AmountInStock = stock
		}

		// Setting the amount directly is recorded as an adjustment
		// transaction so the ledger keeps summing to the balance.
		if req.Amount != nil {
			if *req.Amount == property.Amount {
				return ledgerdomain.ErrValueUnchanged
			}
			now := s.clock.Now()
			adjustment := &transactiondomain.Transaction{
				ID:           s.genID.Generate(),
				UserID:       userID,
				PropertyID:   property.ID,
				Title:        transactiondomain.AdjustmentTitle,
				PointsChange: *req.Amount - property.Amount,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.transactions.Insert(ctx, tx, adjustment); err != nil {
				return err
			}
			if err := s.adjustQuota(ctx, tx, userID, func(q *quotadomain.Quota) {
				q.NumTransactions++
			}); err != nil {
				return err
			}
			property.Amount = *req.Amount
		}

		property.UpdatedAt = s.clock.Now()
		if err := s.properties.Update(ctx, tx, property); err != nil {
			return err
		}
		updated = property

		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventPropertyUpdated,
			Payload: events.PropertyPayload{
				PropertyID: property.ID.String(),
			}.ToMap(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProperty(userID, updated.ID)
	s.log.Info("property updated", zap.String("property_id", updated.ID.String()))
	return &ledgerdomain.UpdatePropertyResponse{
		Property:    *updated,
		UpdatedFrom: before,
	}, nil
}

func (s *Service) DeleteProperty(ctx context.Context, req ledgerdomain.DeletePropertyRequest) (resp *ledgerdomain.DeletePropertyResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "DeleteProperty", req.UserID)
	defer func() { s.finish("delete_property", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	propertyID, err := ledgerdomain.ParseID(req.PropertyID)
	if err != nil {
		return nil, err
	}

	var (
		deleted  *propertydomain.Property
		affected int64
	)
	err = s.runTx(ctx, "delete_property", func(ctx context.Context, tx *gorm.DB) error {
		property, err := s.lockPropertyID(ctx, tx, userID, propertyID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		affected, err = s.transactions.SoftDeleteByProperty(ctx, tx, userID, property.ID, now)
		if err != nil {
			return err
		}

		property.IsDeleted = true
		property.UpdatedAt = now
		if err := s.properties.Update(ctx, tx, property); err != nil {
			return err
		}
		if err := s.adjustQuota(ctx, tx, userID, func(q *quotadomain.Quota) {
			q.NumProperties--
			q.NumDeletedProperties++
			q.NumTransactions -= affected
			q.NumDeletedTransactions += affected
		}); err != nil {
			return err
		}
		deleted = property

		targetID := property.ID.String()
		if err := s.recordAudit(ctx, tx, auditdomain.Entry{
			ActorType:  auditdomain.ActorTypeUser,
			UserID:     &userID,
			Action:     "property.delete",
			TargetType: "property",
			TargetID:   &targetID,
			Metadata: map[string]any{
				"name":                      property.Name,
				"num_transactions_affected": affected,
			},
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventPropertyDeleted,
			Payload: events.PropertyPayload{
				PropertyID:              property.ID.String(),
				NumTransactionsAffected: affected,
			}.ToMap(),
			DedupeKey: events.EventPropertyDeleted + ":" + property.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProperty(userID, deleted.ID)
	s.log.Info("property deleted",
		zap.String("property_id", deleted.ID.String()),
		zap.Int64("transactions_affected", affected),
	)
	return &ledgerdomain.DeletePropertyResponse{
		Property:                *deleted,
		NumTransactionsAffected: affected,
	}, nil
}

func (s *Service) GetProperty(ctx context.Context, req ledgerdomain.GetPropertyRequest) (property *propertydomain.Property, err error) {
	ctx, span, startedAt := s.start(ctx, "GetProperty", req.UserID)
	defer func() { s.finish("get_property", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	propertyID, err := ledgerdomain.ParseID(req.PropertyID)
	if err != nil {
		return nil, err
	}

	key := cacheKey(userID, propertyID)
	if cached, ok := s.propCache.Get(key); ok {
		return &cached, nil
	}

	// Collapse concurrent misses for the same property into one query.
	// The flight is shared between callers, so it must not die with
	// whichever caller's context happens to run it.
	fetchCtx := context.WithoutCancel(ctx)
	result, err, _ := s.group.Do(key, func() (any, error) {
		found, err := s.properties.FindByID(fetchCtx, s.db, userID, propertyID)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, ledgerdomain.ErrPropertyNotFound
		}
		s.propCache.Set(key, *found, propertyCacheTTL)
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*propertydomain.Property), nil
}

func (s *Service) ListProperties(ctx context.Context, req ledgerdomain.ListPropertiesRequest) (resp ledgerdomain.ListPropertiesResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "ListProperties", req.UserID)
	defer func() { s.finish("list_properties", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return resp, err
	}

	items, err := s.properties.List(ctx, s.db, userID,
		option.WithSortBy(option.QuerySortBy{Desc: true}),
		option.ApplyPagination(req.Pagination),
	)
	if err != nil {
		return resp, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), propertyToken)
	if pageInfo.HasMore {
		items = items[:req.Size()]
	}
	resp.Properties = make([]propertydomain.Property, 0, len(items))
	for _, item := range items {
		resp.Properties = append(resp.Properties, *item)
	}
	resp.PageInfo = *pageInfo
	return resp, nil
}

func propertyToken(p *propertydomain.Property) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        p.ID.String(),
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func normalizeDescription(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeStock maps negative values to nil, which disables stock
// tracking.
func normalizeStock(raw *int64) *int64 {
	if raw == nil || *raw < 0 {
		return nil
	}
	value := *raw
	return &value
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
