package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
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

func (s *Service) CreateTransaction(ctx context.Context, req ledgerdomain.CreateTransactionRequest) (resp *ledgerdomain.CreateTransactionResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "CreateTransaction", req.UserID)
	defer func() { s.finish("create_transaction", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	if req.PointsChange == 0 {
		return nil, ledgerdomain.ErrZeroPointsChange
	}
	title := transactiondomain.DefaultTitle
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		title = strings.TrimSpace(*req.Title)
	}

	var (
		created  *transactiondomain.Transaction
		property *propertydomain.Property
	)
	err = s.runTx(ctx, "create_transaction", func(ctx context.Context, tx *gorm.DB) error {
		property, err = s.lockProperty(ctx, tx, userID, req.PropertyID)
		if err != nil {
			return err
		}
		if err := applyDelta(property, req.PointsChange); err != nil {
			return err
		}

		now := s.clock.Now()
		created = &transactiondomain.Transaction{
			ID:           s.genID.Generate(),
			UserID:       userID,
			PropertyID:   property.ID,
			Title:        title,
			PointsChange: req.PointsChange,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.transactions.Insert(ctx, tx, created); err != nil {
			return err
		}
		if err := s.properties.Update(ctx, tx, property); err != nil {
			return err
		}
		if err := s.adjustQuota(ctx, tx, userID, func(q *quotadomain.Quota) {
			q.NumTransactions++
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventTransactionCreated,
			Payload: events.TransactionPayload{
				TransactionID: created.ID.String(),
				PropertyID:    property.ID.String(),
				PointsChange:  created.PointsChange,
				Amount:        property.Amount,
			}.ToMap(),
			DedupeKey: events.EventTransactionCreated + ":" + created.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProperty(userID, property.ID)
	s.log.Info("transaction created",
		zap.String("transaction_id", created.ID.String()),
		zap.String("property_id", property.ID.String()),
		zap.Int64("points_change", created.PointsChange),
	)
	return &ledgerdomain.CreateTransactionResponse{
		Transaction: *created,
		Amount:      property.Amount,
	}, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, req ledgerdomain.UpdateTransactionRequest) (resp *ledgerdomain.UpdateTransactionResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "UpdateTransaction", req.UserID)
	defer func() { s.finish("update_transaction", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	transactionID, err := ledgerdomain.ParseID(req.TransactionID)
	if err != nil {
		return nil, err
	}
	if req.Title == nil && req.PointsChange == nil && req.PropertyID == nil {
		return nil, ledgerdomain.ErrNoFieldsToUpdate
	}
	if req.PointsChange != nil && *req.PointsChange == 0 {
		return nil, ledgerdomain.ErrZeroPointsChange
	}
	var targetPropertyID snowflake.ID
	if req.PropertyID != nil {
		targetPropertyID, err = ledgerdomain.ParseID(*req.PropertyID)
		if err != nil {
			return nil, err
		}
	}

	var (
		updated  *transactiondomain.Transaction
		before   transactiondomain.Transaction
		affected []snowflake.ID
	)
	err = s.runTx(ctx, "update_transaction", func(ctx context.Context, tx *gorm.DB) error {
		affected = affected[:0]
		transaction, err := s.transactions.FindByID(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if transaction == nil {
			return ledgerdomain.ErrTransactionNotFound
		}
		before = *transaction

		// Reject accidental double submissions: a supplied field whose
		// value already matches the stored one means the amendment was
		// applied before.
		if req.Title != nil && strings.TrimSpace(*req.Title) == transaction.Title {
			return ledgerdomain.ErrValueUnchanged
		}
		if req.PointsChange != nil && *req.PointsChange == transaction.PointsChange {
			return ledgerdomain.ErrValueUnchanged
		}
		if req.PropertyID != nil && targetPropertyID == transaction.PropertyID {
			return ledgerdomain.ErrValueUnchanged
		}

		newPoints := transaction.PointsChange
		if req.PointsChange != nil {
			newPoints = *req.PointsChange
		}

		if req.PropertyID != nil {
			// Repoint: reverse the delta on the old property, then post
			// the (possibly amended) delta on the new one.
			oldProperty, err := s.lockPropertyID(ctx, tx, userID, transaction.PropertyID)
			if err != nil {
				return err
			}
			if err := applyDelta(oldProperty, -transaction.PointsChange); err != nil {
				return err
			}
			newProperty, err := s.lockPropertyID(ctx, tx, userID, targetPropertyID)
			if err != nil {
				return err
			}
			if err := applyDelta(newProperty, newPoints); err != nil {
				return err
			}
			if err := s.properties.Update(ctx, tx, oldProperty); err != nil {
				return err
			}
			if err := s.properties.Update(ctx, tx, newProperty); err != nil {
				return err
			}
			transaction.PropertyID = targetPropertyID
			affected = append(affected, oldProperty.ID, newProperty.ID)
		} else if req.PointsChange != nil {
			property, err := s.lockPropertyID(ctx, tx, userID, transaction.PropertyID)
			if err != nil {
				return err
			}
			if err := applyDelta(property, newPoints-transaction.PointsChange); err != nil {
				return err
			}
			if err := s.properties.Update(ctx, tx, property); err != nil {
				return err
			}
			affected = append(affected, property.ID)
		}

		if req.Title != nil {
			transaction.Title = strings.TrimSpace(*req.Title)
		}
		transaction.PointsChange = newPoints
		transaction.UpdatedAt = s.clock.Now()
		if err := s.transactions.Update(ctx, tx, transaction); err != nil {
			return err
		}
		updated = transaction

		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventTransactionUpdated,
			Payload: events.TransactionPayload{
				TransactionID: transaction.ID.String(),
				PropertyID:    transaction.PropertyID.String(),
				PointsChange:  transaction.PointsChange,
			}.ToMap(),
		})
	})
	if err != nil {
		return nil, err
	}

	for _, id := range affected {
		s.invalidateProperty(userID, id)
	}
	s.log.Info("transaction updated",
		zap.String("transaction_id", updated.ID.String()),
		zap.String("property_id", updated.PropertyID.String()),
	)
	return &ledgerdomain.UpdateTransactionResponse{
		Transaction: *updated,
		UpdatedFrom: before,
	}, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, req ledgerdomain.DeleteTransactionRequest) (resp *ledgerdomain.DeleteTransactionResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "DeleteTransaction", req.UserID)
	defer func() { s.finish("delete_transaction", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return nil, err
	}
	transactionID, err := ledgerdomain.ParseID(req.TransactionID)
	if err != nil {
		return nil, err
	}

	var (
		deleted  *transactiondomain.Transaction
		property *propertydomain.Property
	)
	err = s.runTx(ctx, "delete_transaction", func(ctx context.Context, tx *gorm.DB) error {
		transaction, err := s.transactions.FindByID(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if transaction == nil {
			// Covers the already-deleted case too; deletion is terminal.
			return ledgerdomain.ErrTransactionNotFound
		}

		property, err = s.lockPropertyID(ctx, tx, userID, transaction.PropertyID)
		if err != nil {
			return err
		}
		if err := applyDelta(property, -transaction.PointsChange); err != nil {
			return err
		}

		transaction.IsDeleted = true
		transaction.UpdatedAt = s.clock.Now()
		if err := s.transactions.Update(ctx, tx, transaction); err != nil {
			return err
		}
		if err := s.properties.Update(ctx, tx, property); err != nil {
			return err
		}
		if err := s.adjustQuota(ctx, tx, userID, func(q *quotadomain.Quota) {
			q.NumTransactions--
			q.NumDeletedTransactions++
		}); err != nil {
			return err
		}
		deleted = transaction

		targetID := transaction.ID.String()
		if err := s.recordAudit(ctx, tx, auditdomain.Entry{
			ActorType:  auditdomain.ActorTypeUser,
			UserID:     &userID,
			Action:     "transaction.delete",
			TargetType: "transaction",
			TargetID:   &targetID,
			Metadata: map[string]any{
				"property_id":   property.ID.String(),
				"points_change": transaction.PointsChange,
			},
		}); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			UserID: userID,
			Type:   events.EventTransactionDeleted,
			Payload: events.TransactionPayload{
				TransactionID: transaction.ID.String(),
				PropertyID:    property.ID.String(),
				PointsChange:  transaction.PointsChange,
				Amount:        property.Amount,
			}.ToMap(),
			DedupeKey: events.EventTransactionDeleted + ":" + transaction.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProperty(userID, property.ID)
	s.log.Info("transaction deleted",
		zap.String("transaction_id", deleted.ID.String()),
		zap.String("property_id", property.ID.String()),
	)
	return &ledgerdomain.DeleteTransactionResponse{
		Transaction: *deleted,
		Amount:      property.Amount,
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (resp ledgerdomain.ListTransactionsResponse, err error) {
	ctx, span, startedAt := s.start(ctx, "ListTransactions", req.UserID)
	defer func() { s.finish("list_transactions", span, startedAt, err) }()

	userID, err := parseUser(req.UserID)
	if err != nil {
		return resp, err
	}
	var propertyID snowflake.ID
	if strings.TrimSpace(req.PropertyID) != "" {
		propertyID, err = ledgerdomain.ParseID(req.PropertyID)
		if err != nil {
			return resp, err
		}
	}

	items, err := s.transactions.List(ctx, s.db, userID, propertyID,
		option.WithSortBy(option.QuerySortBy{Desc: true}),
		option.ApplyPagination(req.Pagination),
	)
	if err != nil {
		return resp, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, req.Size(), transactionToken)
	if pageInfo.HasMore {
		items = items[:req.Size()]
	}
	resp.Transactions = make([]transactiondomain.Transaction, 0, len(items))
	for _, item := range items {
		resp.Transactions = append(resp.Transactions, *item)
	}
	resp.PageInfo = *pageInfo
	return resp, nil
}

func transactionToken(t *transactiondomain.Transaction) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        t.ID.String(),
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}
