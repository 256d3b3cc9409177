package service

import (
	"context"
	"errors"
	"testing"

	ledgerdomain "github.com/jimmy-lan/habits-restapi/internal/ledger/domain"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	transactiondomain "github.com/jimmy-lan/habits-restapi/internal/transaction/domain"
	"github.com/jimmy-lan/habits-restapi/pkg/db/pagination"
)

func TestCreatePropertyNormalizesInput(t *testing.T) {
	svc, conn := newTestEngine(t, quotadomain.DefaultLimits())

	property, err := svc.CreateProperty(context.Background(), ledgerdomain.CreatePropertyRequest{
		UserID:        testUser,
		Name:          "  Reading  ",
		Description:   strPtr("   "),
		AmountInStock: int64Ptr(-1),
	})
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	if property.Name != "Reading" {
		t.Fatalf("expected trimmed name, got %q", property.Name)
	}
	if property.Description != nil {
		t.Fatalf("expected blank description to clear, got %v", *property.Description)
	}
	if property.AmountInStock != nil {
		t.Fatalf("expected negative stock to disable tracking, got %v", *property.AmountInStock)
	}
	if property.Amount != 0 {
		t.Fatalf("expected new property to start at 0, got %d", property.Amount)
	}

	quota := fetchQuota(t, conn)
	if quota == nil || quota.NumProperties != 1 {
		t.Fatalf("expected quota to count 1 property, got %+v", quota)
	}
}

func TestCreatePropertyRejectsBlankName(t *testing.T) {
	svc, _ := newTestEngine(t, quotadomain.DefaultLimits())

	_, err := svc.CreateProperty(context.Background(), ledgerdomain.CreatePropertyRequest{
		UserID: testUser,
		Name:   "   ",
	})
	if !errors.Is(err, ledgerdomain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestCreatePropertyDuplicateName(t *testing.T) {
	svc, _ := newTestEngine(t, quotadomain.DefaultLimits())
	property := mustCreateProperty(t, svc, "Reading")
	ctx := context.Background()

	_, err := svc.CreateProperty(ctx, ledgerdomain.CreatePropertyRequest{
		UserID: testUser,
		Name:   "Reading",
	})
	if !errors.Is(err, ledgerdomain.ErrDuplicateProperty) {
		t.Fatalf("expected ErrDuplicateProperty, got %v", err)
	}

	// The name frees up once the holder is soft deleted.
	if _, err := svc.DeleteProperty(ctx, ledgerdomain.DeletePropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	}); err != nil {
		t.Fatalf("delete property: %v", err)
	}
	if _, err := svc.CreateProperty(ctx, ledgerdomain.CreatePropertyRequest{
		UserID: testUser,
		Name:   "Reading",
	}); err != nil {
		t.Fatalf("expected name reuse after delete, got %v", err)
	}
}

func TestCreatePropertyQuotaExceeded(t *testing.T) {
	limits := quotadomain.DefaultLimits()
	limits.MaxProperties = 1
	svc, _ := newTestEngine(t, limits)
	mustCreateProperty(t, svc, "Reading")

	_, err := svc.CreateProperty(context.Background(), ledgerdomain.CreatePropertyRequest{
		UserID: testUser,
		Name:   "Running",
	})
	if !errors.Is(err, quotadomain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestUpdatePropertyRecordsAdjustment(t *testing.T) {
	svc, conn := newTestEngine(t, quotadomain.DefaultLimits())
	property := mustCreateProperty(t, svc, "Reading")
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, ledgerdomain.CreateTransactionRequest{
		UserID:       testUser,
		PropertyID:   property.ID.String(),
		PointsChange: 30,
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	updated, err := svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
		Amount:     int64Ptr(50),
	})
	if err != nil {
		t.Fatalf("update property: %v", err)
	}
	if updated.Property.Amount != 50 {
		t.Fatalf("expected amount 50, got %d", updated.Property.Amount)
	}
	if updated.UpdatedFrom.Amount != 30 {
		t.Fatalf("expected prior amount 30, got %d", updated.UpdatedFrom.Amount)
	}
	if sum := ledgerSum(t, conn, property.ID); sum != 50 {
		t.Fatalf("expected adjustment to keep ledger sum 50, got %d", sum)
	}

	var adjustments int64
	err = conn.Model(&transactiondomain.Transaction{}).
		Where("property_id = ? AND title = ? AND points_change = ?", property.ID, transactiondomain.AdjustmentTitle, int64(20)).
		Count(&adjustments).Error
	if err != nil {
		t.Fatalf("count adjustments: %v", err)
	}
	if adjustments != 1 {
		t.Fatalf("expected one adjustment transaction of +20, got %d", adjustments)
	}

	quota := fetchQuota(t, conn)
	if quota.NumTransactions != 2 {
		t.Fatalf("expected adjustment to count against quota, got %d", quota.NumTransactions)
	}
}

func TestUpdatePropertyFieldValidation(t *testing.T) {
	svc, _ := newTestEngine(t, quotadomain.DefaultLimits())
	property := mustCreateProperty(t, svc, "Reading")
	mustCreateProperty(t, svc, "Running")
	ctx := context.Background()
	id := property.ID.String()

	_, err := svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{UserID: testUser, PropertyID: id})
	if !errors.Is(err, ledgerdomain.ErrNoFieldsToUpdate) {
		t.Fatalf("expected ErrNoFieldsToUpdate, got %v", err)
	}
	_, err = svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{UserID: testUser, PropertyID: id, Name: strPtr("  ")})
	if !errors.Is(err, ledgerdomain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	_, err = svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{UserID: testUser, PropertyID: id, Name: strPtr("Reading")})
	if !errors.Is(err, ledgerdomain.ErrValueUnchanged) {
		t.Fatalf("expected ErrValueUnchanged, got %v", err)
	}
	_, err = svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{UserID: testUser, PropertyID: id, Name: strPtr("Running")})
	if !errors.Is(err, ledgerdomain.ErrDuplicateProperty) {
		t.Fatalf("expected ErrDuplicateProperty, got %v", err)
	}
	_, err = svc.UpdateProperty(ctx, ledgerdomain.UpdatePropertyRequest{UserID: testUser, PropertyID: id, Amount: int64Ptr(0)})
	if !errors.Is(err, ledgerdomain.ErrValueUnchanged) {
		t.Fatalf("expected ErrValueUnchanged for unchanged amount, got %v", err)
	}
}

func TestDeletePropertyCascadesToLedger(t *testing.T) {
	svc, conn := newTestEngine(t, quotadomain.DefaultLimits())
	property := mustCreateProperty(t, svc, "Reading")
	ctx := context.Background()

	for _, delta := range []int64{10, -4} {
		if _, err := svc.CreateTransaction(ctx, ledgerdomain.CreateTransactionRequest{
			UserID:       testUser,
			PropertyID:   property.ID.String(),
			PointsChange: delta,
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	deleted, err := svc.DeleteProperty(ctx, ledgerdomain.DeletePropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if err != nil {
		t.Fatalf("delete property: %v", err)
	}
	if deleted.NumTransactionsAffected != 2 {
		t.Fatalf("expected 2 cascaded transactions, got %d", deleted.NumTransactionsAffected)
	}

	quota := fetchQuota(t, conn)
	if quota.NumProperties != 0 || quota.NumDeletedProperties != 1 {
		t.Fatalf("unexpected property counters %+v", quota)
	}
	if quota.NumTransactions != 0 || quota.NumDeletedTransactions != 2 {
		t.Fatalf("unexpected transaction counters %+v", quota)
	}

	if sum := ledgerSum(t, conn, property.ID); sum != 0 {
		t.Fatalf("expected no live ledger rows, got sum %d", sum)
	}
	_, err = svc.GetProperty(ctx, ledgerdomain.GetPropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if !errors.Is(err, ledgerdomain.ErrPropertyNotFound) {
		t.Fatalf("expected deleted property to be gone, got %v", err)
	}

	// Terminal: the same delete cannot apply twice.
	_, err = svc.DeleteProperty(ctx, ledgerdomain.DeletePropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if !errors.Is(err, ledgerdomain.ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound on second delete, got %v", err)
	}
}

func TestDeletePropertyDeletedCounterLimit(t *testing.T) {
	limits := quotadomain.DefaultLimits()
	limits.MaxDeletedProperties = 0
	svc, conn := newTestEngine(t, limits)
	property := mustCreateProperty(t, svc, "Reading")

	_, err := svc.DeleteProperty(context.Background(), ledgerdomain.DeletePropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if !errors.Is(err, quotadomain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// The rejected delete must leave the property live.
	live, err := svc.GetProperty(context.Background(), ledgerdomain.GetPropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if live.IsDeleted {
		t.Fatal("expected property to stay live after rollback")
	}
	quota := fetchQuota(t, conn)
	if quota.NumProperties != 1 || quota.NumDeletedProperties != 0 {
		t.Fatalf("unexpected quota counters after rollback %+v", quota)
	}
}

func TestListPropertiesPaginates(t *testing.T) {
	svc, _ := newTestEngine(t, quotadomain.DefaultLimits())
	ctx := context.Background()
	for _, name := range []string{"Reading", "Running", "Writing"} {
		mustCreateProperty(t, svc, name)
	}

	first, err := svc.ListProperties(ctx, ledgerdomain.ListPropertiesRequest{
		UserID:     testUser,
		Pagination: pagination.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list properties: %v", err)
	}
	if len(first.Properties) != 2 || !first.PageInfo.HasMore {
		t.Fatalf("expected full first page, got %d items, has_more=%v", len(first.Properties), first.PageInfo.HasMore)
	}

	second, err := svc.ListProperties(ctx, ledgerdomain.ListPropertiesRequest{
		UserID:     testUser,
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list properties page 2: %v", err)
	}
	if len(second.Properties) != 1 || second.PageInfo.HasMore {
		t.Fatalf("expected final page with 1 item, got %d, has_more=%v", len(second.Properties), second.PageInfo.HasMore)
	}
}

func TestGetPropertyFetchSurvivesCallerCancellation(t *testing.T) {
	svc, _ := newTestEngine(t, quotadomain.DefaultLimits())
	property := mustCreateProperty(t, svc, "Reading")

	// The cache-miss query is shared by every coalesced caller, so the
	// cancellation of the caller that happens to run it must not fail
	// the lookup.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.GetProperty(ctx, ledgerdomain.GetPropertyRequest{
		UserID:     testUser,
		PropertyID: property.ID.String(),
	})
	if err != nil {
		t.Fatalf("get property with canceled caller: %v", err)
	}
	if got.ID != property.ID {
		t.Fatalf("expected property %d, got %d", property.ID, got.ID)
	}
}
