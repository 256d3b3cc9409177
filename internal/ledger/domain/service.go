// Package domain defines the reconciliation engine contract. Every
// write operation mutates the property, transaction and quota records
// as one atomic unit: either all three stores reflect the operation or
// none of them do.
package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	propertydomain "github.com/jimmy-lan/habits-restapi/internal/property/domain"
	transactiondomain "github.com/jimmy-lan/habits-restapi/internal/transaction/domain"
	"github.com/jimmy-lan/habits-restapi/pkg/db/pagination"
)

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_property_name")
	ErrPropertyNotFound    = errors.New("property_not_found")
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrZeroPointsChange    = errors.New("zero_points_change")
	ErrNoFieldsToUpdate    = errors.New("no_fields_to_update")
	ErrValueUnchanged      = errors.New("value_unchanged")
	ErrDuplicateProperty   = errors.New("duplicate_property_name")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrWriteConflict       = errors.New("write_conflict")
)

// CreateTransactionRequest posts a signed points change against a
// property. An empty PropertyID targets the user's oldest property.
type CreateTransactionRequest struct {
	UserID       string
	PropertyID   string
	Title        *string
	PointsChange int64
}

type CreateTransactionResponse struct {
	Transaction transactiondomain.Transaction
	// Amount is the property balance after the posting.
	Amount int64
}

// UpdateTransactionRequest amends a transaction. Nil fields stay
// unchanged; a supplied field whose value matches the current one is
// rejected as an accidental double submission.
type UpdateTransactionRequest struct {
	UserID        string
	TransactionID string
	Title         *string
	PointsChange  *int64
	PropertyID    *string
}

type UpdateTransactionResponse struct {
	Transaction transactiondomain.Transaction
	// UpdatedFrom snapshots the transaction before the amendment.
	UpdatedFrom transactiondomain.Transaction
}

type DeleteTransactionRequest struct {
	UserID        string
	TransactionID string
}

type DeleteTransactionResponse struct {
	Transaction transactiondomain.Transaction
	// Amount is the property balance after the delta reversal.
	Amount int64
}

type CreatePropertyRequest struct {
	UserID      string
	Name        string
	Description *string
	// AmountInStock enables stock tracking when zero or positive; a
	// negative value leaves stock untracked.
	AmountInStock *int64
}

// UpdatePropertyRequest partially updates a property. Setting Amount
// records an adjustment transaction for the difference. An empty
// Description clears the field; a negative AmountInStock disables
// stock tracking.
type UpdatePropertyRequest struct {
	UserID        string
	PropertyID    string
	Name          *string
	Description   *string
	Amount        *int64
	AmountInStock *int64
}

type UpdatePropertyResponse struct {
	Property    propertydomain.Property
	UpdatedFrom propertydomain.Property
}

type DeletePropertyRequest struct {
	UserID     string
	PropertyID string
}

type DeletePropertyResponse struct {
	Property                propertydomain.Property
	NumTransactionsAffected int64
}

type GetPropertyRequest struct {
	UserID     string
	PropertyID string
}

type ListPropertiesRequest struct {
	UserID string
	pagination.Pagination
}

type ListPropertiesResponse struct {
	Properties []propertydomain.Property
	PageInfo   pagination.PageInfo
}

type ListTransactionsRequest struct {
	UserID string
	// PropertyID narrows the listing to one property when set.
	PropertyID string
	pagination.Pagination
}

type ListTransactionsResponse struct {
	Transactions []transactiondomain.Transaction
	PageInfo     pagination.PageInfo
}

// Service is the reconciliation engine. Implementations are stateless
// orchestrators over the three stores; all state lives in the
// database.
type Service interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CreateTransactionResponse, error)
	UpdateTransaction(ctx context.Context, req UpdateTransactionRequest) (*UpdateTransactionResponse, error)
	DeleteTransaction(ctx context.Context, req DeleteTransactionRequest) (*DeleteTransactionResponse, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)

	CreateProperty(ctx context.Context, req CreatePropertyRequest) (*propertydomain.Property, error)
	UpdateProperty(ctx context.Context, req UpdatePropertyRequest) (*UpdatePropertyResponse, error)
	DeleteProperty(ctx context.Context, req DeletePropertyRequest) (*DeletePropertyResponse, error)
	GetProperty(ctx context.Context, req GetPropertyRequest) (*propertydomain.Property, error)
	ListProperties(ctx context.Context, req ListPropertiesRequest) (ListPropertiesResponse, error)
}

// ParseID parses a caller-supplied identifier.
func ParseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
