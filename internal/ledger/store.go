// Package ledger defines the transactional store the accounting services run
// against. Implementations live in internal/repository (PostgreSQL via gorm)
// and internal/ledger/memstore (in memory, for tests).
package ledger

import (
	"context"
	"errors"
	"time"

	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by single-record reads and by updates that
	// matched nothing.
	ErrNotFound = errors.New("ledger: record not found")
	// ErrConflict is returned when a transaction kept hitting concurrent
	// writers and ran out of retries.
	ErrConflict = errors.New("ledger: transaction conflict")
	// ErrDuplicate is returned when a write violates a uniqueness rule
	// (product SKU, document or reservation number within its type).
	ErrDuplicate = errors.New("ledger: duplicate record")
)

// Summary aggregates transactions over a period.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Count   int64           `json:"count"`
}

type Reader interface {
	GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	// FindRelatedTransactions returns every transaction whose
	// RelatedTransactionID equals relatedID.
	FindRelatedTransactions(ctx context.Context, relatedID uuid.UUID) ([]model.Transaction, error)
	ListTransactionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Transaction, error)
	SumTransactionAmounts(ctx context.Context, categoryID uuid.UUID) (decimal.Decimal, error)
	SummarizeTransactions(ctx context.Context, from, to time.Time) (Summary, error)

	FindWarehouseDocumentsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]model.WarehouseDocument, error)
	// LatestDocument returns the document of docType with the highest
	// number, or ErrNotFound.
	LatestDocument(ctx context.Context, docType model.TransactionType) (*model.WarehouseDocument, error)
	DocumentNumberExists(ctx context.Context, docType model.TransactionType, number string) (bool, error)

	// LatestReservation returns the highest reservation of docType still
	// active at now, or ErrNotFound.
	LatestReservation(ctx context.Context, docType model.TransactionType, now time.Time) (*model.DocumentReservation, error)
	GetReservation(ctx context.Context, docType model.TransactionType, number string, now time.Time) (*model.DocumentReservation, error)

	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	// FindProductMovements returns the movements of a product stamped with
	// exactly date.
	FindProductMovements(ctx context.Context, productID uuid.UUID, date time.Time) ([]model.ProductMovement, error)
}

type Writer interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	UpdateCategoryBalance(ctx context.Context, id uuid.UUID, balance string) error

	CreateTransaction(ctx context.Context, t *model.Transaction) error

	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProductQuantity(ctx context.Context, id uuid.UUID, quantity int) error

	CreateWarehouseDocument(ctx context.Context, d *model.WarehouseDocument) error
	CreateProductMovement(ctx context.Context, m *model.ProductMovement) error

	CreateReservation(ctx context.Context, r *model.DocumentReservation) error
	// ReleaseReservations drops the reservations session holds for docType.
	ReleaseReservations(ctx context.Context, docType model.TransactionType, session string) error
	// PurgeExpiredReservations drops reservations of docType expired at now.
	PurgeExpiredReservations(ctx context.Context, docType model.TransactionType, now time.Time) error
}

// Tx is the scope of one atomic read-modify-write unit. Reads of categories
// and products inside a Tx see the values the Tx will commit against.
type Tx interface {
	Reader
	Writer
	// Now is the store-assigned instant of this transaction. Every call
	// inside one Tx returns the same value.
	Now(ctx context.Context) (time.Time, error)
}

// Batch collects deletes and blind writes and commits them atomically. It
// has no read dependencies. Deleting a missing record is a no-op.
type Batch interface {
	DeleteTransaction(id uuid.UUID)
	DeleteWarehouseDocument(id uuid.UUID)
	DeleteProductMovement(id uuid.UUID)
	// AdjustProductQuantity adds delta to the stored quantity at commit
	// time. With floorZero the result is clamped at zero.
	AdjustProductQuantity(id uuid.UUID, delta int, floorZero bool)
	Commit(ctx context.Context) error
}

// Store is the ledger's source of truth.
type Store interface {
	Reader
	// RunInTransaction runs fn atomically. fn may be invoked more than once
	// when the store detects a conflicting writer, so it must not have side
	// effects outside tx. If fn returns an error nothing is written.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	NewBatch() Batch
}
