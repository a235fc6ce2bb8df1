// Package memstore is an in-memory ledger.Store. Transactions and batches are
// serialized by a single mutex and applied to a copy of the data that replaces
// the live copy only on success.
package memstore

import (
	"context"
	"sync"
	"time"

	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Option func(*Store)

// WithClock replaces time.Now as the source of transaction instants.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

type Store struct {
	mu        sync.Mutex
	st        *state
	clock     func() time.Time
	commitErr error
	commits   int
}

var _ ledger.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		st:    newState(),
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNextCommit makes the next transaction or batch commit return err
// without applying any of its writes.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Commits counts successful transaction and batch commits.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{state: work, now: s.clock()}); err != nil {
		return err
	}
	return s.swap(work)
}

func (s *Store) NewBatch() ledger.Batch {
	return &batch{store: s}
}

// swap must be called with mu held.
func (s *Store) swap(work *state) error {
	if err := s.commitErr; err != nil {
		s.commitErr = nil
		return err
	}
	s.st = work
	s.commits++
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetCategory(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListCategories(ctx)
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetTransaction(ctx, id)
}

func (s *Store) FindRelatedTransactions(ctx context.Context, relatedID uuid.UUID) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FindRelatedTransactions(ctx, relatedID)
}

func (s *Store) ListTransactionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListTransactionsByCategory(ctx, categoryID)
}

func (s *Store) SumTransactionAmounts(ctx context.Context, categoryID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SumTransactionAmounts(ctx, categoryID)
}

func (s *Store) SummarizeTransactions(ctx context.Context, from, to time.Time) (ledger.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SummarizeTransactions(ctx, from, to)
}

func (s *Store) FindWarehouseDocumentsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]model.WarehouseDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FindWarehouseDocumentsByTransaction(ctx, transactionID)
}

func (s *Store) LatestDocument(ctx context.Context, docType model.TransactionType) (*model.WarehouseDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LatestDocument(ctx, docType)
}

func (s *Store) DocumentNumberExists(ctx context.Context, docType model.TransactionType, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DocumentNumberExists(ctx, docType, number)
}

func (s *Store) LatestReservation(ctx context.Context, docType model.TransactionType, now time.Time) (*model.DocumentReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LatestReservation(ctx, docType, now)
}

func (s *Store) GetReservation(ctx context.Context, docType model.TransactionType, number string, now time.Time) (*model.DocumentReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetReservation(ctx, docType, number, now)
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListProducts(ctx)
}

func (s *Store) FindProductMovements(ctx context.Context, productID uuid.UUID, date time.Time) ([]model.ProductMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FindProductMovements(ctx, productID, date)
}

type batch struct {
	store *Store
	ops   []func(st *state, now time.Time) error
}

func (b *batch) DeleteTransaction(id uuid.UUID) {
	b.ops = append(b.ops, func(st *state, _ time.Time) error {
		delete(st.transactions, id)
		return nil
	})
}

func (b *batch) DeleteWarehouseDocument(id uuid.UUID) {
	b.ops = append(b.ops, func(st *state, _ time.Time) error {
		delete(st.documents, id)
		return nil
	})
}

func (b *batch) DeleteProductMovement(id uuid.UUID) {
	b.ops = append(b.ops, func(st *state, _ time.Time) error {
		delete(st.movements, id)
		return nil
	})
}

func (b *batch) AdjustProductQuantity(id uuid.UUID, delta int, floorZero bool) {
	b.ops = append(b.ops, func(st *state, now time.Time) error {
		p, ok := st.products[id]
		if !ok {
			return ledger.ErrNotFound
		}
		quantity := p.Quantity + delta
		if floorZero {
			quantity = max(0, quantity)
		}
		return st.setProductQuantity(id, quantity, now)
	})
}

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	now := s.clock()
	for _, op := range b.ops {
		if err := op(work, now); err != nil {
			return err
		}
	}
	return s.swap(work)
}
