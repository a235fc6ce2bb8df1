package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore() *Store {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.CreateCategory(ctx, &model.Category{Title: "Cash"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, 0, s.Commits())
}

func TestRunInTransactionAppliesWritesAndStampsNow(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	cat := &model.Category{Title: "Cash"}
	err := s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		now, err := tx.Now(ctx)
		require.NoError(t, err)
		assert.Equal(t, fixedNow, now)
		return tx.CreateCategory(ctx, cat)
	})
	require.NoError(t, err)

	got, err := s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.Balance)
	assert.Equal(t, fixedNow, got.CreatedAt)
}

func TestFailNextCommitDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	s.FailNextCommit(errors.New("unavailable"))

	err := s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		return tx.CreateCategory(ctx, &model.Category{Title: "Cash"})
	})
	require.Error(t, err)

	cats, _ := s.ListCategories(ctx)
	assert.Empty(t, cats)

	// only the next commit fails
	require.NoError(t, s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		return tx.CreateCategory(ctx, &model.Category{Title: "Cash"})
	}))
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	product := &model.Product{SKU: "A-1", Name: "Cement", Quantity: 5}
	trx := &model.Transaction{Amount: decimal.NewFromInt(10), Type: model.TxIncome, Date: fixedNow}
	require.NoError(t, s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		if err := tx.CreateProduct(ctx, product); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, trx)
	}))

	b := s.NewBatch()
	b.DeleteTransaction(trx.ID)
	b.AdjustProductQuantity(uuid.New(), 3, false)
	require.ErrorIs(t, b.Commit(ctx), ledger.ErrNotFound)

	_, err := s.GetTransaction(ctx, trx.ID)
	assert.NoError(t, err, "failed batch must not delete anything")

	b = s.NewBatch()
	b.DeleteTransaction(trx.ID)
	b.DeleteTransaction(uuid.New())
	b.AdjustProductQuantity(product.ID, 3, false)
	b.AdjustProductQuantity(product.ID, -20, true)
	b.AdjustProductQuantity(product.ID, 8, false)
	require.NoError(t, b.Commit(ctx))

	_, err = s.GetTransaction(ctx, trx.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	p, err := s.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)
}

func TestUniquenessRules(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	err := s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.CreateProduct(ctx, &model.Product{SKU: "A-1", Name: "Cement"}))
		return tx.CreateProduct(ctx, &model.Product{SKU: "A-1", Name: "Sand"})
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	err = s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.CreateReservation(ctx, &model.DocumentReservation{Type: model.TxIncome, Number: "000001", Session: "a", ExpiresAt: fixedNow.Add(time.Hour)}))
		return tx.CreateReservation(ctx, &model.DocumentReservation{Type: model.TxIncome, Number: "000001", Session: "b", ExpiresAt: fixedNow.Add(time.Hour)})
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
}

func TestLatestDocumentAndReservations(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.LatestDocument(ctx, model.TxIncome)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		for _, n := range []string{"000002", "000010", "000009"} {
			if err := tx.CreateWarehouseDocument(ctx, &model.WarehouseDocument{Type: model.TxIncome, DocumentNumber: n, Date: fixedNow}); err != nil {
				return err
			}
		}
		if err := tx.CreateWarehouseDocument(ctx, &model.WarehouseDocument{Type: model.TxExpense, DocumentNumber: "000500", Date: fixedNow}); err != nil {
			return err
		}
		if err := tx.CreateReservation(ctx, &model.DocumentReservation{Type: model.TxIncome, Number: "000011", Session: "a", ExpiresAt: fixedNow.Add(time.Hour)}); err != nil {
			return err
		}
		return tx.CreateReservation(ctx, &model.DocumentReservation{Type: model.TxIncome, Number: "000012", Session: "b", ExpiresAt: fixedNow.Add(-time.Minute)})
	}))

	latest, err := s.LatestDocument(ctx, model.TxIncome)
	require.NoError(t, err)
	assert.Equal(t, "000010", latest.DocumentNumber)

	exists, err := s.DocumentNumberExists(ctx, model.TxExpense, "000010")
	require.NoError(t, err)
	assert.False(t, exists)

	r, err := s.LatestReservation(ctx, model.TxIncome, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "000011", r.Number, "expired reservations are ignored")

	require.NoError(t, s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		if err := tx.PurgeExpiredReservations(ctx, model.TxIncome, fixedNow); err != nil {
			return err
		}
		return tx.ReleaseReservations(ctx, model.TxIncome, "a")
	}))
	_, err = s.LatestReservation(ctx, model.TxIncome, fixedNow.Add(-2*time.Hour))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSummarizeTransactions(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	cat := uuid.New()

	require.NoError(t, s.RunInTransaction(ctx, func(tx ledger.Tx) error {
		rows := []model.Transaction{
			{CategoryID: cat, Amount: decimal.NewFromInt(100), Type: model.TxIncome, Date: fixedNow},
			{CategoryID: cat, Amount: decimal.NewFromInt(-40), Type: model.TxExpense, Date: fixedNow},
			{CategoryID: cat, Amount: decimal.NewFromInt(5), Type: model.TxIncome, Date: fixedNow.AddDate(0, -1, 0)},
		}
		for i := range rows {
			if err := tx.CreateTransaction(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	sum, err := s.SumTransactionAmounts(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, "65", sum.String())

	summary, err := s.SummarizeTransactions(ctx, fixedNow.AddDate(0, 0, -7), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, "100", summary.Income.String())
	assert.Equal(t, "40", summary.Expense.String())
}
