//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-accounting-ws/internal/cache"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/repository"
	"go-accounting-ws/internal/service"
	"go-accounting-ws/migrations"
	"go-accounting-ws/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupStore starts a disposable PostgreSQL, applies the migrations and
// returns a ledger store on top of it.
func setupStore(t *testing.T) ledger.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("accounting"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.ConnectDB(dsn, false)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, migrations.Up(sqlDB))

	return repository.NewLedgerRepo(db, repository.LedgerConfig{MaxRetries: 20, Backoff: 5 * time.Millisecond})
}

type services struct {
	categories service.CategoryService
	transfers  service.TransferService
	reversals  service.ReversalService
	numbering  service.NumberingService
	warehouse  service.WarehouseService
}

func newServices(store ledger.Store) services {
	log := zap.NewNop()
	categories := service.NewCategoryService(store, log)
	numbering := service.NewNumberingService(store, cache.NewMemory(time.Hour), service.NumberingConfig{
		MaxAttempts:    10,
		Backoff:        time.Millisecond,
		ReservationTTL: time.Hour,
	}, nil, log)
	return services{
		categories: categories,
		transfers:  service.NewTransferService(store, nil, nil, log),
		reversals:  service.NewReversalService(store, categories, nil, nil, log),
		numbering:  numbering,
		warehouse:  service.NewWarehouseService(store, numbering, nil, log),
	}
}

func balance(t *testing.T, store ledger.Store, id uuid.UUID) string {
	t.Helper()
	c, err := store.GetCategory(context.Background(), id)
	require.NoError(t, err)
	return c.Balance
}

func TestIntegration_TransferAndReverse(t *testing.T) {
	store := setupStore(t)
	s := newServices(store)
	ctx := context.Background()

	a, err := s.categories.Create(ctx, &service.CreateCategoryRequest{Title: "Cash", OpeningBalance: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	b, err := s.categories.Create(ctx, &service.CreateCategoryRequest{Title: "Bank"})
	require.NoError(t, err)

	res, err := s.transfers.Transfer(ctx, &service.TransferRequest{
		SourceID:    a.ID,
		TargetID:    b.ID,
		Amount:      decimal.RequireFromString("250.50"),
		Description: "deposit",
	})
	require.NoError(t, err)
	assert.Equal(t, "749.50", balance(t, store, a.ID))
	assert.Equal(t, "250.50", balance(t, store, b.ID))
	assert.True(t, res.Debit.Date.Equal(res.Credit.Date))

	legs, err := store.FindRelatedTransactions(ctx, res.Debit.ID)
	require.NoError(t, err)
	assert.Len(t, legs, 2)

	require.NoError(t, s.reversals.DeleteTransaction(ctx, res.Credit.ID.String()))
	assert.Equal(t, "1000.00", balance(t, store, a.ID))
	assert.Equal(t, "0.00", balance(t, store, b.ID))

	_, err = store.GetTransaction(ctx, res.Debit.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestIntegration_ConcurrentTransfersKeepTotals(t *testing.T) {
	store := setupStore(t)
	s := newServices(store)
	ctx := context.Background()

	a, err := s.categories.Create(ctx, &service.CreateCategoryRequest{Title: "A", OpeningBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)
	b, err := s.categories.Create(ctx, &service.CreateCategoryRequest{Title: "B", OpeningBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src, dst := a.ID, b.ID
			if i%2 == 1 {
				src, dst = b.ID, a.ID
			}
			_, err := s.transfers.Transfer(ctx, &service.TransferRequest{
				SourceID: src, TargetID: dst, Amount: decimal.NewFromInt(1), Description: "ping",
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Positive(t, ok)

	total := decimal.RequireFromString(balance(t, store, a.ID)).Add(decimal.RequireFromString(balance(t, store, b.ID)))
	assert.Equal(t, "200", total.String())

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		sum, err := store.SumTransactionAmounts(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, balance(t, store, id), sum.StringFixed(2))
	}
}

func TestIntegration_DocumentNumberingAndWarehouse(t *testing.T) {
	store := setupStore(t)
	s := newServices(store)
	ctx := context.Background()

	cash, err := s.categories.Create(ctx, &service.CreateCategoryRequest{Title: "Cash", OpeningBalance: decimal.NewFromInt(500)})
	require.NoError(t, err)
	product, err := s.warehouse.CreateProduct(ctx, &service.CreateProductRequest{SKU: "NAIL-1", Name: "Nails", Quantity: 5})
	require.NoError(t, err)

	first, err := s.numbering.NextDocumentNumber(ctx, "alice", model.TxExpense)
	require.NoError(t, err)
	second, err := s.numbering.NextDocumentNumber(ctx, "bob", model.TxExpense)
	require.NoError(t, err)
	assert.Equal(t, "000001", first)
	assert.Equal(t, "000002", second)

	again, err := s.numbering.NextDocumentNumber(ctx, "alice", model.TxExpense)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	doc, err := s.warehouse.CreateDocument(ctx, "alice", &service.CreateDocumentRequest{
		Type:           model.TxExpense,
		DocumentNumber: first,
		CategoryID:     cash.ID,
		Amount:         decimal.NewFromInt(40),
		Items:          model.WarehouseItems{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "460.00", balance(t, store, cash.ID))

	p, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)

	moves, err := store.FindProductMovements(ctx, product.ID, doc.Transaction.Date)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, -3, moves[0].Quantity)

	next, err := s.numbering.NextDocumentNumber(ctx, "alice", model.TxExpense)
	require.NoError(t, err)
	assert.Equal(t, "000003", next, "bob still holds 000002")

	require.NoError(t, s.reversals.DeleteTransaction(ctx, doc.Transaction.ID.String()))
	p, err = store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
	assert.Equal(t, "500.00", balance(t, store, cash.ID))

	exists, err := store.DocumentNumberExists(ctx, model.TxExpense, first)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIntegration_DuplicateReservation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	reserve := func(session string) error {
		return store.RunInTransaction(ctx, func(tx ledger.Tx) error {
			return tx.CreateReservation(ctx, &model.DocumentReservation{
				Type: model.TxIncome, Number: "000001", Session: session, ExpiresAt: expires,
			})
		})
	}
	require.NoError(t, reserve("a"))
	err := reserve("b")
	assert.True(t, errors.Is(err, ledger.ErrDuplicate), "got %v", err)

	res, err := store.GetReservation(ctx, model.TxIncome, "000001", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "a", res.Session)
}
