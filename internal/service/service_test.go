package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-accounting-ws/internal/cache"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/ledger/memstore"
	"go-accounting-ws/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// clock hands out a new instant, one second apart, on every call.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: baseTime}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type published struct {
	event string
	data  interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, data: data})
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event)
	}
	return out
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func newTestStore(c *clock) *memstore.Store {
	return memstore.New(memstore.WithClock(c.Now))
}

// seedCategory creates a category whose balance is backed by one opening
// income transaction.
func seedCategory(t *testing.T, store ledger.Store, title, balance string) model.Category {
	t.Helper()
	ctx := context.Background()
	opening := decimal.RequireFromString(balance)

	var category model.Category
	require.NoError(t, store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		c := model.Category{Title: title, Balance: opening.StringFixed(2)}
		if err := tx.CreateCategory(ctx, &c); err != nil {
			return err
		}
		now, _ := tx.Now(ctx)
		if opening.IsPositive() {
			if err := tx.CreateTransaction(ctx, &model.Transaction{
				CategoryID:  c.ID,
				Amount:      opening,
				Description: "Opening balance",
				Type:        model.TxIncome,
				Date:        now,
			}); err != nil {
				return err
			}
		}
		category = c
		return nil
	}))
	return category
}

func seedProduct(t *testing.T, store ledger.Store, sku string, quantity int) model.Product {
	t.Helper()
	ctx := context.Background()

	var product model.Product
	require.NoError(t, store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		p := model.Product{SKU: sku, Name: "Product " + sku, Quantity: quantity, Unit: "pcs"}
		if err := tx.CreateProduct(ctx, &p); err != nil {
			return err
		}
		product = p
		return nil
	}))
	return product
}

func balanceOf(t *testing.T, store ledger.Store, c model.Category) string {
	t.Helper()
	got, err := store.GetCategory(context.Background(), c.ID)
	require.NoError(t, err)
	return got.Balance
}

func quantityOf(t *testing.T, store ledger.Store, p model.Product) int {
	t.Helper()
	got, err := store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	return got.Quantity
}

func newTestNumbering(store ledger.Store) NumberingService {
	return NewNumberingService(store, cache.NewMemory(0), NumberingConfig{
		MaxAttempts:    10,
		Backoff:        time.Millisecond,
		ReservationTTL: time.Hour,
	}, nil, zap.NewNop())
}
