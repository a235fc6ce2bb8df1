package memstore

import (
	"context"
	"sort"
	"time"

	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// state holds records by value. Slices inside records (attachments, items)
// are never mutated in place, so clone copies only the maps.
type state struct {
	categories   map[uuid.UUID]model.Category
	transactions map[uuid.UUID]model.Transaction
	documents    map[uuid.UUID]model.WarehouseDocument
	products     map[uuid.UUID]model.Product
	movements    map[uuid.UUID]model.ProductMovement
	reservations map[uuid.UUID]model.DocumentReservation
}

func newState() *state {
	return &state{
		categories:   map[uuid.UUID]model.Category{},
		transactions: map[uuid.UUID]model.Transaction{},
		documents:    map[uuid.UUID]model.WarehouseDocument{},
		products:     map[uuid.UUID]model.Product{},
		movements:    map[uuid.UUID]model.ProductMovement{},
		reservations: map[uuid.UUID]model.DocumentReservation{},
	}
}

func (s *state) clone() *state {
	return &state{
		categories:   copyMap(s.categories),
		transactions: copyMap(s.transactions),
		documents:    copyMap(s.documents),
		products:     copyMap(s.products),
		movements:    copyMap(s.movements),
		reservations: copyMap(s.reservations),
	}
}

func copyMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) GetCategory(_ context.Context, id uuid.UUID) (*model.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &c, nil
}

func (s *state) ListCategories(_ context.Context) ([]model.Category, error) {
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *state) GetTransaction(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &t, nil
}

func (s *state) FindRelatedTransactions(_ context.Context, relatedID uuid.UUID) ([]model.Transaction, error) {
	return s.filterTransactions(func(t model.Transaction) bool {
		return t.RelatedTransactionID != nil && *t.RelatedTransactionID == relatedID
	}), nil
}

func (s *state) ListTransactionsByCategory(_ context.Context, categoryID uuid.UUID) ([]model.Transaction, error) {
	out := s.filterTransactions(func(t model.Transaction) bool {
		return t.CategoryID == categoryID
	})
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// filterTransactions returns matches ordered by date, then ID.
func (s *state) filterTransactions(match func(model.Transaction) bool) []model.Transaction {
	var out []model.Transaction
	for _, t := range s.transactions {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *state) SumTransactionAmounts(_ context.Context, categoryID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range s.transactions {
		if t.CategoryID == categoryID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (s *state) SummarizeTransactions(_ context.Context, from, to time.Time) (ledger.Summary, error) {
	summary := ledger.Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range s.transactions {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		summary.Count++
		switch t.Type {
		case model.TxIncome:
			summary.Income = summary.Income.Add(t.Amount)
		case model.TxExpense:
			summary.Expense = summary.Expense.Add(t.Amount.Abs())
		}
	}
	return summary, nil
}

func (s *state) FindWarehouseDocumentsByTransaction(_ context.Context, transactionID uuid.UUID) ([]model.WarehouseDocument, error) {
	var out []model.WarehouseDocument
	for _, d := range s.documents {
		if d.RelatedTransactionID == transactionID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentNumber < out[j].DocumentNumber })
	return out, nil
}

func (s *state) LatestDocument(_ context.Context, docType model.TransactionType) (*model.WarehouseDocument, error) {
	var latest *model.WarehouseDocument
	for _, d := range s.documents {
		if d.Type != docType {
			continue
		}
		if latest == nil || d.DocumentNumber > latest.DocumentNumber {
			latest = &d
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (s *state) DocumentNumberExists(_ context.Context, docType model.TransactionType, number string) (bool, error) {
	for _, d := range s.documents {
		if d.Type == docType && d.DocumentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) LatestReservation(_ context.Context, docType model.TransactionType, now time.Time) (*model.DocumentReservation, error) {
	var latest *model.DocumentReservation
	for _, r := range s.reservations {
		if r.Type != docType || !r.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || r.Number > latest.Number {
			latest = &r
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (s *state) GetReservation(_ context.Context, docType model.TransactionType, number string, now time.Time) (*model.DocumentReservation, error) {
	for _, r := range s.reservations {
		if r.Type == docType && r.Number == number && r.ExpiresAt.After(now) {
			return &r, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (s *state) GetProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &p, nil
}

func (s *state) ListProducts(_ context.Context) ([]model.Product, error) {
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) FindProductMovements(_ context.Context, productID uuid.UUID, date time.Time) ([]model.ProductMovement, error) {
	var out []model.ProductMovement
	for _, m := range s.movements {
		if m.ProductID == productID && m.Date.Equal(date) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *state) setProductQuantity(id uuid.UUID, quantity int, now time.Time) error {
	p, ok := s.products[id]
	if !ok {
		return ledger.ErrNotFound
	}
	p.Quantity = quantity
	p.UpdatedAt = now
	s.products[id] = p
	return nil
}

// tx adds the write half of ledger.Tx to a working copy of the state.
type tx struct {
	*state
	now time.Time
}

var _ ledger.Tx = (*tx)(nil)

func (t *tx) Now(_ context.Context) (time.Time, error) {
	return t.now, nil
}

func (t *tx) stamp(base *model.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	base.CreatedAt = t.now
	base.UpdatedAt = t.now
}

func (t *tx) CreateCategory(_ context.Context, c *model.Category) error {
	t.stamp(&c.BaseModel)
	if c.Balance == "" {
		c.Balance = "0.00"
	}
	t.categories[c.ID] = *c
	return nil
}

func (t *tx) UpdateCategoryBalance(_ context.Context, id uuid.UUID, balance string) error {
	c, ok := t.categories[id]
	if !ok {
		return ledger.ErrNotFound
	}
	c.Balance = balance
	c.UpdatedAt = t.now
	t.categories[id] = c
	return nil
}

func (t *tx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	if _, exists := t.transactions[tr.ID]; exists && tr.ID != uuid.Nil {
		return ledger.ErrDuplicate
	}
	t.stamp(&tr.BaseModel)
	t.transactions[tr.ID] = *tr
	return nil
}

func (t *tx) CreateProduct(_ context.Context, p *model.Product) error {
	for _, existing := range t.products {
		if existing.SKU == p.SKU {
			return ledger.ErrDuplicate
		}
	}
	t.stamp(&p.BaseModel)
	t.products[p.ID] = *p
	return nil
}

func (t *tx) UpdateProductQuantity(_ context.Context, id uuid.UUID, quantity int) error {
	return t.setProductQuantity(id, quantity, t.now)
}

func (t *tx) CreateWarehouseDocument(ctx context.Context, d *model.WarehouseDocument) error {
	if exists, _ := t.DocumentNumberExists(ctx, d.Type, d.DocumentNumber); exists {
		return ledger.ErrDuplicate
	}
	t.stamp(&d.BaseModel)
	t.documents[d.ID] = *d
	return nil
}

func (t *tx) CreateProductMovement(_ context.Context, m *model.ProductMovement) error {
	t.stamp(&m.BaseModel)
	t.movements[m.ID] = *m
	return nil
}

func (t *tx) CreateReservation(_ context.Context, r *model.DocumentReservation) error {
	for _, existing := range t.reservations {
		if existing.Type == r.Type && existing.Number == r.Number {
			return ledger.ErrDuplicate
		}
	}
	t.stamp(&r.BaseModel)
	t.reservations[r.ID] = *r
	return nil
}

func (t *tx) ReleaseReservations(_ context.Context, docType model.TransactionType, session string) error {
	for id, r := range t.reservations {
		if r.Type == docType && r.Session == session {
			delete(t.reservations, id)
		}
	}
	return nil
}

func (t *tx) PurgeExpiredReservations(_ context.Context, docType model.TransactionType, now time.Time) error {
	for id, r := range t.reservations {
		if r.Type == docType && !r.ExpiresAt.After(now) {
			delete(t.reservations, id)
		}
	}
	return nil
}
