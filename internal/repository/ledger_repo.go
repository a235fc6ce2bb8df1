package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerConfig tunes how often a serializable transaction is re-run after
// PostgreSQL reports a serialization failure or deadlock.
type LedgerConfig struct {
	MaxRetries uint64
	Backoff    time.Duration
}

type ledgerRepo struct {
	gormReader
	cfg LedgerConfig
}

// NewLedgerRepo returns a ledger.Store backed by PostgreSQL. Transactions run
// at SERIALIZABLE isolation and are retried on conflict.
func NewLedgerRepo(db *gorm.DB, cfg LedgerConfig) ledger.Store {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Millisecond
	}
	return &ledgerRepo{gormReader: gormReader{db: db}, cfg: cfg}
}

func (r *ledgerRepo) RunInTransaction(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(&gormTx{gormReader: gormReader{db: db, lock: true}})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

func (r *ledgerRepo) NewBatch() ledger.Batch {
	return &gormBatch{repo: r}
}

func (r *ledgerRepo) withRetry(ctx context.Context, run func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewExponential(r.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := run(ctx); err != nil {
			if isSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapWriteErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ledger.ErrDuplicate, err)
	}
	return err
}

func mapReadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrNotFound
	}
	return err
}

// gormReader implements ledger.Reader. Inside a transaction lock is set and
// category and product reads take row locks.
type gormReader struct {
	db   *gorm.DB
	lock bool
}

func (r gormReader) forUpdate(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r gormReader) GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var c model.Category
	if err := r.forUpdate(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return &c, nil
}

func (r gormReader) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := r.db.WithContext(ctx).Order("title ASC, id ASC").Find(&cats).Error
	return cats, err
}

func (r gormReader) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return &t, nil
}

func (r gormReader) FindRelatedTransactions(ctx context.Context, relatedID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("related_transaction_id = ?", relatedID).
		Order("date ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

func (r gormReader) ListTransactionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("date DESC, id DESC").
		Find(&txs).Error
	return txs, err
}

func (r gormReader) SumTransactionAmounts(ctx context.Context, categoryID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("category_id = ?", categoryID).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (r gormReader) SummarizeTransactions(ctx context.Context, from, to time.Time) (ledger.Summary, error) {
	var s ledger.Summary
	row := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select(`
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN ABS(amount) ELSE 0 END), 0),
			COUNT(*)
		`).
		Where("date BETWEEN ? AND ?", from, to).
		Row()
	if err := row.Scan(&s.Income, &s.Expense, &s.Count); err != nil {
		return ledger.Summary{}, err
	}
	return s, nil
}

func (r gormReader) FindWarehouseDocumentsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]model.WarehouseDocument, error) {
	var docs []model.WarehouseDocument
	err := r.db.WithContext(ctx).
		Where("related_transaction_id = ?", transactionID).
		Order("document_number ASC").
		Find(&docs).Error
	return docs, err
}

func (r gormReader) LatestDocument(ctx context.Context, docType model.TransactionType) (*model.WarehouseDocument, error) {
	var d model.WarehouseDocument
	err := r.db.WithContext(ctx).
		Where("type = ?", docType).
		Order("document_number DESC").
		Limit(1).
		Take(&d).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &d, nil
}

func (r gormReader) DocumentNumberExists(ctx context.Context, docType model.TransactionType, number string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.WarehouseDocument{}).
		Where("type = ? AND document_number = ?", docType, number).
		Count(&n).Error
	return n > 0, err
}

func (r gormReader) LatestReservation(ctx context.Context, docType model.TransactionType, now time.Time) (*model.DocumentReservation, error) {
	var res model.DocumentReservation
	err := r.db.WithContext(ctx).
		Where("type = ? AND expires_at > ?", docType, now).
		Order("number DESC").
		Limit(1).
		Take(&res).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &res, nil
}

func (r gormReader) GetReservation(ctx context.Context, docType model.TransactionType, number string, now time.Time) (*model.DocumentReservation, error) {
	var res model.DocumentReservation
	err := r.db.WithContext(ctx).
		Where("type = ? AND number = ? AND expires_at > ?", docType, number, now).
		Take(&res).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &res, nil
}

func (r gormReader) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	if err := r.forUpdate(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return &p, nil
}

func (r gormReader) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("name ASC").Find(&products).Error
	return products, err
}

func (r gormReader) FindProductMovements(ctx context.Context, productID uuid.UUID, date time.Time) ([]model.ProductMovement, error) {
	var moves []model.ProductMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND date = ?", productID, date).
		Find(&moves).Error
	return moves, err
}

type gormTx struct {
	gormReader
	now *time.Time
}

// Now returns the transaction start time reported by PostgreSQL, which is
// constant for the whole transaction.
func (t *gormTx) Now(ctx context.Context) (time.Time, error) {
	if t.now != nil {
		return *t.now, nil
	}
	var now time.Time
	if err := t.db.WithContext(ctx).Raw("SELECT now()").Row().Scan(&now); err != nil {
		return time.Time{}, err
	}
	now = now.UTC()
	t.now = &now
	return now, nil
}

func (t *gormTx) CreateCategory(ctx context.Context, c *model.Category) error {
	if c.Balance == "" {
		c.Balance = "0.00"
	}
	return mapWriteErr(t.db.WithContext(ctx).Create(c).Error)
}

func (t *gormTx) UpdateCategoryBalance(ctx context.Context, id uuid.UUID, balance string) error {
	res := t.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Update("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *gormTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	return mapWriteErr(t.db.WithContext(ctx).Create(tr).Error)
}

func (t *gormTx) CreateProduct(ctx context.Context, p *model.Product) error {
	return mapWriteErr(t.db.WithContext(ctx).Create(p).Error)
}

func (t *gormTx) UpdateProductQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return updateProductQuantity(t.db.WithContext(ctx), id, quantity)
}

func (t *gormTx) CreateWarehouseDocument(ctx context.Context, d *model.WarehouseDocument) error {
	return mapWriteErr(t.db.WithContext(ctx).Create(d).Error)
}

func (t *gormTx) CreateProductMovement(ctx context.Context, m *model.ProductMovement) error {
	return mapWriteErr(t.db.WithContext(ctx).Create(m).Error)
}

func (t *gormTx) CreateReservation(ctx context.Context, r *model.DocumentReservation) error {
	return mapWriteErr(t.db.WithContext(ctx).Create(r).Error)
}

func (t *gormTx) ReleaseReservations(ctx context.Context, docType model.TransactionType, session string) error {
	return t.db.WithContext(ctx).Unscoped().
		Where("type = ? AND session = ?", docType, session).
		Delete(&model.DocumentReservation{}).Error
}

func (t *gormTx) PurgeExpiredReservations(ctx context.Context, docType model.TransactionType, now time.Time) error {
	return t.db.WithContext(ctx).Unscoped().
		Where("type = ? AND expires_at <= ?", docType, now).
		Delete(&model.DocumentReservation{}).Error
}

func updateProductQuantity(db *gorm.DB, id uuid.UUID, quantity int) error {
	res := db.Model(&model.Product{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// gormBatch queues writes and applies them in one transaction on Commit.
// Deletes are soft, matching the rest of the schema.
type gormBatch struct {
	repo *ledgerRepo
	ops  []func(db *gorm.DB) error
}

func (b *gormBatch) DeleteTransaction(id uuid.UUID) {
	b.ops = append(b.ops, func(db *gorm.DB) error {
		return db.Delete(&model.Transaction{}, "id = ?", id).Error
	})
}

func (b *gormBatch) DeleteWarehouseDocument(id uuid.UUID) {
	b.ops = append(b.ops, func(db *gorm.DB) error {
		return db.Delete(&model.WarehouseDocument{}, "id = ?", id).Error
	})
}

func (b *gormBatch) DeleteProductMovement(id uuid.UUID) {
	b.ops = append(b.ops, func(db *gorm.DB) error {
		return db.Delete(&model.ProductMovement{}, "id = ?", id).Error
	})
}

func (b *gormBatch) AdjustProductQuantity(id uuid.UUID, delta int, floorZero bool) {
	b.ops = append(b.ops, func(db *gorm.DB) error {
		expr := gorm.Expr("quantity + ?", delta)
		if floorZero {
			expr = gorm.Expr("GREATEST(quantity + ?, 0)", delta)
		}
		res := db.Model(&model.Product{}).Where("id = ?", id).Update("quantity", expr)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrNotFound
		}
		return nil
	})
}

func (b *gormBatch) Commit(ctx context.Context) error {
	return b.repo.withRetry(ctx, func(ctx context.Context) error {
		return b.repo.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			for _, op := range b.ops {
				if err := op(db); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
