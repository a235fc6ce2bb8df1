package service

import (
	"context"
	"errors"
	"strings"

	"go-accounting-ws/internal/amount"
	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CategoryService interface {
	Create(ctx context.Context, req *CreateCategoryRequest) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Category, error)
	ListTransactions(ctx context.Context, id uuid.UUID) ([]model.Transaction, error)
	// RecalculateBalance rewrites the balance of a category as the sum of
	// its remaining transactions and returns the new value.
	RecalculateBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	// RecalculateAll recalculates every category and returns how many
	// balances changed.
	RecalculateAll(ctx context.Context) (int, error)
}

type CreateCategoryRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	// OpeningBalance is booked as an income transaction so the balance keeps
	// matching the sum of the category's transactions.
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type categoryService struct {
	store ledger.Store
	log   *zap.Logger
}

func NewCategoryService(store ledger.Store, log *zap.Logger) CategoryService {
	return &categoryService{store: store, log: log}
}

func (s *categoryService) Create(ctx context.Context, req *CreateCategoryRequest) (*model.Category, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.OpeningBalance.IsNegative() || !amount.HasValidScale(req.OpeningBalance) {
		return nil, apperrors.NewValidationError("opening balance must be a non-negative amount with at most two decimal places")
	}

	category := &model.Category{Title: req.Title, Balance: amount.Format(req.OpeningBalance)}
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		c := *category
		if err := tx.CreateCategory(ctx, &c); err != nil {
			return err
		}
		if req.OpeningBalance.IsPositive() {
			now, err := tx.Now(ctx)
			if err != nil {
				return err
			}
			opening := &model.Transaction{
				CategoryID:  c.ID,
				ToUser:      c.Title,
				Amount:      req.OpeningBalance,
				Description: "Opening balance",
				Type:        model.TxIncome,
				Date:        now,
			}
			if err := tx.CreateTransaction(ctx, opening); err != nil {
				return err
			}
		}
		*category = c
		return nil
	})
	if err != nil {
		s.log.Error("create category failed", zap.String("title", req.Title), zap.Error(err))
		return nil, apperrors.NewOperationFailed("create category", err)
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.log.Error("list categories failed", zap.Error(err))
		return nil, apperrors.NewOperationFailed("list categories", err)
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("category", id.String())
		}
		return nil, apperrors.NewOperationFailed("get category", err)
	}
	return category, nil
}

func (s *categoryService) ListTransactions(ctx context.Context, id uuid.UUID) ([]model.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	transactions, err := s.store.ListTransactionsByCategory(ctx, id)
	if err != nil {
		return nil, apperrors.NewOperationFailed("list transactions", err)
	}
	return transactions, nil
}

func (s *categoryService) RecalculateBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		sum, err := tx.SumTransactionAmounts(ctx, id)
		if err != nil {
			return err
		}
		balance = sum
		return tx.UpdateCategoryBalance(ctx, id, amount.Format(sum))
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return decimal.Zero, apperrors.NewNotFoundError("category", id.String())
		}
		return decimal.Zero, apperrors.NewOperationFailed("recalculate balance", err)
	}
	return balance, nil
}

func (s *categoryService) RecalculateAll(ctx context.Context) (int, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, apperrors.NewOperationFailed("list categories", err)
	}

	changed := 0
	for _, c := range categories {
		balance, err := s.RecalculateBalance(ctx, c.ID)
		if err != nil {
			if apperrors.IsNotFoundError(err) {
				continue
			}
			return changed, err
		}
		if !balance.Equal(amount.MustParse(c.Balance)) {
			s.log.Warn("category balance drifted",
				zap.String("category_id", c.ID.String()),
				zap.String("stored", c.Balance),
				zap.String("recalculated", amount.Format(balance)))
			changed++
		}
	}
	return changed, nil
}
