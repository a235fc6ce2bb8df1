package service

import (
	"context"
	"time"

	"go-accounting-ws/internal/amount"
	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 366
)

type DashboardService interface {
	Summary(ctx context.Context, days int) (*DashboardSummary, error)
}

type DashboardSummary struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Income           string    `json:"income"`
	Expense          string    `json:"expense"`
	Net              string    `json:"net"`
	TransactionCount int64     `json:"transaction_count"`
	CategoryCount    int       `json:"category_count"`
	TotalBalance     string    `json:"total_balance"`
}

type dashboardService struct {
	store ledger.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewDashboardService(store ledger.Store, log *zap.Logger) DashboardService {
	return &dashboardService{store: store, log: log, now: time.Now}
}

// Summary totals the transactions of the last days days. Zero means the
// default window of 30 days.
func (s *dashboardService) Summary(ctx context.Context, days int) (*DashboardSummary, error) {
	if days == 0 {
		days = defaultSummaryDays
	}
	if days < 0 || days > maxSummaryDays {
		return nil, apperrors.NewValidationError("days must be between 1 and 366")
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)

	totals, err := s.store.SummarizeTransactions(ctx, from, to)
	if err != nil {
		s.log.Error("summarize transactions failed", zap.Error(err))
		return nil, apperrors.NewOperationFailed("build dashboard summary", err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.log.Error("list categories failed", zap.Error(err))
		return nil, apperrors.NewOperationFailed("build dashboard summary", err)
	}

	total := decimal.Zero
	for _, c := range categories {
		total = total.Add(amount.MustParse(c.Balance))
	}

	return &DashboardSummary{
		From:             from,
		To:               to,
		Income:           amount.Format(totals.Income),
		Expense:          amount.Format(totals.Expense),
		Net:              amount.Format(totals.Income.Sub(totals.Expense)),
		TransactionCount: totals.Count,
		CategoryCount:    len(categories),
		TotalBalance:     amount.Format(total),
	}, nil
}
