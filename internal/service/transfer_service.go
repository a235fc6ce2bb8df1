package service

import (
	"context"
	"fmt"
	"strings"

	"go-accounting-ws/internal/amount"
	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/metrics"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferService interface {
	Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)
}

type TransferRequest struct {
	SourceID    uuid.UUID         `json:"source_id" validate:"uuid_required"`
	TargetID    uuid.UUID         `json:"target_id" validate:"uuid_required"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Attachments model.Attachments `json:"attachments"`
	// IsSalary is only written to the legs when the caller sets it.
	IsSalary *bool `json:"is_salary,omitempty"`
}

type TransferResult struct {
	Debit  model.Transaction `json:"debit"`
	Credit model.Transaction `json:"credit"`
	Source model.Category    `json:"source"`
	Target model.Category    `json:"target"`
}

type transferService struct {
	store   ledger.Store
	events  ws.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewTransferService(store ledger.Store, events ws.Publisher, m *metrics.Metrics, log *zap.Logger) TransferService {
	return &transferService{store: store, events: events, metrics: m, log: log}
}

// Transfer moves req.Amount from the source category to the target category.
// Both legs and both balances are written in one store transaction.
func (s *transferService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	result, err := s.transfer(ctx, req)
	s.metrics.ObserveTransfer(err)
	if err != nil {
		return nil, err
	}

	publish(s.events, "transfer_completed", newTransferEvent(result))
	return result, nil
}

func (s *transferService) transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)

	var result *TransferResult
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		source, err := tx.GetCategory(ctx, req.SourceID)
		if err != nil {
			return notFoundAs(err, "source category", req.SourceID)
		}
		target, err := tx.GetCategory(ctx, req.TargetID)
		if err != nil {
			return notFoundAs(err, "target category", req.TargetID)
		}

		sourceBalance, err := amount.Parse(source.Balance)
		if err != nil {
			return fmt.Errorf("source balance %q: %w", source.Balance, err)
		}
		targetBalance, err := amount.Parse(target.Balance)
		if err != nil {
			return fmt.Errorf("target balance %q: %w", target.Balance, err)
		}

		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}

		debitID, creditID := uuid.New(), uuid.New()
		debitRef, creditRef := debitID, debitID

		debit := model.Transaction{
			BaseModel:            model.BaseModel{ID: debitID},
			CategoryID:           source.ID,
			FromUser:             source.Title,
			ToUser:               target.Title,
			Amount:               req.Amount.Neg(),
			Description:          description,
			Type:                 model.TxExpense,
			Date:                 now,
			RelatedTransactionID: &debitRef,
			Attachments:          req.Attachments,
			IsSalary:             req.IsSalary,
		}
		credit := model.Transaction{
			BaseModel:            model.BaseModel{ID: creditID},
			CategoryID:           target.ID,
			FromUser:             source.Title,
			ToUser:               target.Title,
			Amount:               req.Amount,
			Description:          description,
			Type:                 model.TxIncome,
			Date:                 now,
			RelatedTransactionID: &creditRef,
			Attachments:          req.Attachments,
			IsSalary:             req.IsSalary,
		}
		if err := tx.CreateTransaction(ctx, &debit); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &credit); err != nil {
			return err
		}

		source.Balance = amount.Format(sourceBalance.Sub(req.Amount))
		target.Balance = amount.Format(targetBalance.Add(req.Amount))
		if err := tx.UpdateCategoryBalance(ctx, source.ID, source.Balance); err != nil {
			return err
		}
		if err := tx.UpdateCategoryBalance(ctx, target.ID, target.Balance); err != nil {
			return err
		}

		result = &TransferResult{Debit: debit, Credit: credit, Source: *source, Target: *target}
		return nil
	})
	if err != nil {
		if isTyped(err) {
			return nil, err
		}
		s.log.Error("transfer failed",
			zap.String("source_id", req.SourceID.String()),
			zap.String("target_id", req.TargetID.String()),
			zap.String("amount", amount.Format(req.Amount)),
			zap.Error(err))
		return nil, apperrors.NewOperationFailed("transfer funds", err)
	}

	s.log.Info("transfer completed",
		zap.String("debit_id", result.Debit.ID.String()),
		zap.String("credit_id", result.Credit.ID.String()),
		zap.String("amount", amount.Format(req.Amount)))
	return result, nil
}

func validateTransfer(req *TransferRequest) error {
	if req == nil {
		return apperrors.NewValidationError("transfer request is required")
	}
	if !req.Amount.IsPositive() {
		return apperrors.NewValidationError("transfer amount must be greater than zero")
	}
	if !amount.HasValidScale(req.Amount) {
		return apperrors.NewValidationError("transfer amount must have at most two decimal places")
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("transfer description is required")
	}
	if err := validate(req); err != nil {
		return err
	}
	if req.SourceID == req.TargetID {
		return apperrors.NewValidationError("source and target categories must differ")
	}
	return nil
}

// transferEvent is the websocket payload for a completed transfer.
type transferEvent struct {
	DebitID  uuid.UUID `json:"debit_id"`
	CreditID uuid.UUID `json:"credit_id"`
	SourceID uuid.UUID `json:"source_id"`
	TargetID uuid.UUID `json:"target_id"`
	Amount   string    `json:"amount"`
	Source   string    `json:"source_balance"`
	Target   string    `json:"target_balance"`
}

func newTransferEvent(r *TransferResult) transferEvent {
	return transferEvent{
		DebitID:  r.Debit.ID,
		CreditID: r.Credit.ID,
		SourceID: r.Source.ID,
		TargetID: r.Target.ID,
		Amount:   amount.Format(r.Credit.Amount),
		Source:   r.Source.Balance,
		Target:   r.Target.Balance,
	}
}
