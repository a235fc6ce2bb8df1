package service

import (
	"context"
	"errors"
	"strings"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/metrics"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReversalService interface {
	DeleteTransaction(ctx context.Context, id string) error
}

type reversalService struct {
	store      ledger.Store
	categories CategoryService
	events     ws.Publisher
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewReversalService(store ledger.Store, categories CategoryService, events ws.Publisher, m *metrics.Metrics, log *zap.Logger) ReversalService {
	return &reversalService{store: store, categories: categories, events: events, metrics: m, log: log}
}

// DeleteTransaction removes a transaction together with its paired leg. For
// warehouse operations the linked documents and movements go too and stock
// is rolled back. Balances of every touched category are then recalculated.
func (s *reversalService) DeleteTransaction(ctx context.Context, id string) error {
	deleted, err := s.deleteTransaction(ctx, id)
	s.metrics.ObserveReversal(err)
	if err != nil {
		return err
	}

	publish(s.events, "transaction_deleted", deleted)
	return nil
}

type deletedTransaction struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Removed       []uuid.UUID `json:"removed"`
	Categories    []uuid.UUID `json:"categories"`
}

func (s *reversalService) deleteTransaction(ctx context.Context, rawID string) (*deletedTransaction, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, apperrors.NewValidationError("transaction id is required")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.NewNotFoundError("transaction", rawID)
	}

	record, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("transaction", rawID)
		}
		return nil, s.fail(id, err)
	}

	batch := s.store.NewBatch()
	batch.DeleteTransaction(record.ID)
	result := &deletedTransaction{
		TransactionID: record.ID,
		Removed:       []uuid.UUID{record.ID},
		Categories:    []uuid.UUID{record.CategoryID},
	}

	if record.IsWarehouseOperation {
		if err := s.rollbackWarehouse(ctx, batch, record); err != nil {
			return nil, s.fail(id, err)
		}
	}

	paired, err := s.findPaired(ctx, record)
	if err != nil {
		return nil, s.fail(id, err)
	}
	for _, p := range paired {
		batch.DeleteTransaction(p.ID)
		result.Removed = append(result.Removed, p.ID)
		if !containsID(result.Categories, p.CategoryID) {
			result.Categories = append(result.Categories, p.CategoryID)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, s.fail(id, err)
	}

	for _, categoryID := range result.Categories {
		if _, err := s.categories.RecalculateBalance(ctx, categoryID); err != nil {
			if apperrors.IsNotFoundError(err) {
				s.log.Warn("category of deleted transaction is gone",
					zap.String("transaction_id", id.String()),
					zap.String("category_id", categoryID.String()))
				continue
			}
			return nil, s.fail(id, err)
		}
	}

	s.log.Info("transaction deleted",
		zap.String("transaction_id", id.String()),
		zap.Int("removed", len(result.Removed)))
	return result, nil
}

// findPaired returns the other legs of record, looking both ways: records
// that point at the same RelatedTransactionID as record and records that
// point at record itself.
func (s *reversalService) findPaired(ctx context.Context, record *model.Transaction) ([]model.Transaction, error) {
	relatedID := record.ID
	if record.RelatedTransactionID != nil {
		relatedID = *record.RelatedTransactionID
	}

	found, err := s.store.FindRelatedTransactions(ctx, relatedID)
	if err != nil {
		return nil, err
	}
	if relatedID != record.ID {
		// the debit leg is the anchor; it may not point at itself in
		// older data
		anchor, err := s.store.GetTransaction(ctx, relatedID)
		switch {
		case err == nil:
			found = append(found, *anchor)
		case !errors.Is(err, ledger.ErrNotFound):
			return nil, err
		}
	}

	var paired []model.Transaction
	seen := map[uuid.UUID]bool{record.ID: true}
	for _, t := range found {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		paired = append(paired, t)
	}
	return paired, nil
}

// rollbackWarehouse adds to batch the document deletions and stock
// corrections undoing the warehouse documents of record. Stock changes are
// queued as deltas so writes committed in the meantime are kept.
func (s *reversalService) rollbackWarehouse(ctx context.Context, batch ledger.Batch, record *model.Transaction) error {
	docs, err := s.store.FindWarehouseDocumentsByTransaction(ctx, record.ID)
	if err != nil {
		return err
	}

	present := map[uuid.UUID]bool{}
	for _, doc := range docs {
		for _, item := range doc.Items {
			ok, seen := present[item.ProductID]
			if !seen {
				_, err := s.store.GetProduct(ctx, item.ProductID)
				switch {
				case err == nil:
					ok = true
				case errors.Is(err, ledger.ErrNotFound):
					s.log.Warn("product of warehouse document is gone",
						zap.String("document_id", doc.ID.String()),
						zap.String("product_id", item.ProductID.String()))
				default:
					return err
				}
				present[item.ProductID] = ok

				if ok {
					movements, err := s.store.FindProductMovements(ctx, item.ProductID, record.Date)
					if err != nil {
						return err
					}
					for _, m := range movements {
						batch.DeleteProductMovement(m.ID)
					}
				}
			}
			if !ok {
				continue
			}

			if doc.Type == model.TxExpense {
				batch.AdjustProductQuantity(item.ProductID, item.Quantity, false)
			} else {
				batch.AdjustProductQuantity(item.ProductID, -item.Quantity, true)
			}
		}
		batch.DeleteWarehouseDocument(doc.ID)
	}
	return nil
}

func (s *reversalService) fail(id uuid.UUID, err error) error {
	if isTyped(err) {
		return err
	}
	s.log.Error("delete transaction failed", zap.String("transaction_id", id.String()), zap.Error(err))
	return apperrors.NewOperationFailed("delete transaction", err)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
