package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-accounting-ws/internal/amount"
	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const warehouseParty = "Warehouse"

type WarehouseService interface {
	CreateProduct(ctx context.Context, req *CreateProductRequest) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateDocument(ctx context.Context, session string, req *CreateDocumentRequest) (*DocumentResult, error)
}

type CreateProductRequest struct {
	SKU      string          `json:"sku" validate:"required,max=50"`
	Name     string          `json:"name" validate:"required,max=255"`
	Unit     string          `json:"unit" validate:"max=20"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

type CreateDocumentRequest struct {
	Type           model.TransactionType `json:"type" validate:"required,oneof=income expense"`
	DocumentNumber string                `json:"document_number" validate:"required,len=6,numeric"`
	CategoryID     uuid.UUID             `json:"category_id" validate:"uuid_required"`
	Amount         decimal.Decimal       `json:"amount"`
	Description    string                `json:"description"`
	Items          model.WarehouseItems  `json:"items" validate:"required,min=1,dive"`
	Attachments    model.Attachments     `json:"attachments"`
}

type DocumentResult struct {
	Document    model.WarehouseDocument `json:"document"`
	Transaction model.Transaction       `json:"transaction"`
	Category    model.Category          `json:"category"`
}

type warehouseService struct {
	store     ledger.Store
	numbering NumberingService
	events    ws.Publisher
	log       *zap.Logger
}

func NewWarehouseService(store ledger.Store, numbering NumberingService, events ws.Publisher, log *zap.Logger) WarehouseService {
	return &warehouseService{store: store, numbering: numbering, events: events, log: log}
}

func (s *warehouseService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*model.Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Price.IsNegative() || !amount.HasValidScale(req.Price) {
		return nil, apperrors.NewValidationError("price must be a non-negative amount with at most two decimal places")
	}

	product := &model.Product{SKU: req.SKU, Name: req.Name, Unit: req.Unit, Price: req.Price, Quantity: req.Quantity}
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		p := *product
		if err := tx.CreateProduct(ctx, &p); err != nil {
			return err
		}
		*product = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("product with SKU %s already exists", req.SKU))
		}
		s.log.Error("create product failed", zap.String("sku", req.SKU), zap.Error(err))
		return nil, apperrors.NewOperationFailed("create product", err)
	}
	return product, nil
}

func (s *warehouseService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.log.Error("list products failed", zap.Error(err))
		return nil, apperrors.NewOperationFailed("list products", err)
	}
	return products, nil
}

// CreateDocument books a warehouse document under a number previously handed
// out by the numbering service. The money side, the document, the stock
// changes and the movements are written in one store transaction.
func (s *warehouseService) CreateDocument(ctx context.Context, session string, req *CreateDocumentRequest) (*DocumentResult, error) {
	if req == nil {
		return nil, apperrors.NewValidationError("document request is required")
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() || !amount.HasValidScale(req.Amount) {
		return nil, apperrors.NewValidationError("amount must be a non-negative amount with at most two decimal places")
	}
	if strings.TrimSpace(session) == "" {
		return nil, apperrors.NewValidationError("session is required")
	}

	// one line per product
	quantities := map[uuid.UUID]int{}
	var products []uuid.UUID
	for _, item := range req.Items {
		if _, ok := quantities[item.ProductID]; !ok {
			products = append(products, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Warehouse document %s", req.DocumentNumber)
	}

	var result *DocumentResult
	err := s.store.RunInTransaction(ctx, func(tx ledger.Tx) error {
		now, err := tx.Now(ctx)
		if err != nil {
			return err
		}

		exists, err := tx.DocumentNumberExists(ctx, req.Type, req.DocumentNumber)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewContentionError("create document "+req.DocumentNumber, 1)
		}
		r, err := tx.GetReservation(ctx, req.Type, req.DocumentNumber, now)
		switch {
		case err == nil && r.Session != session:
			return apperrors.NewContentionError("create document "+req.DocumentNumber, 1)
		case err != nil && !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		category, err := tx.GetCategory(ctx, req.CategoryID)
		if err != nil {
			return notFoundAs(err, "category", req.CategoryID)
		}
		balance, err := amount.Parse(category.Balance)
		if err != nil {
			return fmt.Errorf("category balance %q: %w", category.Balance, err)
		}

		stock := make(map[uuid.UUID]int, len(products))
		for _, id := range products {
			p, err := tx.GetProduct(ctx, id)
			if err != nil {
				return notFoundAs(err, "product", id)
			}
			next := p.Quantity + quantities[id]
			if req.Type == model.TxExpense {
				next = p.Quantity - quantities[id]
				if next < 0 {
					return apperrors.NewValidationError(fmt.Sprintf("insufficient stock for %s: have %d, need %d", p.Name, p.Quantity, quantities[id]))
				}
			}
			stock[id] = next
		}

		trx := model.Transaction{
			CategoryID:           category.ID,
			Amount:               req.Amount,
			Description:          description,
			Type:                 req.Type,
			Date:                 now,
			Attachments:          req.Attachments,
			IsWarehouseOperation: true,
		}
		if req.Type == model.TxIncome {
			trx.FromUser, trx.ToUser = warehouseParty, category.Title
			balance = balance.Add(req.Amount)
		} else {
			trx.FromUser, trx.ToUser = category.Title, warehouseParty
			trx.Amount = req.Amount.Neg()
			balance = balance.Sub(req.Amount)
		}
		if err := tx.CreateTransaction(ctx, &trx); err != nil {
			return err
		}
		category.Balance = amount.Format(balance)
		if err := tx.UpdateCategoryBalance(ctx, category.ID, category.Balance); err != nil {
			return err
		}

		doc := model.WarehouseDocument{
			Type:                 req.Type,
			DocumentNumber:       req.DocumentNumber,
			Items:                req.Items,
			RelatedTransactionID: trx.ID,
			Date:                 now,
		}
		if err := tx.CreateWarehouseDocument(ctx, &doc); err != nil {
			if errors.Is(err, ledger.ErrDuplicate) {
				return apperrors.NewContentionError("create document "+req.DocumentNumber, 1)
			}
			return err
		}

		for _, id := range products {
			if err := tx.UpdateProductQuantity(ctx, id, stock[id]); err != nil {
				return err
			}
		}
		for _, item := range req.Items {
			qty := item.Quantity
			if req.Type == model.TxExpense {
				qty = -qty
			}
			if err := tx.CreateProductMovement(ctx, &model.ProductMovement{
				ProductID:           item.ProductID,
				WarehouseDocumentID: doc.ID,
				DocumentNumber:      doc.DocumentNumber,
				Type:                req.Type,
				Quantity:            qty,
				Date:                now,
			}); err != nil {
				return err
			}
		}

		if err := tx.ReleaseReservations(ctx, req.Type, session); err != nil {
			return err
		}
		result = &DocumentResult{Document: doc, Transaction: trx, Category: *category}
		return nil
	})
	if err != nil {
		if isTyped(err) {
			return nil, err
		}
		s.log.Error("create warehouse document failed",
			zap.String("type", string(req.Type)),
			zap.String("number", req.DocumentNumber),
			zap.Error(err))
		return nil, apperrors.NewOperationFailed("create warehouse document", err)
	}

	if err := s.numbering.ClearSavedDocumentNumber(ctx, session, req.Type); err != nil {
		s.log.Warn("clear document number failed", zap.String("number", req.DocumentNumber), zap.Error(err))
	}
	publish(s.events, "warehouse_document_created", result.Document)

	s.log.Info("warehouse document created",
		zap.String("type", string(req.Type)),
		zap.String("number", req.DocumentNumber),
		zap.String("transaction_id", result.Transaction.ID.String()))
	return result, nil
}
