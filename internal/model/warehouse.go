package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentNumberWidth is the zero-padded length of a warehouse document number.
const DocumentNumberWidth = 6

type WarehouseItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

type WarehouseItems []WarehouseItem

func (w WarehouseItems) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	return string(b), err
}

func (w *WarehouseItems) Scan(src interface{}) error {
	return scanJSON(src, w)
}

// WarehouseDocument records an inventory movement. It is tied 1:1 to the
// transaction that booked its money side.
type WarehouseDocument struct {
	BaseModel
	Type                 TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	DocumentNumber       string          `gorm:"type:varchar(6);not null" json:"document_number"`
	Items                WarehouseItems  `gorm:"type:jsonb;not null;default:'[]'" json:"items"`
	RelatedTransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"related_transaction_id"`
	Date                 time.Time       `gorm:"not null" json:"date"`
}

// ProductMovement is one line of a product's stock history. Quantity is
// signed: positive for receipts, negative for issues.
type ProductMovement struct {
	BaseModel
	ProductID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	WarehouseDocumentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"warehouse_document_id"`
	DocumentNumber      string          `gorm:"type:varchar(6)" json:"document_number"`
	Type                TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity            int             `gorm:"not null" json:"quantity"`
	Date                time.Time       `gorm:"not null;index" json:"date"`
}
