package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TxIncome || t == TxExpense
}

// Attachment is a file reference carried by a transaction (receipt photo etc).
type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Path       string    `json:"path"`
}

type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

func (a *Attachments) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Transaction is one signed ledger entry. Transfers write two of them that
// share RelatedTransactionID (the debit leg's ID).
type Transaction struct {
	BaseModel
	CategoryID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	FromUser             string          `gorm:"type:varchar(255)" json:"from_user"`
	ToUser               string          `gorm:"type:varchar(255)" json:"to_user"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Description          string          `gorm:"type:text" json:"description"`
	Type                 TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Date                 time.Time       `gorm:"not null;index" json:"date"`
	RelatedTransactionID *uuid.UUID      `gorm:"type:uuid;index" json:"related_transaction_id,omitempty"`
	Attachments          Attachments     `gorm:"type:jsonb;default:'[]'" json:"attachments"`
	IsSalary             *bool           `json:"is_salary,omitempty"`
	IsWarehouseOperation bool            `gorm:"default:false" json:"is_warehouse_operation"`
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported jsonb source type")
	}
}
