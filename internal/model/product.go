package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	SKU      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Quantity int             `gorm:"default:0" json:"quantity" validate:"gte=0"`
	Unit     string          `gorm:"type:varchar(20)" json:"unit"`
	Price    decimal.Decimal `gorm:"type:numeric(20,2);default:0" json:"price"`
}
