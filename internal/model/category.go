package model

// Category is a ledger bucket with a running balance. Balance is kept in the
// amount package's string form and always equals the sum of the category's
// transactions.
type Category struct {
	BaseModel
	Title   string `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	Balance string `gorm:"type:varchar(32);not null;default:'0.00'" json:"balance"`
}
