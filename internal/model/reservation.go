package model

import "time"

// DocumentReservation holds a document number for one session until the
// document is committed, the session clears it, or ExpiresAt passes.
// (Type, Number) is unique.
type DocumentReservation struct {
	BaseModel
	Type      TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Number    string          `gorm:"type:varchar(6);not null" json:"number"`
	Session   string          `gorm:"type:varchar(255);not null;index" json:"session"`
	ExpiresAt time.Time       `gorm:"not null" json:"expires_at"`
}
