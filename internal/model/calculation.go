package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Calculation is the append-only record of a served tax calculation.
// Rows are never updated or deleted.
type Calculation struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID           `gorm:"type:uuid;not null;index:idx_calculations_user_created,priority:1" json:"user_id"`
	TaxType    int                 `gorm:"not null" json:"tax_type"`
	Operation  int                 `gorm:"not null" json:"operation"`
	Amount     decimal.Decimal     `gorm:"type:numeric;not null" json:"amount"`
	CustomRate decimal.NullDecimal `gorm:"type:numeric" json:"custom_rate"`
	Regime     int                 `gorm:"not null" json:"new"` // 0 = legacy, 1 = current
	Total      decimal.Decimal     `gorm:"type:numeric;not null" json:"total"`
	CreatedAt  time.Time           `gorm:"autoCreateTime;index:idx_calculations_user_created,priority:2,sort:desc" json:"created_at"`
}

func (Calculation) TableName() string {
	return "calculations"
}
