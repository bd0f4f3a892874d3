package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxLot is one open purchase, consumed FIFO by sells
type TaxLot struct {
	ID              uuid.UUID       `json:"id"`
	PortfolioID     uuid.UUID       `json:"portfolio_id"`
	Symbol          string          `json:"symbol"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	SharesRemaining decimal.Decimal `json:"shares_remaining"`
	CostPerShare    decimal.Decimal `json:"cost_per_share"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	CreatedAt       time.Time       `json:"created_at"`
}
