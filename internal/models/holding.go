package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Holding is the aggregated position in one symbol. It is derived from tax lots
// and the buy history and is never the source of truth.
type Holding struct {
	PortfolioID       uuid.UUID       `json:"portfolio_id"`
	Symbol            string          `json:"symbol"`
	TotalShares       decimal.Decimal `json:"total_shares"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	FirstPurchaseDate time.Time       `json:"first_purchase_date"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CostBasis returns total shares times average cost
func (h *Holding) CostBasis() decimal.Decimal {
	return h.TotalShares.Mul(h.AverageCost)
}
