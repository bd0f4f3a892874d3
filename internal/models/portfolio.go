package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio owns a cash balance and every ledger entity derived from its transactions
type Portfolio struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HoldingValuation pairs a holding with the latest known quote
type HoldingValuation struct {
	Holding        *Holding            `json:"holding"`
	LastPrice      decimal.NullDecimal `json:"last_price"`
	PriceDate      *time.Time          `json:"price_date,omitempty"`
	CostBasis      decimal.Decimal     `json:"cost_basis"`
	MarketValue    decimal.NullDecimal `json:"market_value"`
	UnrealizedGain decimal.NullDecimal `json:"unrealized_gain"`
}

// Valuation is a display-only snapshot of a portfolio priced at the latest quotes.
// It never feeds back into the ledger.
type Valuation struct {
	PortfolioID      uuid.UUID           `json:"portfolio_id"`
	CashBalance      decimal.Decimal     `json:"cash_balance"`
	Holdings         []*HoldingValuation `json:"holdings"`
	TotalCostBasis   decimal.Decimal     `json:"total_cost_basis"`
	TotalMarketValue decimal.Decimal     `json:"total_market_value"`
	TotalValue       decimal.Decimal     `json:"total_value"`
	// Symbols without a quote are excluded from the market value totals
	UnpricedSymbols []string  `json:"unpriced_symbols,omitempty"`
	AsOf            time.Time `json:"as_of"`
}
