package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotSale records the consumption of (part of) a tax lot by a sell transaction
type LotSale struct {
	ID            uuid.UUID       `json:"id"`
	PortfolioID   uuid.UUID       `json:"portfolio_id"`
	TaxLotID      uuid.UUID       `json:"tax_lot_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	SharesSold    decimal.Decimal `json:"shares_sold"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	CostPerShare  decimal.Decimal `json:"cost_per_share"`
	RealizedGain  decimal.Decimal `json:"realized_gain"`
	IsShortTerm   bool            `json:"is_short_term"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	SaleDate      time.Time       `json:"sale_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GainsFilter narrows a realized gains query. Zero values match everything.
type GainsFilter struct {
	Year   int    `json:"year,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// TermSummary aggregates realized gains for one holding-period class
type TermSummary struct {
	Total      decimal.Decimal `json:"total"`
	Gains      decimal.Decimal `json:"gains"`
	Losses     decimal.Decimal `json:"losses"`
	SharesSold decimal.Decimal `json:"shares_sold"`
	Count      int             `json:"count"`
}

// RealizedGainsSummary aggregates a set of lot sales
type RealizedGainsSummary struct {
	TotalRealized decimal.Decimal `json:"total_realized"`
	TotalGains    decimal.Decimal `json:"total_gains"`
	TotalLosses   decimal.Decimal `json:"total_losses"`
	ShortTerm     TermSummary     `json:"short_term"`
	LongTerm      TermSummary     `json:"long_term"`
	RecordCount   int             `json:"record_count"`
}

// RealizedGainsReport is the response for a realized gains query
type RealizedGainsReport struct {
	Records []*LotSale           `json:"records"`
	Summary RealizedGainsSummary `json:"summary"`
}
