package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyQuote is the closing price of a symbol on a trading day, used only for
// valuation display
type DailyQuote struct {
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume,omitempty"`
	Source    string          `json:"source,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
