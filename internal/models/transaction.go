package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction type constants
const (
	TransactionTypeBuy      = "buy"
	TransactionTypeSell     = "sell"
	TransactionTypeDividend = "dividend"
	TransactionTypeSplit    = "split"
)

// Transaction is a journal entry. For splits, Shares carries the ratio
// (new shares per old share).
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	PortfolioID uuid.UUID       `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Type        string          `json:"type"`
	Shares      decimal.Decimal `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	Fees        decimal.Decimal `json:"fees"`
	ExecutedAt  time.Time       `json:"executed_at"`
	Notes       string          `json:"notes,omitempty"`
	Source      string          `json:"source,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	// Seq is the order in which the ledger applied this transaction's effects.
	// Replaying an amended transaction assigns a new value.
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CashDelta returns the signed change this transaction makes to the cash balance
func (t *Transaction) CashDelta() decimal.Decimal {
	gross := t.Shares.Mul(t.Price)
	switch t.Type {
	case TransactionTypeBuy:
		return gross.Add(t.Fees).Neg()
	case TransactionTypeSell:
		return gross.Sub(t.Fees)
	case TransactionTypeDividend:
		return gross
	default:
		return decimal.Zero
	}
}

// IsTypeValid reports whether the transaction type is one the ledger understands
func IsTypeValid(txType string) bool {
	switch txType {
	case TransactionTypeBuy, TransactionTypeSell, TransactionTypeDividend, TransactionTypeSplit:
		return true
	}
	return false
}

// TransactionAmendment lists the fields a caller wants to change. Nil fields keep
// their current value.
type TransactionAmendment struct {
	Symbol     *string          `json:"symbol,omitempty"`
	Type       *string          `json:"type,omitempty"`
	Shares     *decimal.Decimal `json:"shares,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Fees       *decimal.Decimal `json:"fees,omitempty"`
	ExecutedAt *time.Time       `json:"executed_at,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
}

// Merge returns a copy of t with the amended fields applied
func (a TransactionAmendment) Merge(t Transaction) Transaction {
	if a.Symbol != nil {
		t.Symbol = *a.Symbol
	}
	if a.Type != nil {
		t.Type = *a.Type
	}
	if a.Shares != nil {
		t.Shares = *a.Shares
	}
	if a.Price != nil {
		t.Price = *a.Price
	}
	if a.Fees != nil {
		t.Fees = *a.Fees
	}
	if a.ExecutedAt != nil {
		t.ExecutedAt = *a.ExecutedAt
	}
	if a.Notes != nil {
		t.Notes = *a.Notes
	}
	return t
}

// TransactionFilter narrows a journal listing. Zero values match everything.
type TransactionFilter struct {
	Symbol string `json:"symbol,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
