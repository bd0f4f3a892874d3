package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger event type constants
const (
	EventTransactionApplied = "TRANSACTION_APPLIED"
	EventTransactionAmended = "TRANSACTION_AMENDED"
	EventTransactionRemoved = "TRANSACTION_REMOVED"
	EventCashAdjusted       = "CASH_ADJUSTED"
)

// EventTradeDetected is the only inbound broker event type the ledger consumes
const EventTradeDetected = "TRADE_DETECTED"

// LedgerEvent is published to Kafka after a ledger change commits
type LedgerEvent struct {
	EventType   string       `json:"event_type"`
	PortfolioID uuid.UUID    `json:"portfolio_id"`
	Transaction *Transaction `json:"transaction,omitempty"`
	CashBalance string       `json:"cash_balance,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TradeEvent is a broker execution delivered over Kafka
type TradeEvent struct {
	EventType   string         `json:"event_type"`
	Source      string         `json:"source"`
	UserID      string         `json:"user_id"`
	PortfolioID string         `json:"portfolio_id"`
	Timestamp   string         `json:"timestamp"`
	Data        TradeEventData `json:"data"`
}

// TradeEventData carries the execution details. Numbers arrive as strings.
type TradeEventData struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Quantity     string  `json:"quantity"`
	AveragePrice string  `json:"average_price"`
	Fees         string  `json:"fees,omitempty"`
	ExecutedAt   *string `json:"executed_at,omitempty"`
}
