package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// checkFunds rejects a buy whose cost exceeds the available cash
func checkFunds(s *State, tx *models.Transaction) error {
	cost := round(tx.CashDelta().Neg())
	if cost.GreaterThan(s.Portfolio.CashBalance) {
		return wrapf(ErrInsufficientFunds, "buy of %s %s costs %s, cash balance is %s",
			tx.Shares, tx.Symbol, cost, s.Portfolio.CashBalance)
	}
	return nil
}

// applyDelta rounds delta to Scale before booking it. Rounding is symmetric, so
// booking the negated delta undoes it exactly.
func applyDelta(s *State, delta decimal.Decimal) {
	s.Portfolio.CashBalance = s.Portfolio.CashBalance.Add(round(delta))
}
