package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

func applyBuyToHolding(s *State, tx *models.Transaction, now time.Time) {
	h, ok := s.Holdings[tx.Symbol]
	if !ok {
		s.Holdings[tx.Symbol] = &models.Holding{
			PortfolioID:       s.Portfolio.ID,
			Symbol:            tx.Symbol,
			TotalShares:       tx.Shares,
			AverageCost:       tx.Price,
			FirstPurchaseDate: tx.ExecutedAt,
			UpdatedAt:         now,
		}
		return
	}

	newShares := h.TotalShares.Add(tx.Shares)
	h.AverageCost = weightedCost(h.TotalShares, h.AverageCost, tx.Shares, tx.Price)
	h.TotalShares = newShares
	h.UpdatedAt = now
}

// checkShares rejects a sell larger than the current position
func checkShares(s *State, tx *models.Transaction) error {
	h, ok := s.Holdings[tx.Symbol]
	if !ok {
		return wrapf(ErrInsufficientShares, "no position in %s", tx.Symbol)
	}
	if tx.Shares.GreaterThan(h.TotalShares) {
		return wrapf(ErrInsufficientShares, "cannot sell %s %s, holding %s", tx.Shares, tx.Symbol, h.TotalShares)
	}
	return nil
}

func applySellToHolding(s *State, symbol string, shares decimal.Decimal, now time.Time) {
	h := s.Holdings[symbol]
	remaining := h.TotalShares.Sub(shares)
	if !remaining.IsPositive() {
		delete(s.Holdings, symbol)
		return
	}
	h.TotalShares = remaining
	h.UpdatedAt = now
}

// applySplitToHolding runs after scaleLots. Lots are rounded one by one, so the
// holding takes their sum instead of scaling its own total.
func applySplitToHolding(s *State, symbol string, ratio decimal.Decimal, now time.Time) {
	h, ok := s.Holdings[symbol]
	if !ok {
		return
	}
	h.TotalShares = s.SharesInLots(symbol)
	h.AverageCost = round(h.AverageCost.Div(ratio))
	h.UpdatedAt = now
}

func weightedCost(shares, avg, addShares, addPrice decimal.Decimal) decimal.Decimal {
	total := shares.Add(addShares)
	return round(shares.Mul(avg).Add(addShares.Mul(addPrice)).Div(total))
}

// recomputeHolding rebuilds the holding of symbol. Shares come from the lots;
// the average cost and first purchase date come from replaying the journal in
// application order, since incremental correction of a historical average is
// not well defined.
func recomputeHolding(s *State, symbol string, now time.Time) {
	shares := decimal.Zero
	avg := decimal.Zero
	var first time.Time

	for _, tx := range s.journal(symbol) {
		switch tx.Type {
		case models.TransactionTypeBuy:
			if !shares.IsPositive() {
				shares, avg = decimal.Zero, decimal.Zero
				first = tx.ExecutedAt
			}
			avg = weightedCost(shares, avg, tx.Shares, tx.Price)
			shares = shares.Add(tx.Shares)
		case models.TransactionTypeSell:
			shares = shares.Sub(tx.Shares)
		case models.TransactionTypeSplit:
			if shares.IsPositive() {
				shares = round(shares.Mul(tx.Shares))
				avg = round(avg.Div(tx.Shares))
			}
		}
	}

	held := s.SharesInLots(symbol)
	if !held.IsPositive() {
		delete(s.Holdings, symbol)
		return
	}
	s.Holdings[symbol] = &models.Holding{
		PortfolioID:       s.Portfolio.ID,
		Symbol:            symbol,
		TotalShares:       held,
		AverageCost:       avg,
		FirstPurchaseDate: first,
		UpdatedAt:         now,
	}
}
