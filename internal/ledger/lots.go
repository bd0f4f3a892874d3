package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// LongTermHoldingDays is the holding period at which a gain becomes long-term
const LongTermHoldingDays = 365

// HoldingDays counts whole calendar days (UTC) between purchase and sale
func HoldingDays(purchase, sale time.Time) int {
	p := truncateDay(purchase)
	s := truncateDay(sale)
	return int(s.Sub(p).Hours() / 24)
}

// IsShortTerm reports whether a lot bought on purchase and sold on sale was held
// for less than LongTermHoldingDays
func IsShortTerm(purchase, sale time.Time) bool {
	return HoldingDays(purchase, sale) < LongTermHoldingDays
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *Engine) openLot(s *State, tx *models.Transaction, now time.Time) {
	s.Lots = append(s.Lots, &models.TaxLot{
		ID:              e.newID(),
		PortfolioID:     s.Portfolio.ID,
		Symbol:          tx.Symbol,
		PurchaseDate:    tx.ExecutedAt,
		SharesRemaining: tx.Shares,
		CostPerShare:    tx.Price,
		TransactionID:   tx.ID,
		CreatedAt:       now,
	})
}

// consumeFIFO takes the sell's shares from the oldest open lots first and
// records one lot sale per lot touched
func (e *Engine) consumeFIFO(s *State, tx *models.Transaction, now time.Time) error {
	remaining := tx.Shares
	for _, lot := range s.OpenLots(tx.Symbol) {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(lot.SharesRemaining, remaining)
		s.Sales = append(s.Sales, &models.LotSale{
			ID:            e.newID(),
			PortfolioID:   s.Portfolio.ID,
			TaxLotID:      lot.ID,
			TransactionID: tx.ID,
			Symbol:        tx.Symbol,
			SharesSold:    take,
			SalePrice:     tx.Price,
			CostPerShare:  lot.CostPerShare,
			RealizedGain:  round(take.Mul(tx.Price.Sub(lot.CostPerShare))),
			IsShortTerm:   IsShortTerm(lot.PurchaseDate, tx.ExecutedAt),
			PurchaseDate:  lot.PurchaseDate,
			SaleDate:      tx.ExecutedAt,
			CreatedAt:     now,
		})
		lot.SharesRemaining = lot.SharesRemaining.Sub(take)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return wrapf(ErrLedgerConsistency, "lots of %s exhausted with %s of %s shares unmatched",
			tx.Symbol, remaining, tx.Shares)
	}
	return nil
}

// restoreSales puts the shares of every lot sale of the sell back on its lot and
// drops the sale records
func restoreSales(s *State, tx *models.Transaction) error {
	sales := s.salesOf(func(ls *models.LotSale) bool { return ls.TransactionID == tx.ID })
	restored := decimal.Zero
	drop := make(map[uuid.UUID]bool, len(sales))
	for _, sale := range sales {
		lot := s.lot(sale.TaxLotID)
		if lot == nil {
			return wrapf(ErrLedgerConsistency, "lot sale %s references missing lot %s", sale.ID, sale.TaxLotID)
		}
		lot.SharesRemaining = lot.SharesRemaining.Add(sale.SharesSold)
		restored = restored.Add(sale.SharesSold)
		drop[sale.ID] = true
	}
	if !restored.Equal(tx.Shares) {
		return wrapf(ErrLedgerConsistency, "sell %s of %s shares has lot sales for %s", tx.ID, tx.Shares, restored)
	}
	s.removeSales(drop)
	return nil
}

// scaleLots multiplies shares and divides cost of every open lot of symbol by
// ratio, keeping each lot's cost basis as close as Scale allows
func scaleLots(s *State, symbol string, ratio decimal.Decimal) {
	for _, lot := range s.OpenLots(symbol) {
		scaleLot(lot, ratio)
	}
}

func scaleLot(lot *models.TaxLot, ratio decimal.Decimal) {
	lot.SharesRemaining = round(lot.SharesRemaining.Mul(ratio))
	lot.CostPerShare = round(lot.CostPerShare.Div(ratio))
}

// unscaleLots undoes a split of symbol that has already been dropped from the
// journal. Dividing by the ratio would not give back the rounded values, so each
// open lot is rebuilt from the buy that opened it.
func unscaleLots(s *State, symbol string, ratio decimal.Decimal) {
	for _, lot := range s.OpenLots(symbol) {
		if !rebuildLot(s, lot) {
			lot.SharesRemaining = round(lot.SharesRemaining.Div(ratio))
			lot.CostPerShare = round(lot.CostPerShare.Mul(ratio))
		}
	}
}

// rebuildLot replays the opening buy of lot, its sales and the splits of its
// symbol in journal order. A sale booked by a sell that sits earlier in the
// journal than the buy happened before any split that follows the buy.
func rebuildLot(s *State, lot *models.TaxLot) bool {
	origin, ok := s.Transactions[lot.TransactionID]
	if !ok {
		return false
	}
	soldBy := func(txID uuid.UUID) decimal.Decimal {
		sold := decimal.Zero
		for _, sale := range s.salesOf(func(ls *models.LotSale) bool {
			return ls.TaxLotID == lot.ID && ls.TransactionID == txID
		}) {
			sold = sold.Add(sale.SharesSold)
		}
		return sold
	}

	rebuilt := models.TaxLot{SharesRemaining: origin.Shares, CostPerShare: origin.Price}
	journal := s.journal(lot.Symbol)
	for _, tx := range journal {
		if tx.Seq < origin.Seq && tx.Type == models.TransactionTypeSell {
			rebuilt.SharesRemaining = rebuilt.SharesRemaining.Sub(soldBy(tx.ID))
		}
	}
	for _, tx := range journal {
		if tx.Seq <= origin.Seq {
			continue
		}
		switch tx.Type {
		case models.TransactionTypeSell:
			rebuilt.SharesRemaining = rebuilt.SharesRemaining.Sub(soldBy(tx.ID))
		case models.TransactionTypeSplit:
			if rebuilt.SharesRemaining.IsPositive() {
				scaleLot(&rebuilt, tx.Shares)
			}
		}
	}

	lot.SharesRemaining = rebuilt.SharesRemaining
	lot.CostPerShare = rebuilt.CostPerShare
	return true
}
