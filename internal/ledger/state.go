package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// State is the full ledger aggregate of one portfolio: its cash balance, the
// applied journal and the three derived views. The engine never mutates a State
// it was handed; it works on a clone and returns it only when consistent.
type State struct {
	Portfolio    models.Portfolio
	Transactions map[uuid.UUID]*models.Transaction
	Holdings     map[string]*models.Holding
	// Lots keeps insertion order so that lots sharing a purchase date are
	// consumed in the order they were opened.
	Lots  []*models.TaxLot
	Sales []*models.LotSale
}

// UpdateFunc computes the next ledger state from the current one. It must not
// modify the state it is given.
type UpdateFunc func(current *State) (*State, error)

// NewState returns an empty ledger for the portfolio
func NewState(p models.Portfolio) *State {
	return &State{
		Portfolio:    p,
		Transactions: make(map[uuid.UUID]*models.Transaction),
		Holdings:     make(map[string]*models.Holding),
	}
}

// Clone deep-copies the state
func (s *State) Clone() *State {
	c := &State{
		Portfolio:    s.Portfolio,
		Transactions: make(map[uuid.UUID]*models.Transaction, len(s.Transactions)),
		Holdings:     make(map[string]*models.Holding, len(s.Holdings)),
		Lots:         make([]*models.TaxLot, 0, len(s.Lots)),
		Sales:        make([]*models.LotSale, 0, len(s.Sales)),
	}
	for id, tx := range s.Transactions {
		cp := *tx
		c.Transactions[id] = &cp
	}
	for sym, h := range s.Holdings {
		cp := *h
		c.Holdings[sym] = &cp
	}
	for _, lot := range s.Lots {
		cp := *lot
		c.Lots = append(c.Lots, &cp)
	}
	for _, sale := range s.Sales {
		cp := *sale
		c.Sales = append(c.Sales, &cp)
	}
	return c
}

// HoldingList returns holdings ordered by symbol
func (s *State) HoldingList() []*models.Holding {
	out := make([]*models.Holding, 0, len(s.Holdings))
	for _, h := range s.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenLots returns the lots of symbol that still have shares, in FIFO order
func (s *State) OpenLots(symbol string) []*models.TaxLot {
	var lots []*models.TaxLot
	for _, lot := range s.Lots {
		if lot.Symbol == symbol && lot.SharesRemaining.IsPositive() {
			lots = append(lots, lot)
		}
	}
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].PurchaseDate.Before(lots[j].PurchaseDate)
	})
	return lots
}

// SharesInLots sums shares remaining across every lot of symbol
func (s *State) SharesInLots(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range s.Lots {
		if lot.Symbol == symbol {
			total = total.Add(lot.SharesRemaining)
		}
	}
	return total
}

func (s *State) lot(id uuid.UUID) *models.TaxLot {
	for _, lot := range s.Lots {
		if lot.ID == id {
			return lot
		}
	}
	return nil
}

func (s *State) lotsOpenedBy(txID uuid.UUID) []*models.TaxLot {
	var lots []*models.TaxLot
	for _, lot := range s.Lots {
		if lot.TransactionID == txID {
			lots = append(lots, lot)
		}
	}
	return lots
}

func (s *State) salesOf(match func(*models.LotSale) bool) []*models.LotSale {
	var sales []*models.LotSale
	for _, sale := range s.Sales {
		if match(sale) {
			sales = append(sales, sale)
		}
	}
	return sales
}

func (s *State) removeLots(ids map[uuid.UUID]bool) {
	kept := s.Lots[:0]
	for _, lot := range s.Lots {
		if !ids[lot.ID] {
			kept = append(kept, lot)
		}
	}
	s.Lots = kept
}

func (s *State) removeSales(ids map[uuid.UUID]bool) {
	kept := s.Sales[:0]
	for _, sale := range s.Sales {
		if !ids[sale.ID] {
			kept = append(kept, sale)
		}
	}
	s.Sales = kept
}

// journal returns the applied transactions of symbol in application order
func (s *State) journal(symbol string) []*models.Transaction {
	var txs []*models.Transaction
	for _, tx := range s.Transactions {
		if tx.Symbol == symbol {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Seq < txs[j].Seq })
	return txs
}

func (s *State) nextSeq() int64 {
	var max int64
	for _, tx := range s.Transactions {
		if tx.Seq > max {
			max = tx.Seq
		}
	}
	return max + 1
}

// CheckInvariants verifies that holdings agree with lots and that every sell is
// fully covered by its lot sales
func (s *State) CheckInvariants() error {
	symbols := make(map[string]bool)
	for sym := range s.Holdings {
		symbols[sym] = true
	}
	for _, lot := range s.Lots {
		if lot.SharesRemaining.IsNegative() {
			return wrapf(ErrLedgerConsistency, "lot %s of %s has negative shares %s", lot.ID, lot.Symbol, lot.SharesRemaining)
		}
		if lot.SharesRemaining.IsPositive() {
			symbols[lot.Symbol] = true
		}
	}

	for sym := range symbols {
		inLots := s.SharesInLots(sym)
		h, ok := s.Holdings[sym]
		if !ok {
			if !inLots.IsZero() {
				return wrapf(ErrLedgerConsistency, "%s has %s shares in lots but no holding", sym, inLots)
			}
			continue
		}
		if !h.TotalShares.IsPositive() {
			return wrapf(ErrLedgerConsistency, "holding %s has non-positive shares %s", sym, h.TotalShares)
		}
		if !h.TotalShares.Equal(inLots) {
			return wrapf(ErrLedgerConsistency, "holding %s has %s shares, lots hold %s", sym, h.TotalShares, inLots)
		}
	}

	for _, tx := range s.Transactions {
		if tx.Type != models.TransactionTypeSell {
			continue
		}
		sold := decimal.Zero
		for _, sale := range s.salesOf(func(ls *models.LotSale) bool { return ls.TransactionID == tx.ID }) {
			sold = sold.Add(sale.SharesSold)
		}
		if !sold.Equal(tx.Shares) {
			return wrapf(ErrLedgerConsistency, "sell %s of %s shares matched %s shares in lots", tx.ID, tx.Shares, sold)
		}
	}
	return nil
}
