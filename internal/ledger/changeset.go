package ledger

import (
	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ChangeSet lists the rows that differ between two ledger states, grouped so a
// store can write them in foreign-key order
type ChangeSet struct {
	CashChanged bool
	Portfolio   models.Portfolio

	UpsertTransactions []*models.Transaction
	DeleteTransactions []uuid.UUID

	UpsertHoldings []*models.Holding
	DeleteHoldings []string

	InsertLots []*models.TaxLot
	UpdateLots []*models.TaxLot
	DeleteLots []uuid.UUID

	InsertSales []*models.LotSale
	DeleteSales []uuid.UUID
}

// IsEmpty reports whether there is nothing to write
func (c *ChangeSet) IsEmpty() bool {
	return !c.CashChanged &&
		len(c.UpsertTransactions) == 0 && len(c.DeleteTransactions) == 0 &&
		len(c.UpsertHoldings) == 0 && len(c.DeleteHoldings) == 0 &&
		len(c.InsertLots) == 0 && len(c.UpdateLots) == 0 && len(c.DeleteLots) == 0 &&
		len(c.InsertSales) == 0 && len(c.DeleteSales) == 0
}

// Diff computes the rows to write to turn before into after
func Diff(before, after *State) *ChangeSet {
	c := &ChangeSet{
		CashChanged: !before.Portfolio.CashBalance.Equal(after.Portfolio.CashBalance),
		Portfolio:   after.Portfolio,
	}

	for id, tx := range after.Transactions {
		prev, ok := before.Transactions[id]
		if !ok || !sameTransaction(prev, tx) {
			c.UpsertTransactions = append(c.UpsertTransactions, tx)
		}
	}
	for id := range before.Transactions {
		if _, ok := after.Transactions[id]; !ok {
			c.DeleteTransactions = append(c.DeleteTransactions, id)
		}
	}

	for sym, h := range after.Holdings {
		prev, ok := before.Holdings[sym]
		if !ok || !sameHolding(prev, h) {
			c.UpsertHoldings = append(c.UpsertHoldings, h)
		}
	}
	for sym := range before.Holdings {
		if _, ok := after.Holdings[sym]; !ok {
			c.DeleteHoldings = append(c.DeleteHoldings, sym)
		}
	}

	beforeLots := make(map[uuid.UUID]*models.TaxLot, len(before.Lots))
	for _, lot := range before.Lots {
		beforeLots[lot.ID] = lot
	}
	afterLots := make(map[uuid.UUID]bool, len(after.Lots))
	for _, lot := range after.Lots {
		afterLots[lot.ID] = true
		prev, ok := beforeLots[lot.ID]
		switch {
		case !ok:
			c.InsertLots = append(c.InsertLots, lot)
		case !prev.SharesRemaining.Equal(lot.SharesRemaining) || !prev.CostPerShare.Equal(lot.CostPerShare):
			c.UpdateLots = append(c.UpdateLots, lot)
		}
	}
	for _, lot := range before.Lots {
		if !afterLots[lot.ID] {
			c.DeleteLots = append(c.DeleteLots, lot.ID)
		}
	}

	// Lot sales are immutable: they are only ever inserted or deleted
	beforeSales := make(map[uuid.UUID]bool, len(before.Sales))
	for _, sale := range before.Sales {
		beforeSales[sale.ID] = true
	}
	afterSales := make(map[uuid.UUID]bool, len(after.Sales))
	for _, sale := range after.Sales {
		afterSales[sale.ID] = true
		if !beforeSales[sale.ID] {
			c.InsertSales = append(c.InsertSales, sale)
		}
	}
	for _, sale := range before.Sales {
		if !afterSales[sale.ID] {
			c.DeleteSales = append(c.DeleteSales, sale.ID)
		}
	}

	return c
}

func sameTransaction(a, b *models.Transaction) bool {
	return a.Symbol == b.Symbol && a.Type == b.Type &&
		a.Shares.Equal(b.Shares) && a.Price.Equal(b.Price) && a.Fees.Equal(b.Fees) &&
		a.ExecutedAt.Equal(b.ExecutedAt) && a.Notes == b.Notes && a.Seq == b.Seq &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func sameHolding(a, b *models.Holding) bool {
	return a.TotalShares.Equal(b.TotalShares) && a.AverageCost.Equal(b.AverageCost) &&
		a.FirstPurchaseDate.Equal(b.FirstPurchaseDate)
}
