package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
)

// LoadLedgerState reads a portfolio's complete ledger without locking it
func (db *DB) LoadLedgerState(ctx context.Context, portfolioID uuid.UUID) (*ledger.State, error) {
	return loadLedgerState(ctx, db.conn, portfolioID, false)
}

// UpdateLedger locks the portfolio row, loads its ledger, runs fn and writes the
// difference between the loaded and returned states, all in one database
// transaction. Nothing is written when fn fails.
func (db *DB) UpdateLedger(ctx context.Context, portfolioID uuid.UUID, fn ledger.UpdateFunc) (*ledger.State, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := loadLedgerState(ctx, tx, portfolioID, true)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	changes := ledger.Diff(current, next)
	if changes.IsEmpty() {
		return next, nil
	}
	if err := applyChangeSet(ctx, tx, portfolioID, changes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug().
		Str("portfolio_id", portfolioID.String()).
		Int("transactions", len(changes.UpsertTransactions)+len(changes.DeleteTransactions)).
		Int("lots", len(changes.InsertLots)+len(changes.UpdateLots)+len(changes.DeleteLots)).
		Int("lot_sales", len(changes.InsertSales)+len(changes.DeleteSales)).
		Msg("ledger changes written")
	return next, nil
}

func loadLedgerState(ctx context.Context, q querier, portfolioID uuid.UUID, forUpdate bool) (*ledger.State, error) {
	p, err := getPortfolio(ctx, q, portfolioID, forUpdate)
	if err != nil {
		return nil, err
	}
	state := ledger.NewState(*p)

	txs, err := loadTransactions(ctx, q, portfolioID)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		state.Transactions[t.ID] = t
	}

	holdings, err := loadHoldings(ctx, q, portfolioID)
	if err != nil {
		return nil, err
	}
	for _, h := range holdings {
		state.Holdings[h.Symbol] = h
	}

	if state.Lots, err = loadTaxLots(ctx, q, portfolioID); err != nil {
		return nil, err
	}
	if state.Sales, err = loadLotSales(ctx, q, portfolioID); err != nil {
		return nil, err
	}
	return state, nil
}

// applyChangeSet writes a change set in foreign-key order: dependents are deleted
// before the rows they reference and inserted after them
func applyChangeSet(ctx context.Context, q querier, portfolioID uuid.UUID, c *ledger.ChangeSet) error {
	for _, id := range c.DeleteSales {
		if err := deleteLotSale(ctx, q, id); err != nil {
			return err
		}
	}
	for _, id := range c.DeleteLots {
		if err := deleteTaxLot(ctx, q, id); err != nil {
			return err
		}
	}
	for _, symbol := range c.DeleteHoldings {
		if err := deleteHolding(ctx, q, portfolioID, symbol); err != nil {
			return err
		}
	}
	for _, t := range c.UpsertTransactions {
		if err := upsertTransaction(ctx, q, t); err != nil {
			return err
		}
	}
	for _, l := range c.InsertLots {
		if err := insertTaxLot(ctx, q, l); err != nil {
			return err
		}
	}
	for _, l := range c.UpdateLots {
		if err := updateTaxLot(ctx, q, l); err != nil {
			return err
		}
	}
	for _, s := range c.InsertSales {
		if err := insertLotSale(ctx, q, s); err != nil {
			return err
		}
	}
	for _, h := range c.UpsertHoldings {
		if err := upsertHolding(ctx, q, h); err != nil {
			return err
		}
	}
	if err := updatePortfolioBalance(ctx, q, &c.Portfolio); err != nil {
		return err
	}
	for _, id := range c.DeleteTransactions {
		if err := deleteTransaction(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}
