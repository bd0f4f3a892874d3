package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const taxLotColumns = `id, portfolio_id, transaction_id, symbol, purchase_date, shares_remaining, cost_per_share, created_at`

// ListTaxLots returns a portfolio's lots in FIFO order. An empty symbol lists
// every symbol; openOnly hides exhausted lots.
func (db *DB) ListTaxLots(ctx context.Context, portfolioID uuid.UUID, symbol string, openOnly bool) ([]*models.TaxLot, error) {
	query := `
		SELECT ` + taxLotColumns + `
		FROM tax_lots
		WHERE portfolio_id = $1
			AND ($2 = '' OR symbol = $2)
			AND (NOT $3 OR shares_remaining > 0)
		ORDER BY symbol, purchase_date, created_at
	`
	return queryTaxLots(ctx, db.conn, query, portfolioID, symbol, openOnly)
}

func loadTaxLots(ctx context.Context, q querier, portfolioID uuid.UUID) ([]*models.TaxLot, error) {
	query := `SELECT ` + taxLotColumns + ` FROM tax_lots WHERE portfolio_id = $1 ORDER BY created_at, id`
	return queryTaxLots(ctx, q, query, portfolioID)
}

func queryTaxLots(ctx context.Context, q querier, query string, args ...any) ([]*models.TaxLot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tax lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.TaxLot
	for rows.Next() {
		var l models.TaxLot
		err := rows.Scan(&l.ID, &l.PortfolioID, &l.TransactionID, &l.Symbol, &l.PurchaseDate,
			&l.SharesRemaining, &l.CostPerShare, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax lot: %w", err)
		}
		lots = append(lots, &l)
	}
	return lots, rows.Err()
}

func insertTaxLot(ctx context.Context, q querier, l *models.TaxLot) error {
	query := `
		INSERT INTO tax_lots (` + taxLotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		l.ID, l.PortfolioID, l.TransactionID, l.Symbol, l.PurchaseDate, l.SharesRemaining, l.CostPerShare, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tax lot: %w", err)
	}
	return nil
}

func updateTaxLot(ctx context.Context, q querier, l *models.TaxLot) error {
	_, err := q.ExecContext(ctx,
		`UPDATE tax_lots SET shares_remaining = $1, cost_per_share = $2 WHERE id = $3`,
		l.SharesRemaining, l.CostPerShare, l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tax lot %s: %w", l.ID, err)
	}
	return nil
}

func deleteTaxLot(ctx context.Context, q querier, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM tax_lots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tax lot %s: %w", id, err)
	}
	return nil
}
