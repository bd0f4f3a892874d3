package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const holdingColumns = `portfolio_id, symbol, total_shares, average_cost, first_purchase_date, updated_at`

// ListHoldings returns a portfolio's holdings ordered by symbol
func (db *DB) ListHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, error) {
	return loadHoldings(ctx, db.conn, portfolioID)
}

func loadHoldings(ctx context.Context, q querier, portfolioID uuid.UUID) ([]*models.Holding, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = $1 ORDER BY symbol`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		var h models.Holding
		err := rows.Scan(&h.PortfolioID, &h.Symbol, &h.TotalShares, &h.AverageCost, &h.FirstPurchaseDate, &h.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, &h)
	}
	return holdings, rows.Err()
}

func upsertHolding(ctx context.Context, q querier, h *models.Holding) error {
	query := `
		INSERT INTO holdings (portfolio_id, symbol, total_shares, average_cost, first_purchase_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			total_shares = EXCLUDED.total_shares,
			average_cost = EXCLUDED.average_cost,
			first_purchase_date = EXCLUDED.first_purchase_date,
			updated_at = EXCLUDED.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		h.PortfolioID, h.Symbol, h.TotalShares, h.AverageCost, h.FirstPurchaseDate, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding %s: %w", h.Symbol, err)
	}
	return nil
}

func deleteHolding(ctx context.Context, q querier, portfolioID uuid.UUID, symbol string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM holdings WHERE portfolio_id = $1 AND symbol = $2`, portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", symbol, err)
	}
	return nil
}
