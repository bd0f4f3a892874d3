package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const lotSaleColumns = `id, portfolio_id, tax_lot_id, transaction_id, symbol, shares_sold, sale_price,
	cost_per_share, realized_gain, is_short_term, purchase_date, sale_date, created_at`

// ListLotSales returns a portfolio's lot sales matching the filter, ordered by sale date
func (db *DB) ListLotSales(ctx context.Context, portfolioID uuid.UUID, f models.GainsFilter) ([]*models.LotSale, error) {
	query := `
		SELECT ` + lotSaleColumns + `
		FROM lot_sales
		WHERE portfolio_id = $1
			AND ($2 = 0 OR EXTRACT(YEAR FROM sale_date AT TIME ZONE 'UTC') = $2)
			AND ($3 = '' OR symbol = $3)
		ORDER BY sale_date, created_at
	`
	return queryLotSales(ctx, db.conn, query, portfolioID, f.Year, strings.ToUpper(f.Symbol))
}

func loadLotSales(ctx context.Context, q querier, portfolioID uuid.UUID) ([]*models.LotSale, error) {
	query := `SELECT ` + lotSaleColumns + ` FROM lot_sales WHERE portfolio_id = $1 ORDER BY created_at, id`
	return queryLotSales(ctx, q, query, portfolioID)
}

func queryLotSales(ctx context.Context, q querier, query string, args ...any) ([]*models.LotSale, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get lot sales: %w", err)
	}
	defer rows.Close()

	var sales []*models.LotSale
	for rows.Next() {
		var s models.LotSale
		err := rows.Scan(
			&s.ID, &s.PortfolioID, &s.TaxLotID, &s.TransactionID, &s.Symbol, &s.SharesSold, &s.SalePrice,
			&s.CostPerShare, &s.RealizedGain, &s.IsShortTerm, &s.PurchaseDate, &s.SaleDate, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot sale: %w", err)
		}
		sales = append(sales, &s)
	}
	return sales, rows.Err()
}

func insertLotSale(ctx context.Context, q querier, s *models.LotSale) error {
	query := `
		INSERT INTO lot_sales (` + lotSaleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.ExecContext(ctx, query,
		s.ID, s.PortfolioID, s.TaxLotID, s.TransactionID, s.Symbol, s.SharesSold, s.SalePrice,
		s.CostPerShare, s.RealizedGain, s.IsShortTerm, s.PurchaseDate, s.SaleDate, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot sale: %w", err)
	}
	return nil
}

func deleteLotSale(ctx context.Context, q querier, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM lot_sales WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete lot sale %s: %w", id, err)
	}
	return nil
}
