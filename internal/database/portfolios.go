package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const portfolioColumns = `id, user_id, name, cash_balance, is_default, created_at, updated_at`

func scanPortfolio(row interface{ Scan(...any) error }) (*models.Portfolio, error) {
	var p models.Portfolio
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CashBalance, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePortfolio inserts a new portfolio. ID and timestamps are filled in when unset.
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO portfolios (id, user_id, name, cash_balance, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.conn.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, p.CashBalance, p.IsDefault, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetPortfolio retrieves a portfolio by ID
func (db *DB) GetPortfolio(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	return getPortfolio(ctx, db.conn, id, false)
}

func getPortfolio(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanPortfolio(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// ListPortfolios returns a user's portfolios, default first
func (db *DB) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	query := `
		SELECT ` + portfolioColumns + `
		FROM portfolios
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// DeletePortfolio removes a portfolio and, by cascade, its whole ledger
func (db *DB) DeletePortfolio(ctx context.Context, id uuid.UUID) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: portfolio %s", ledger.ErrNotFound, id)
	}
	return nil
}

// updatePortfolioBalance writes the cash balance and touch time of a portfolio
func updatePortfolioBalance(ctx context.Context, q querier, p *models.Portfolio) error {
	_, err := q.ExecContext(ctx,
		`UPDATE portfolios SET cash_balance = $1, updated_at = $2 WHERE id = $3`,
		p.CashBalance, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash balance: %w", err)
	}
	return nil
}
