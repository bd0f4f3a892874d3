package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const transactionColumns = `id, portfolio_id, symbol, transaction_type, shares, price, fees,
	executed_at, notes, source, external_id, ledger_seq, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	var notes, source, externalID sql.NullString

	err := row.Scan(
		&t.ID, &t.PortfolioID, &t.Symbol, &t.Type, &t.Shares, &t.Price, &t.Fees,
		&t.ExecutedAt, &notes, &source, &externalID, &t.Seq, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Notes = notes.String
	t.Source = source.String
	t.ExternalID = externalID.String
	return &t, nil
}

// GetTransaction retrieves one journal entry of a portfolio
func (db *DB) GetTransaction(ctx context.Context, portfolioID, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE portfolio_id = $1 AND id = $2`

	t, err := scanTransaction(db.conn.QueryRowContext(ctx, query, portfolioID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns a portfolio's journal, most recent execution first
func (db *DB) ListTransactions(ctx context.Context, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE portfolio_id = $1 AND ($2 = '' OR symbol = $2)
		ORDER BY executed_at DESC, ledger_seq DESC
	`
	args := []any{portfolioID, strings.ToUpper(f.Symbol)}
	if f.Limit > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// TransactionExists reports whether a transaction from an external source was
// already recorded in the portfolio
func (db *DB) TransactionExists(ctx context.Context, portfolioID uuid.UUID, source, externalID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE portfolio_id = $1 AND source = $2 AND external_id = $3
		)
	`, portfolioID, source, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

func loadTransactions(ctx context.Context, q querier, portfolioID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE portfolio_id = $1 ORDER BY ledger_seq`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func upsertTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, portfolio_id, symbol, transaction_type, shares, price, fees,
			executed_at, notes, source, external_id, ledger_seq, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			transaction_type = EXCLUDED.transaction_type,
			shares = EXCLUDED.shares,
			price = EXCLUDED.price,
			fees = EXCLUDED.fees,
			executed_at = EXCLUDED.executed_at,
			notes = EXCLUDED.notes,
			ledger_seq = EXCLUDED.ledger_seq,
			updated_at = EXCLUDED.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.Symbol, t.Type, t.Shares, t.Price, t.Fees,
		t.ExecutedAt, nullString(t.Notes), nullString(t.Source), nullString(t.ExternalID),
		t.Seq, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

func deleteTransaction(ctx context.Context, q querier, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}
