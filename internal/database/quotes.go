package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const upsertQuoteQuery = `
	INSERT INTO daily_quotes (symbol, date, close, volume, source, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (symbol, date) DO UPDATE SET
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		source = EXCLUDED.source,
		updated_at = EXCLUDED.updated_at
`

// UpsertQuote inserts or replaces the close of a symbol on a day
func (db *DB) UpsertQuote(ctx context.Context, q *models.DailyQuote) error {
	q.Symbol = strings.ToUpper(q.Symbol)
	q.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, upsertQuoteQuery,
		q.Symbol, q.Date, q.Close, q.Volume, nullString(q.Source), q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
	}
	return nil
}

// UpsertQuotesBatch writes many quotes in one transaction
func (db *DB) UpsertQuotesBatch(ctx context.Context, quotes []*models.DailyQuote) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuoteQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, q := range quotes {
		q.Symbol = strings.ToUpper(q.Symbol)
		q.UpdatedAt = now
		_, err := stmt.ExecContext(ctx, q.Symbol, q.Date, q.Close, q.Volume, nullString(q.Source), q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert quote for %s: %w", q.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLatestQuotes returns the most recent quote of each symbol, keyed by symbol.
// Symbols without any quote are absent from the map.
func (db *DB) GetLatestQuotes(ctx context.Context, symbols []string) (map[string]*models.DailyQuote, error) {
	quotes := make(map[string]*models.DailyQuote, len(symbols))
	if len(symbols) == 0 {
		return quotes, nil
	}

	query := `
		SELECT DISTINCT ON (symbol) symbol, date, close, volume, source, updated_at
		FROM daily_quotes
		WHERE symbol = ANY($1)
		ORDER BY symbol, date DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(symbols))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes[q.Symbol] = q
	}
	return quotes, rows.Err()
}

// GetQuoteRange returns a symbol's quotes between two dates, oldest first
func (db *DB) GetQuoteRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.DailyQuote, error) {
	query := `
		SELECT symbol, date, close, volume, source, updated_at
		FROM daily_quotes
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, strings.ToUpper(symbol), startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote range: %w", err)
	}
	defer rows.Close()

	var quotes []*models.DailyQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// DeleteQuotesOlderThan prunes quotes dated before date
func (db *DB) DeleteQuotesOlderThan(ctx context.Context, date time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM daily_quotes WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old quotes: %w", err)
	}
	return result.RowsAffected()
}

func scanQuote(rows *sql.Rows) (*models.DailyQuote, error) {
	var q models.DailyQuote
	var volume sql.NullInt64
	var source sql.NullString

	if err := rows.Scan(&q.Symbol, &q.Date, &q.Close, &volume, &source, &q.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan quote: %w", err)
	}
	q.Volume = volume.Int64
	q.Source = source.String
	return &q, nil
}
