package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngineWithClock(func() time.Time { return testClock })
}

func newTestState(cash float64) *State {
	return NewState(models.Portfolio{
		ID:          uuid.New(),
		UserID:      "user-1",
		Name:        "Brokerage",
		CashBalance: decimal.NewFromFloat(cash),
	})
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 15, 30, 0, 0, time.UTC)
}

func tx(txType, symbol string, shares, price, fees float64, at time.Time) models.Transaction {
	return models.Transaction{
		Symbol:     symbol,
		Type:       txType,
		Shares:     decimal.NewFromFloat(shares),
		Price:      decimal.NewFromFloat(price),
		Fees:       decimal.NewFromFloat(fees),
		ExecutedAt: at,
	}
}

// mustApply applies a transaction and fails the test on error
func mustApply(t *testing.T, e *Engine, s *State, in models.Transaction) (*State, *models.Transaction) {
	t.Helper()
	next, applied, err := e.Apply(s, in)
	require.NoError(t, err)
	return next, applied
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
