package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// mockService records the calls the handlers make. Methods a test does not
// configure return Err.
type mockService struct {
	LedgerService

	Err error

	LastUserID      string
	LastPortfolioID uuid.UUID
	LastTxID        uuid.UUID
	LastInput       models.Transaction
	LastAmendment   models.TransactionAmendment
	LastTxFilter    models.TransactionFilter
	LastGains       models.GainsFilter
	LastSymbol      string
	LastIncludeAll  bool
	LastFrom        time.Time
	LastTo          time.Time
	LastQuotes      []*models.DailyQuote
	ExternalCalls   int
	ApplyCalls      int

	Portfolio    *models.Portfolio
	Transaction  *models.Transaction
	Transactions []*models.Transaction
	Holdings     []*models.Holding
	Lots         []*models.TaxLot
	Gains        *models.RealizedGainsReport
	Valuation    *models.Valuation
	Quotes       []*models.DailyQuote
}

func (m *mockService) CreatePortfolio(ctx context.Context, userID, name string, openingCash decimal.Decimal, isDefault bool) (*models.Portfolio, error) {
	m.LastUserID = userID
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.Portfolio{ID: uuid.New(), UserID: userID, Name: name, CashBalance: openingCash, IsDefault: isDefault}, nil
}

func (m *mockService) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	m.LastUserID = userID
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Portfolio == nil {
		return nil, nil
	}
	return []*models.Portfolio{m.Portfolio}, nil
}

func (m *mockService) GetPortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Portfolio, error) {
	m.LastUserID, m.LastPortfolioID = userID, portfolioID
	return m.Portfolio, m.Err
}

func (m *mockService) DeletePortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) error {
	m.LastUserID, m.LastPortfolioID = userID, portfolioID
	return m.Err
}

func (m *mockService) AdjustCash(ctx context.Context, userID string, portfolioID uuid.UUID, amount decimal.Decimal) (*models.Portfolio, error) {
	m.LastUserID, m.LastPortfolioID = userID, portfolioID
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.Portfolio{ID: portfolioID, UserID: userID, CashBalance: amount}, nil
}

func (m *mockService) ApplyTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	m.ApplyCalls++
	return m.record(userID, portfolioID, input)
}

func (m *mockService) RecordExternalTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	m.ExternalCalls++
	return m.record(userID, portfolioID, input)
}

func (m *mockService) record(userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	m.LastUserID, m.LastPortfolioID, m.LastInput = userID, portfolioID, input
	if m.Err != nil {
		return nil, m.Err
	}
	input.ID = uuid.New()
	input.PortfolioID = portfolioID
	return &input, nil
}

func (m *mockService) AmendTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID, fields models.TransactionAmendment) (*models.Transaction, error) {
	m.LastUserID, m.LastPortfolioID, m.LastTxID, m.LastAmendment = userID, portfolioID, txID, fields
	return m.Transaction, m.Err
}

func (m *mockService) RemoveTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) error {
	m.LastUserID, m.LastPortfolioID, m.LastTxID = userID, portfolioID, txID
	return m.Err
}

func (m *mockService) GetTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) (*models.Transaction, error) {
	m.LastUserID, m.LastPortfolioID, m.LastTxID = userID, portfolioID, txID
	return m.Transaction, m.Err
}

func (m *mockService) ListTransactions(ctx context.Context, userID string, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	m.LastUserID, m.LastPortfolioID, m.LastTxFilter = userID, portfolioID, f
	return m.Transactions, m.Err
}

func (m *mockService) GetHoldings(ctx context.Context, userID string, portfolioID uuid.UUID) ([]*models.Holding, error) {
	m.LastUserID, m.LastPortfolioID = userID, portfolioID
	return m.Holdings, m.Err
}

func (m *mockService) GetTaxLots(ctx context.Context, userID string, portfolioID uuid.UUID, symbol string, includeClosed bool) ([]*models.TaxLot, error) {
	m.LastUserID, m.LastPortfolioID, m.LastSymbol, m.LastIncludeAll = userID, portfolioID, symbol, includeClosed
	return m.Lots, m.Err
}

func (m *mockService) GetRealizedGains(ctx context.Context, userID string, portfolioID uuid.UUID, f models.GainsFilter) (*models.RealizedGainsReport, error) {
	m.LastUserID, m.LastPortfolioID, m.LastGains = userID, portfolioID, f
	return m.Gains, m.Err
}

func (m *mockService) GetValuation(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Valuation, error) {
	m.LastUserID, m.LastPortfolioID = userID, portfolioID
	return m.Valuation, m.Err
}

func (m *mockService) UpsertQuotes(ctx context.Context, quotes []*models.DailyQuote) error {
	m.LastQuotes = quotes
	return m.Err
}

func (m *mockService) GetQuoteHistory(ctx context.Context, symbol string, from, to time.Time) ([]*models.DailyQuote, error) {
	m.LastSymbol, m.LastFrom, m.LastTo = symbol, from, to
	return m.Quotes, m.Err
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

var errStorage = errors.New("connection reset")
