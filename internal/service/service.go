package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// Repository persists portfolios and their ledgers
type Repository interface {
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id uuid.UUID) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id uuid.UUID) error

	GetTransaction(ctx context.Context, portfolioID, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error)
	TransactionExists(ctx context.Context, portfolioID uuid.UUID, source, externalID string) (bool, error)

	ListHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, error)
	ListTaxLots(ctx context.Context, portfolioID uuid.UUID, symbol string, openOnly bool) ([]*models.TaxLot, error)
	ListLotSales(ctx context.Context, portfolioID uuid.UUID, f models.GainsFilter) ([]*models.LotSale, error)

	// UpdateLedger runs fn against the locked ledger of a portfolio and persists
	// the result atomically
	UpdateLedger(ctx context.Context, portfolioID uuid.UUID, fn ledger.UpdateFunc) (*ledger.State, error)
}

// QuoteStore provides closing prices for valuation
type QuoteStore interface {
	GetLatestQuotes(ctx context.Context, symbols []string) (map[string]*models.DailyQuote, error)
	GetQuoteRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.DailyQuote, error)
	UpsertQuotesBatch(ctx context.Context, quotes []*models.DailyQuote) error
}

// EventPublisher announces committed ledger changes
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *models.LedgerEvent) error
}

// HoldingsCache keeps read-through copies of holdings
type HoldingsCache interface {
	GetHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, bool)
	SetHoldings(ctx context.Context, portfolioID uuid.UUID, holdings []*models.Holding)
	Invalidate(ctx context.Context, portfolioID uuid.UUID)
}

// Service is the ledger's application layer: ownership checks, per-portfolio
// serialization, persistence and post-commit notifications around the engine
type Service struct {
	repo      Repository
	quotes    QuoteStore
	publisher EventPublisher
	cache     HoldingsCache
	engine    *ledger.Engine
	locks     *portfolioLocks
	gens      *writeGenerations
	now       func() time.Time
}

// NewService creates a Service. quotes, publisher and cache may be nil.
func NewService(repo Repository, quotes QuoteStore, publisher EventPublisher, cache HoldingsCache) *Service {
	return &Service{
		repo:      repo,
		quotes:    quotes,
		publisher: publisher,
		cache:     cache,
		engine:    ledger.NewEngine(),
		locks:     newPortfolioLocks(),
		gens:      newWriteGenerations(),
		now:       time.Now,
	}
}

// WithEngine replaces the ledger engine, mainly to pin its clock in tests
func (s *Service) WithEngine(e *ledger.Engine) *Service {
	s.engine = e
	return s
}

// authorize loads the portfolio and hides it from anyone but its owner
func (s *Service) authorize(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Portfolio, error) {
	p, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("%w: portfolio %s", ledger.ErrNotFound, portfolioID)
	}
	return p, nil
}

// update serializes writers of one portfolio and persists fn's result
func (s *Service) update(ctx context.Context, userID string, portfolioID uuid.UUID, fn ledger.UpdateFunc) (*ledger.State, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(portfolioID)
	defer unlock()

	state, err := s.repo.UpdateLedger(ctx, portfolioID, fn)
	if err != nil {
		logLedgerError(err, portfolioID)
		return nil, err
	}

	s.invalidate(ctx, portfolioID)
	return state, nil
}

// invalidate runs after a committed write. The generation moves first so that a
// concurrent GetHoldings notices it even if it refills the cache afterwards.
func (s *Service) invalidate(ctx context.Context, portfolioID uuid.UUID) {
	s.gens.bump(portfolioID)
	if s.cache != nil {
		s.cache.Invalidate(ctx, portfolioID)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, state *ledger.State, tx *models.Transaction) {
	if s.publisher == nil {
		return
	}
	event := &models.LedgerEvent{
		EventType:   eventType,
		PortfolioID: state.Portfolio.ID,
		Transaction: tx,
		CashBalance: state.Portfolio.CashBalance.String(),
		Timestamp:   s.now().UTC(),
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event_type", eventType).
			Str("portfolio_id", state.Portfolio.ID.String()).
			Msg("failed to publish ledger event")
	}
}
