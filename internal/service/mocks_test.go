package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// MockRepository keeps whole ledger states in memory
type MockRepository struct {
	mu     sync.Mutex
	states map[uuid.UUID]*ledger.State

	UpdateLedgerCalls int
	// OnListHoldings runs after ListHoldings has read its result, outside the lock
	OnListHoldings func()
	// inFlight counts concurrent UpdateLedger calls per portfolio
	inFlight    map[uuid.UUID]int
	MaxInFlight int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		states:   make(map[uuid.UUID]*ledger.State),
		inFlight: make(map[uuid.UUID]int),
	}
}

func (m *MockRepository) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.states[p.ID] = ledger.NewState(*p)
	return nil
}

func (m *MockRepository) state(id uuid.UUID) (*ledger.State, error) {
	s, ok := m.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio %s", ledger.ErrNotFound, id)
	}
	return s, nil
}

func (m *MockRepository) GetPortfolio(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(id)
	if err != nil {
		return nil, err
	}
	p := s.Portfolio
	return &p, nil
}

func (m *MockRepository) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Portfolio
	for _, s := range m.states {
		if s.Portfolio.UserID == userID {
			p := s.Portfolio
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *MockRepository) DeletePortfolio(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.state(id); err != nil {
		return err
	}
	delete(m.states, id)
	return nil
}

func (m *MockRepository) GetTransaction(ctx context.Context, portfolioID, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(portfolioID)
	if err != nil {
		return nil, err
	}
	tx, ok := s.Transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ledger.ErrNotFound, id)
	}
	return tx, nil
}

func (m *MockRepository) ListTransactions(ctx context.Context, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(portfolioID)
	if err != nil {
		return nil, err
	}
	var out []*models.Transaction
	for _, tx := range s.Transactions {
		if f.Symbol == "" || strings.EqualFold(tx.Symbol, f.Symbol) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out, nil
}

func (m *MockRepository) TransactionExists(ctx context.Context, portfolioID uuid.UUID, source, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(portfolioID)
	if err != nil {
		return false, err
	}
	return hasExternal(s, source, externalID), nil
}

func (m *MockRepository) ListHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, error) {
	m.mu.Lock()
	s, err := m.state(portfolioID)
	var holdings []*models.Holding
	if err == nil {
		holdings = s.HoldingList()
	}
	hook := m.OnListHoldings
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook()
	}
	return holdings, nil
}

func (m *MockRepository) ListTaxLots(ctx context.Context, portfolioID uuid.UUID, symbol string, openOnly bool) ([]*models.TaxLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(portfolioID)
	if err != nil {
		return nil, err
	}
	if openOnly {
		return s.OpenLots(symbol), nil
	}
	var out []*models.TaxLot
	for _, lot := range s.Lots {
		if symbol == "" || lot.Symbol == symbol {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (m *MockRepository) ListLotSales(ctx context.Context, portfolioID uuid.UUID, f models.GainsFilter) ([]*models.LotSale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.state(portfolioID)
	if err != nil {
		return nil, err
	}
	return ledger.RealizedGains(s, f).Records, nil
}

func (m *MockRepository) UpdateLedger(ctx context.Context, portfolioID uuid.UUID, fn ledger.UpdateFunc) (*ledger.State, error) {
	m.mu.Lock()
	m.UpdateLedgerCalls++
	m.inFlight[portfolioID]++
	if m.inFlight[portfolioID] > m.MaxInFlight {
		m.MaxInFlight = m.inFlight[portfolioID]
	}
	current, err := m.state(portfolioID)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight[portfolioID]--
		m.mu.Unlock()
	}()
	if err != nil {
		return nil, err
	}

	// Give concurrent callers a chance to overlap
	time.Sleep(time.Millisecond)

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.states[portfolioID] = next
	m.mu.Unlock()
	return next, nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	Events []*models.LedgerEvent
	Err    error
}

func (p *MockPublisher) PublishLedgerEvent(ctx context.Context, event *models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

// MockCache is a map-backed HoldingsCache
type MockCache struct {
	mu            sync.Mutex
	entries       map[uuid.UUID][]*models.Holding
	Hits          int
	Invalidations int
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[uuid.UUID][]*models.Holding)}
}

func (c *MockCache) GetHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[portfolioID]
	if ok {
		c.Hits++
	}
	return h, ok
}

func (c *MockCache) SetHoldings(ctx context.Context, portfolioID uuid.UUID, holdings []*models.Holding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[portfolioID] = holdings
}

func (c *MockCache) Invalidate(ctx context.Context, portfolioID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Invalidations++
	delete(c.entries, portfolioID)
}

// MockQuotes serves fixed closes
type MockQuotes struct {
	Quotes   map[string]*models.DailyQuote
	Upserted []*models.DailyQuote
}

func (q *MockQuotes) GetLatestQuotes(ctx context.Context, symbols []string) (map[string]*models.DailyQuote, error) {
	out := make(map[string]*models.DailyQuote)
	for _, s := range symbols {
		if quote, ok := q.Quotes[s]; ok {
			out[s] = quote
		}
	}
	return out, nil
}

func (q *MockQuotes) GetQuoteRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]*models.DailyQuote, error) {
	if quote, ok := q.Quotes[symbol]; ok {
		return []*models.DailyQuote{quote}, nil
	}
	return nil, nil
}

func (q *MockQuotes) UpsertQuotesBatch(ctx context.Context, quotes []*models.DailyQuote) error {
	q.Upserted = append(q.Upserted, quotes...)
	return nil
}
