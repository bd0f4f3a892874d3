package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// GetHoldings returns the portfolio's holdings ordered by symbol
func (s *Service) GetHoldings(ctx context.Context, userID string, portfolioID uuid.UUID) ([]*models.Holding, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if holdings, ok := s.cache.GetHoldings(ctx, portfolioID); ok {
			return holdings, nil
		}
	}

	gen := s.gens.current(portfolioID)
	holdings, err := s.repo.ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetHoldings(ctx, portfolioID, holdings)
		if s.gens.current(portfolioID) != gen {
			s.cache.Invalidate(ctx, portfolioID)
		}
	}
	return holdings, nil
}

// GetTaxLots returns the lots of a symbol in FIFO order. Exhausted lots are
// included only when includeClosed is set.
func (s *Service) GetTaxLots(ctx context.Context, userID string, portfolioID uuid.UUID, symbol string, includeClosed bool) ([]*models.TaxLot, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListTaxLots(ctx, portfolioID, strings.ToUpper(strings.TrimSpace(symbol)), !includeClosed)
}

// GetRealizedGains returns the lot sales matching the filter and their summary
func (s *Service) GetRealizedGains(ctx context.Context, userID string, portfolioID uuid.UUID, f models.GainsFilter) (*models.RealizedGainsReport, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListLotSales(ctx, portfolioID, f)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.LotSale{}
	}
	return &models.RealizedGainsReport{
		Records: records,
		Summary: ledger.SummarizeGains(records),
	}, nil
}

// GetValuation prices the holdings at their latest close. It is for display
// and never feeds the ledger.
func (s *Service) GetValuation(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Valuation, error) {
	p, err := s.authorize(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.GetHoldings(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	quotes := map[string]*models.DailyQuote{}
	if s.quotes != nil && len(holdings) > 0 {
		symbols := make([]string, 0, len(holdings))
		for _, h := range holdings {
			symbols = append(symbols, h.Symbol)
		}
		if quotes, err = s.quotes.GetLatestQuotes(ctx, symbols); err != nil {
			return nil, err
		}
	}

	return valuate(p, holdings, quotes, s.now().UTC()), nil
}

func valuate(p *models.Portfolio, holdings []*models.Holding, quotes map[string]*models.DailyQuote, asOf time.Time) *models.Valuation {
	v := &models.Valuation{
		PortfolioID:      p.ID,
		CashBalance:      p.CashBalance,
		Holdings:         make([]*models.HoldingValuation, 0, len(holdings)),
		TotalCostBasis:   decimal.Zero,
		TotalMarketValue: decimal.Zero,
		AsOf:             asOf,
	}

	for _, h := range holdings {
		hv := &models.HoldingValuation{Holding: h, CostBasis: h.CostBasis()}
		v.TotalCostBasis = v.TotalCostBasis.Add(hv.CostBasis)

		q, ok := quotes[h.Symbol]
		if !ok {
			v.UnpricedSymbols = append(v.UnpricedSymbols, h.Symbol)
			v.Holdings = append(v.Holdings, hv)
			continue
		}

		date := q.Date
		market := h.TotalShares.Mul(q.Close)
		hv.LastPrice = decimal.NewNullDecimal(q.Close)
		hv.PriceDate = &date
		hv.MarketValue = decimal.NewNullDecimal(market)
		hv.UnrealizedGain = decimal.NewNullDecimal(market.Sub(hv.CostBasis))
		v.TotalMarketValue = v.TotalMarketValue.Add(market)
		v.Holdings = append(v.Holdings, hv)
	}

	v.TotalValue = v.CashBalance.Add(v.TotalMarketValue)
	return v
}

// UpsertQuotes stores closing prices used for valuation
func (s *Service) UpsertQuotes(ctx context.Context, quotes []*models.DailyQuote) error {
	if s.quotes == nil {
		return fmt.Errorf("%w: no quote store configured", ledger.ErrValidation)
	}
	for _, q := range quotes {
		q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
		if q.Symbol == "" || q.Date.IsZero() {
			return fmt.Errorf("%w: quote needs a symbol and a date", ledger.ErrValidation)
		}
		if !q.Close.IsPositive() {
			return fmt.Errorf("%w: close of %s must be positive", ledger.ErrValidation, q.Symbol)
		}
	}
	return s.quotes.UpsertQuotesBatch(ctx, quotes)
}

// GetQuoteHistory returns a symbol's closes between two dates
func (s *Service) GetQuoteHistory(ctx context.Context, symbol string, from, to time.Time) ([]*models.DailyQuote, error) {
	if s.quotes == nil {
		return nil, fmt.Errorf("%w: no quote store configured", ledger.ErrValidation)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date precedes start date", ledger.ErrValidation)
	}
	return s.quotes.GetQuoteRange(ctx, strings.ToUpper(symbol), from, to)
}
