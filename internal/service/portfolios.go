package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// CreatePortfolio opens a portfolio for the user with an opening cash balance
func (s *Service) CreatePortfolio(ctx context.Context, userID, name string, openingCash decimal.Decimal, isDefault bool) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ledger.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: portfolio name is required", ledger.ErrValidation)
	}
	if openingCash.IsNegative() {
		return nil, fmt.Errorf("%w: opening cash must not be negative", ledger.ErrValidation)
	}

	p := &models.Portfolio{
		UserID:      userID,
		Name:        name,
		CashBalance: openingCash,
		IsDefault:   isDefault,
	}
	if err := s.repo.CreatePortfolio(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("portfolio_id", p.ID.String()).
		Str("user_id", userID).
		Str("cash_balance", openingCash.String()).
		Msg("portfolio created")
	return p, nil
}

// ListPortfolios returns the user's portfolios
func (s *Service) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	return s.repo.ListPortfolios(ctx, userID)
}

// GetPortfolio returns one of the user's portfolios
func (s *Service) GetPortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) (*models.Portfolio, error) {
	return s.authorize(ctx, userID, portfolioID)
}

// DeletePortfolio removes a portfolio together with its whole ledger
func (s *Service) DeletePortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) error {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return err
	}

	unlock := s.locks.lock(portfolioID)
	defer unlock()

	if err := s.repo.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	s.invalidate(ctx, portfolioID)

	log.Info().Str("portfolio_id", portfolioID.String()).Msg("portfolio deleted")
	return nil
}

// AdjustCash deposits (positive amount) or withdraws (negative amount) cash
func (s *Service) AdjustCash(ctx context.Context, userID string, portfolioID uuid.UUID, amount decimal.Decimal) (*models.Portfolio, error) {
	state, err := s.update(ctx, userID, portfolioID, func(current *ledger.State) (*ledger.State, error) {
		return s.engine.AdjustCash(current, amount)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("portfolio_id", portfolioID.String()).
		Str("amount", amount.String()).
		Str("cash_balance", state.Portfolio.CashBalance.String()).
		Msg("cash adjusted")
	s.publish(ctx, models.EventCashAdjusted, state, nil)
	return &state.Portfolio, nil
}
