package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// ErrDuplicate reports an external transaction that is already in the ledger
var ErrDuplicate = errors.New("duplicate transaction")

// ApplyTransaction records a buy, sell, dividend or split and applies its effects
func (s *Service) ApplyTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	input.ID = uuid.Nil
	return s.apply(ctx, userID, portfolioID, input)
}

// RecordExternalTransaction applies a transaction reported by a broker. A
// transaction with the same source and external id is applied at most once;
// repeats return ErrDuplicate.
func (s *Service) RecordExternalTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	if input.Source == "" || input.ExternalID == "" {
		return nil, fmt.Errorf("%w: source and external id are required", ledger.ErrValidation)
	}

	exists, err := s.repo.TransactionExists(ctx, portfolioID, input.Source, input.ExternalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s order %s", ErrDuplicate, input.Source, input.ExternalID)
	}

	input.ID = uuid.Nil
	return s.apply(ctx, userID, portfolioID, input)
}

func (s *Service) apply(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error) {
	var applied *models.Transaction
	state, err := s.update(ctx, userID, portfolioID, func(current *ledger.State) (*ledger.State, error) {
		if input.ExternalID != "" && hasExternal(current, input.Source, input.ExternalID) {
			return nil, fmt.Errorf("%w: %s order %s", ErrDuplicate, input.Source, input.ExternalID)
		}
		next, tx, err := s.engine.Apply(current, input)
		applied = tx
		return next, err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("portfolio_id", portfolioID.String()).
		Str("transaction_id", applied.ID.String()).
		Str("type", applied.Type).
		Str("symbol", applied.Symbol).
		Str("shares", applied.Shares.String()).
		Str("price", applied.Price.String()).
		Msg("transaction applied")
	s.publish(ctx, models.EventTransactionApplied, state, applied)
	return applied, nil
}

// AmendTransaction reverses a transaction and replays it with the changed fields
func (s *Service) AmendTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID, fields models.TransactionAmendment) (*models.Transaction, error) {
	var amended *models.Transaction
	state, err := s.update(ctx, userID, portfolioID, func(current *ledger.State) (*ledger.State, error) {
		next, tx, err := s.engine.Amend(current, txID, fields)
		amended = tx
		return next, err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("portfolio_id", portfolioID.String()).
		Str("transaction_id", txID.String()).
		Str("type", amended.Type).
		Str("symbol", amended.Symbol).
		Msg("transaction amended")
	s.publish(ctx, models.EventTransactionAmended, state, amended)
	return amended, nil
}

// RemoveTransaction reverses a transaction and deletes it from the journal
func (s *Service) RemoveTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) error {
	var removed models.Transaction
	state, err := s.update(ctx, userID, portfolioID, func(current *ledger.State) (*ledger.State, error) {
		if tx, ok := current.Transactions[txID]; ok {
			removed = *tx
		}
		return s.engine.Remove(current, txID)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("portfolio_id", portfolioID.String()).
		Str("transaction_id", txID.String()).
		Str("type", removed.Type).
		Str("symbol", removed.Symbol).
		Msg("transaction removed")
	s.publish(ctx, models.EventTransactionRemoved, state, &removed)
	return nil
}

// GetTransaction returns one journal entry
func (s *Service) GetTransaction(ctx context.Context, userID string, portfolioID, txID uuid.UUID) (*models.Transaction, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.GetTransaction(ctx, portfolioID, txID)
}

// ListTransactions returns the journal, most recent first
func (s *Service) ListTransactions(ctx context.Context, userID string, portfolioID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	if _, err := s.authorize(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, portfolioID, f)
}

func hasExternal(state *ledger.State, source, externalID string) bool {
	for _, tx := range state.Transactions {
		if tx.Source == source && tx.ExternalID == externalID {
			return true
		}
	}
	return false
}

// logLedgerError raises consistency failures to error level; business rule
// rejections are the caller's concern
func logLedgerError(err error, portfolioID uuid.UUID) {
	if errors.Is(err, ledger.ErrLedgerConsistency) {
		log.Error().Err(err).Str("portfolio_id", portfolioID.String()).Msg("ledger consistency violation")
		return
	}
	log.Debug().Err(err).Str("portfolio_id", portfolioID.String()).Msg("ledger update rejected")
}
