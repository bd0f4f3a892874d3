package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/ledger"
	"github.com/trogers1052/portfolio-ledger/internal/models"
	"github.com/trogers1052/portfolio-ledger/internal/service"
)

// TradeRecorder applies broker executions to a portfolio ledger
type TradeRecorder interface {
	RecordExternalTransaction(ctx context.Context, userID string, portfolioID uuid.UUID, input models.Transaction) (*models.Transaction, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Config() kafka.ReaderConfig
}

// errMalformed marks a message that can never be applied. It is logged and
// committed instead of retried.
var errMalformed = errors.New("malformed trade event")

const (
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxRetry   = 30 * time.Second
)

// Consumer applies TRADE_DETECTED broker events to the ledger. Each order is
// applied at most once per portfolio, keyed by source and order id. Offsets are
// committed only once a message is applied, skipped as a duplicate or rejected
// by the ledger; storage failures are retried with backoff.
type Consumer struct {
	reader        messageReader
	recorder      TradeRecorder
	now           func() time.Time
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

// NewConsumer creates a new Kafka consumer for trade events
func NewConsumer(brokers []string, topic, groupID string, recorder TradeRecorder) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader:        reader,
		recorder:      recorder,
		now:           time.Now,
		retryDelay:    defaultRetryDelay,
		maxRetryDelay: defaultMaxRetry,
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Str("topic", c.reader.Config().Topic).Msg("starting trade consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("trade consumer shutting down")
				return c.reader.Close()
			}
			log.Error().Err(err).Msg("error fetching message")
			continue
		}

		if !c.handle(ctx, msg) {
			log.Info().Msg("trade consumer shutting down")
			return c.reader.Close()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			log.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to commit offset")
		}
	}
}

// handle processes msg until it succeeds or fails permanently, backing off
// between attempts. It returns false when ctx is cancelled first, in which case
// the message must not be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.processMessage(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, errMalformed) {
			log.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("dropping malformed trade event")
			return true
		}

		log.Error().Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("failed to process trade event")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay *= 2; delay > c.maxRetryDelay {
			delay = c.maxRetryDelay
		}
	}
}

// processMessage applies one trade event. Rejections by the ledger are logged
// and the message is skipped since they would fail the same way on redelivery.
// Any other error is worth retrying.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Debug().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Msg("received message")

	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	if event.EventType != models.EventTradeDetected {
		log.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}

	portfolioID, tx, err := c.convertEventToTransaction(event)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	applied, err := c.recorder.RecordExternalTransaction(ctx, event.UserID, portfolioID, *tx)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		log.Info().
			Str("order_id", tx.ExternalID).
			Str("source", tx.Source).
			Msg("trade already recorded, skipping")
		return nil
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrConflict):
		log.Warn().Err(err).
			Str("order_id", tx.ExternalID).
			Str("portfolio_id", portfolioID.String()).
			Msg("ledger rejected trade")
		return nil
	case err != nil:
		return fmt.Errorf("failed to record trade %s: %w", tx.ExternalID, err)
	}

	log.Info().
		Str("transaction_id", applied.ID.String()).
		Str("type", applied.Type).
		Str("symbol", applied.Symbol).
		Str("shares", applied.Shares.String()).
		Str("price", applied.Price.String()).
		Str("order_id", applied.ExternalID).
		Msg("recorded broker trade")
	return nil
}

// convertEventToTransaction maps a TradeEvent to a ledger transaction
func (c *Consumer) convertEventToTransaction(event models.TradeEvent) (uuid.UUID, *models.Transaction, error) {
	data := event.Data

	portfolioID, err := uuid.Parse(event.PortfolioID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid portfolio id %q: %w", event.PortfolioID, err)
	}
	if data.OrderID == "" {
		return uuid.Nil, nil, fmt.Errorf("missing order id")
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}

	price, err := decimal.NewFromString(data.AveragePrice)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid price %s: %w", data.AveragePrice, err)
	}

	fees := decimal.Zero
	if data.Fees != "" {
		if fees, err = decimal.NewFromString(data.Fees); err != nil {
			return uuid.Nil, nil, fmt.Errorf("invalid fees %s: %w", data.Fees, err)
		}
	}

	var txType string
	switch strings.ToUpper(data.Side) {
	case "BUY":
		txType = models.TransactionTypeBuy
	case "SELL":
		txType = models.TransactionTypeSell
	default:
		return uuid.Nil, nil, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	executedAt := c.now().UTC()
	if data.ExecutedAt != nil && *data.ExecutedAt != "" {
		executedAt, err = time.Parse(time.RFC3339, *data.ExecutedAt)
		if err != nil {
			// Some brokers omit the zone; treat those as UTC
			executedAt, err = time.Parse("2006-01-02T15:04:05", *data.ExecutedAt)
			if err != nil {
				return uuid.Nil, nil, fmt.Errorf("invalid executed_at %s: %w", *data.ExecutedAt, err)
			}
		}
	}

	return portfolioID, &models.Transaction{
		Symbol:     data.Symbol,
		Type:       txType,
		Shares:     quantity,
		Price:      price,
		Fees:       fees,
		ExecutedAt: executedAt,
		Source:     event.Source,
		ExternalID: data.OrderID,
	}, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
