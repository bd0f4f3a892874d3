package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// Engine applies and reverses transactions against a ledger State. Every public
// method is all-or-nothing: it returns a new consistent State or an error, and
// never modifies the State it was given.
type Engine struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// NewEngine returns an engine using the wall clock and random UUIDs
func NewEngine() *Engine {
	return &Engine{now: time.Now, newID: uuid.New}
}

// NewEngineWithClock returns an engine with a fixed time source, for replay and tests
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now, newID: uuid.New}
}

// Validate normalizes and checks a transaction before it touches the ledger
func Validate(tx *models.Transaction) error {
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	tx.Type = strings.ToLower(strings.TrimSpace(tx.Type))

	if tx.Symbol == "" {
		return wrapf(ErrValidation, "symbol is required")
	}
	if !models.IsTypeValid(tx.Type) {
		return wrapf(ErrValidation, "unknown transaction type %q", tx.Type)
	}
	if !tx.Shares.IsPositive() {
		return wrapf(ErrValidation, "shares must be positive, got %s", tx.Shares)
	}
	if tx.Price.IsNegative() {
		return wrapf(ErrValidation, "price must not be negative, got %s", tx.Price)
	}
	if tx.Fees.IsNegative() {
		return wrapf(ErrValidation, "fees must not be negative, got %s", tx.Fees)
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{{"shares", tx.Shares}, {"price", tx.Price}, {"fees", tx.Fees}} {
		if err := checkScale(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Apply appends a transaction to the journal and applies its effects
func (e *Engine) Apply(s *State, tx models.Transaction) (*State, *models.Transaction, error) {
	if err := Validate(&tx); err != nil {
		return nil, nil, err
	}

	now := e.now()
	if tx.ID == uuid.Nil {
		tx.ID = e.newID()
	}
	if _, exists := s.Transactions[tx.ID]; exists {
		return nil, nil, wrapf(ErrConflict, "transaction %s already applied", tx.ID)
	}
	if tx.ExecutedAt.IsZero() {
		tx.ExecutedAt = now
	}
	tx.PortfolioID = s.Portfolio.ID
	tx.Seq = 0
	tx.CreatedAt = now
	tx.UpdatedAt = now

	next := s.Clone()
	if err := e.apply(next, &tx, now); err != nil {
		return nil, nil, err
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, nil, err
	}
	return next, &tx, nil
}

// Amend reverses a transaction and replays it with the amended fields under the
// same id. An amendment that only touches notes changes nothing else. A buy,
// sell or dividend keeps its place in the journal when its symbol and type stay
// the same; anything else is replayed as the latest transaction.
func (e *Engine) Amend(s *State, txID uuid.UUID, fields models.TransactionAmendment) (*State, *models.Transaction, error) {
	current, ok := s.Transactions[txID]
	if !ok {
		return nil, nil, wrapf(ErrNotFound, "transaction %s", txID)
	}

	merged := fields.Merge(*current)
	if err := Validate(&merged); err != nil {
		return nil, nil, err
	}

	now := e.now()
	next := s.Clone()
	original := next.Transactions[txID]

	if sameEffects(original, &merged) {
		original.Notes = merged.Notes
		original.UpdatedAt = now
		amended := *original
		return next, &amended, nil
	}

	// The buy's lots were rescaled by the split; replaying it would open them
	// in pre-split units.
	if original.Type == models.TransactionTypeBuy {
		if later := laterOf(next, original, models.TransactionTypeSplit); later != nil {
			return nil, nil, wrapf(ErrConflict, "buy %s precedes split %s of %s; remove the split first", txID, later.ID, original.Symbol)
		}
	}

	keepSeq := merged.Symbol == original.Symbol && merged.Type == original.Type &&
		merged.Type != models.TransactionTypeSplit
	seq := original.Seq
	if err := e.reverse(next, original, now); err != nil {
		return nil, nil, err
	}

	merged.Seq = 0
	if keepSeq {
		merged.Seq = seq
	}
	merged.UpdatedAt = now
	if err := e.apply(next, &merged, now); err != nil {
		return nil, nil, err
	}
	if keepSeq && merged.Type != models.TransactionTypeDividend {
		recomputeHolding(next, merged.Symbol, now)
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, nil, err
	}
	return next, &merged, nil
}

// sameEffects reports whether a and b would move the ledger identically
func sameEffects(a, b *models.Transaction) bool {
	return a.Symbol == b.Symbol && a.Type == b.Type &&
		a.Shares.Equal(b.Shares) && a.Price.Equal(b.Price) && a.Fees.Equal(b.Fees) &&
		a.ExecutedAt.Equal(b.ExecutedAt)
}

// Remove reverses a transaction and drops it from the journal
func (e *Engine) Remove(s *State, txID uuid.UUID) (*State, error) {
	if _, ok := s.Transactions[txID]; !ok {
		return nil, wrapf(ErrNotFound, "transaction %s", txID)
	}

	next := s.Clone()
	if err := e.reverse(next, next.Transactions[txID], e.now()); err != nil {
		return nil, err
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, err
	}
	return next, nil
}

// AdjustCash records a deposit (positive) or withdrawal (negative) outside the
// journal. The balance may not go negative.
func (e *Engine) AdjustCash(s *State, amount decimal.Decimal) (*State, error) {
	if amount.IsZero() {
		return nil, wrapf(ErrValidation, "amount must not be zero")
	}
	if err := checkScale("amount", amount); err != nil {
		return nil, err
	}
	balance := s.Portfolio.CashBalance.Add(amount)
	if balance.IsNegative() {
		return nil, wrapf(ErrInsufficientFunds, "withdrawal of %s exceeds cash balance %s", amount.Neg(), s.Portfolio.CashBalance)
	}
	next := s.Clone()
	next.Portfolio.CashBalance = balance
	next.Portfolio.UpdatedAt = e.now()
	return next, nil
}

// apply runs the fixed pipeline for one transaction: pre-checks, cash, lots,
// holding. Pre-checks fail before anything is touched.
func (e *Engine) apply(s *State, tx *models.Transaction, now time.Time) error {
	switch tx.Type {
	case models.TransactionTypeBuy:
		if err := checkFunds(s, tx); err != nil {
			return err
		}
		applyDelta(s, tx.CashDelta())
		e.openLot(s, tx, now)
		applyBuyToHolding(s, tx, now)

	case models.TransactionTypeSell:
		if err := checkShares(s, tx); err != nil {
			return err
		}
		applyDelta(s, tx.CashDelta())
		if err := e.consumeFIFO(s, tx, now); err != nil {
			return err
		}
		applySellToHolding(s, tx.Symbol, tx.Shares, now)

	case models.TransactionTypeDividend:
		applyDelta(s, tx.CashDelta())

	case models.TransactionTypeSplit:
		if _, ok := s.Holdings[tx.Symbol]; !ok {
			return wrapf(ErrValidation, "no position in %s to split", tx.Symbol)
		}
		scaleLots(s, tx.Symbol, tx.Shares)
		applySplitToHolding(s, tx.Symbol, tx.Shares, now)
	}

	if tx.Seq == 0 {
		tx.Seq = s.nextSeq()
	}
	s.Portfolio.UpdatedAt = now
	s.Transactions[tx.ID] = tx
	return nil
}

// reverse undoes every effect of an applied transaction and removes it from the
// journal. A reversal that would invalidate a later transaction of the same
// symbol is refused with ErrConflict.
func (e *Engine) reverse(s *State, tx *models.Transaction, now time.Time) error {
	switch tx.Type {
	case models.TransactionTypeBuy:
		lots := s.lotsOpenedBy(tx.ID)
		drop := make(map[uuid.UUID]bool, len(lots))
		for _, lot := range lots {
			sold := s.salesOf(func(ls *models.LotSale) bool { return ls.TaxLotID == lot.ID })
			if len(sold) > 0 {
				return wrapf(ErrConflict, "buy %s has lots consumed by %d later sale(s); remove those first", tx.ID, len(sold))
			}
			drop[lot.ID] = true
		}
		s.removeLots(drop)
		applyDelta(s, tx.CashDelta().Neg())
		delete(s.Transactions, tx.ID)
		recomputeHolding(s, tx.Symbol, now)

	case models.TransactionTypeSell:
		if later := laterOf(s, tx, models.TransactionTypeSplit); later != nil {
			return wrapf(ErrConflict, "sell %s precedes split %s of %s", tx.ID, later.ID, tx.Symbol)
		}
		if err := restoreSales(s, tx); err != nil {
			return err
		}
		applyDelta(s, tx.CashDelta().Neg())
		delete(s.Transactions, tx.ID)
		// A buy applied after the sell changed the average cost, so the holding
		// has to be rebuilt rather than topped up.
		if h, ok := s.Holdings[tx.Symbol]; ok && laterOf(s, tx, models.TransactionTypeBuy) == nil {
			h.TotalShares = h.TotalShares.Add(tx.Shares)
			h.UpdatedAt = now
		} else {
			recomputeHolding(s, tx.Symbol, now)
		}

	case models.TransactionTypeDividend:
		applyDelta(s, tx.CashDelta().Neg())
		delete(s.Transactions, tx.ID)

	case models.TransactionTypeSplit:
		if later := laterOf(s, tx, models.TransactionTypeBuy, models.TransactionTypeSell); later != nil {
			return wrapf(ErrConflict, "split %s of %s is followed by %s %s", tx.ID, tx.Symbol, later.Type, later.ID)
		}
		delete(s.Transactions, tx.ID)
		unscaleLots(s, tx.Symbol, tx.Shares)
		recomputeHolding(s, tx.Symbol, now)

	default:
		return wrapf(ErrLedgerConsistency, "transaction %s has unknown type %q", tx.ID, tx.Type)
	}

	s.Portfolio.UpdatedAt = now
	return nil
}

// laterOf returns a transaction of the same symbol, of one of the given types,
// applied after tx
func laterOf(s *State, tx *models.Transaction, types ...string) *models.Transaction {
	for _, other := range s.journal(tx.Symbol) {
		if other.Seq <= tx.Seq {
			continue
		}
		for _, t := range types {
			if other.Type == t {
				return other
			}
		}
	}
	return nil
}
