package ledger

import "github.com/shopspring/decimal"

// Scale is the number of decimal places the ledger keeps for every quantity,
// price and amount. It matches the NUMERIC(20, 8) columns the store writes, so
// a state read back from the database equals the state that was written.
const Scale = 8

// round brings a derived value back to Scale places, half away from zero
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

func checkScale(field string, d decimal.Decimal) error {
	if !d.Equal(round(d)) {
		return wrapf(ErrValidation, "%s %s has more than %d decimal places", field, d, Scale)
	}
	return nil
}
