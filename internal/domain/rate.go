package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used on the wire, in the store
// and against the provider API.
const DateLayout = "2006-01-02"

// RateQuote is one resolved exchange rate for a (closing date, symbol) pair.
// Quotes are immutable once recorded: the store only inserts, never updates.
type RateQuote struct {
	Date   time.Time       `json:"date"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}

// DateString returns the quote's closing date in DateLayout form.
func (q RateQuote) DateString() string {
	return q.Date.Format(DateLayout)
}
