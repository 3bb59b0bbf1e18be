// filter.go - The single inclusion predicate shared by listing and summary.
//
// Listing and the summary engine must agree on which transactions a filter
// selects, so both go through Filter.Matches. A nil filter matches every
// transaction. Reversal filtering is NOT part of Filter; reversed
// transactions are excluded by the fold itself.
package ledger

import (
	"strings"
	"time"
)

// Filter narrows a listing or a summary to a subset of transactions.
// Zero-valued fields are ignored.
type Filter struct {
	From *time.Time // inclusive, logical date
	To   *time.Time // inclusive, logical date

	Year  int        // calendar year; 0 = unset
	Month time.Month // requires Year; 0 = unset

	Kind        Kind   // restrict to one transaction kind
	PayerType   string // receipts only
	BuyerName   string // receipts, buyer transfers, discount allocations
	ExpenseType string // expenses only
	Remarks     string // case-insensitive substring of remarks
}

// Matches reports whether the transaction passes the filter.
func (f *Filter) Matches(tx Transaction) bool {
	if f == nil {
		return true
	}
	base := tx.Base()

	if f.Kind != "" && tx.Kind() != f.Kind {
		return false
	}
	if f.From != nil && base.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && base.Date.After(endOfDay(*f.To)) {
		return false
	}
	if f.Year != 0 && base.Date.Year() != f.Year {
		return false
	}
	if f.Month != 0 && base.Date.Month() != f.Month {
		return false
	}
	if f.PayerType != "" {
		r, ok := tx.(*Receipt)
		if !ok || !strings.EqualFold(r.PayerType, f.PayerType) {
			return false
		}
	}
	if f.ExpenseType != "" {
		e, ok := tx.(*Expense)
		if !ok || !strings.EqualFold(e.ExpenseType, f.ExpenseType) {
			return false
		}
	}
	if f.BuyerName != "" && !touchesBuyer(tx, f.BuyerName) {
		return false
	}
	if f.Remarks != "" &&
		!strings.Contains(strings.ToLower(base.Remarks), strings.ToLower(f.Remarks)) {
		return false
	}
	return true
}

func touchesBuyer(tx Transaction, buyer string) bool {
	switch t := tx.(type) {
	case *Receipt:
		return strings.EqualFold(t.BuyerName, buyer)
	case *BuyerTransfer:
		return strings.EqualFold(t.FromBuyer, buyer) || strings.EqualFold(t.ToBuyer, buyer)
	case *Discount:
		for _, a := range t.Allocations {
			if strings.EqualFold(a.BuyerName, buyer) {
				return true
			}
		}
	}
	return false
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
