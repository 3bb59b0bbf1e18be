/*
summary.go - Balance and totals computation

PURPOSE:
  Answers "how much money is in each pool" and "how much came in and went
  out". There is no stored balance anywhere: every number here is a fold
  over the active transaction history.

  balance(pool) = opening(pool, year)
                + Σ inflow(pool) − Σ outflow(pool) + Σ net transfer(pool)

  evaluated only over transactions with the reversal flag unset. Reversing
  a transaction therefore changes the summary by exactly the inverse of its
  original contribution, with no compensating entry written.

HEADLINE VS FILTERED:
  The headline balances always cover the opening year's full history. When
  the caller passes a filter, the summary additionally carries totals for
  the filtered subset, computed with the exact same predicate the listing
  uses (Filter.Matches), so the two views cannot drift apart.

  Buyer transfers and discounts redistribute dues, not cash; they never
  contribute to pool balances or inflow/outflow totals.
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// Totals aggregates one set of transactions.
type Totals struct {
	Count       int
	Inflow      decimal.Decimal // receipts
	Outflow     decimal.Decimal // expenses
	TransferNet map[Account]decimal.Decimal
}

// Summary is the point-in-time money position of a tenant.
type Summary struct {
	Year     int
	Opening  map[Account]decimal.Decimal
	Balances map[Account]decimal.Decimal

	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
	TransferNet  map[Account]decimal.Decimal

	// Filtered is present only when the caller supplied a filter.
	Filtered *Totals
}

// TotalBalance sums the three pools. Useful for the transfer zero-sum check.
func (s Summary) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.Balances {
		total = total.Add(b)
	}
	return total
}

// =============================================================================
// FOLD
// =============================================================================

func newTotals() Totals {
	return Totals{
		Inflow:      decimal.Zero,
		Outflow:     decimal.Zero,
		TransferNet: zeroPerPool(),
	}
}

func zeroPerPool() map[Account]decimal.Decimal {
	m := make(map[Account]decimal.Decimal, 3)
	for _, pool := range Accounts() {
		m[pool] = decimal.Zero
	}
	return m
}

// foldTotals aggregates the active transactions selected by the filter.
// Reversed transactions never count, regardless of the filter.
func foldTotals(txs []Transaction, filter *Filter) Totals {
	totals := newTotals()
	for _, tx := range txs {
		if tx.Base().IsReversed || !filter.Matches(tx) {
			continue
		}
		totals.Count++
		switch t := tx.(type) {
		case *Receipt:
			totals.Inflow = totals.Inflow.Add(t.Amount)
		case *Expense:
			totals.Outflow = totals.Outflow.Add(t.Amount)
		case *Transfer:
			totals.TransferNet[t.ToAccount] = totals.TransferNet[t.ToAccount].Add(t.Amount)
			totals.TransferNet[t.FromAccount] = totals.TransferNet[t.FromAccount].Sub(t.Amount)
		}
	}
	return totals
}

// foldBalances computes per-pool balances over the active transactions
// selected by the filter, seeded with the opening amounts.
func foldBalances(txs []Transaction, filter *Filter, opening map[Account]decimal.Decimal) map[Account]decimal.Decimal {
	balances := zeroPerPool()
	for pool, amount := range opening {
		balances[pool] = amount
	}
	for _, tx := range txs {
		if tx.Base().IsReversed || !filter.Matches(tx) {
			continue
		}
		for _, pool := range Accounts() {
			balances[pool] = balances[pool].Add(tx.PoolDelta(pool))
		}
	}
	return balances
}
