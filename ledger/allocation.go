/*
allocation.go - Greedy distribution of a farmer discount across buyer dues

PURPOSE:
  When a farmer grants a discount, it is spread across the buyers who owe
  against that farmer's produce. The caller supplies the buyers in priority
  order (largest or earliest due first); the allocator walks the list once,
  giving each buyer min(remaining, outstanding) until the total is used up.

PROPERTIES:
  - Single pass, no backtracking: a partially-covered buyer simply absorbs
    the remainder and every later buyer gets zero.
  - Deterministic: the result depends only on the input order and amounts.
  - Sum(allocations) == min(total, sum(outstanding dues)). Rejecting a
    discount larger than the total outstanding is the caller's validation,
    not the allocator's.
*/
package ledger

import "github.com/shopspring/decimal"

// DueLine is one buyer's outstanding due, in the priority order chosen by
// the caller.
type DueLine struct {
	BuyerName   string
	Outstanding decimal.Decimal
}

// AllocateDiscount distributes total across the dues, top of the list first.
// The result has one entry per input line, zeros included, in input order.
func AllocateDiscount(total decimal.Decimal, dues []DueLine) []Allocation {
	remaining := total
	out := make([]Allocation, len(dues))
	for i, line := range dues {
		alloc := decimal.Min(remaining, line.Outstanding)
		if alloc.IsNegative() {
			alloc = decimal.Zero
		}
		out[i] = Allocation{BuyerName: line.BuyerName, Amount: alloc}
		remaining = remaining.Sub(alloc)
	}
	return out
}

// SumAllocations totals a slice of allocations.
func SumAllocations(allocs []Allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Amount)
	}
	return sum
}
