/*
Package dues derives buyer and farmer outstanding amounts from the ledger.

PURPOSE:
  A buyer's due is never stored. It is computed from the same active
  transaction history the cash ledger folds over:

      outstanding(buyer) = Σ sales billed to buyer
                         + Σ dues transferred in
                         − Σ dues transferred out
                         − Σ receipts from the buyer
                         − Σ discount allocations to the buyer

  evaluated only over transactions with the reversal flag unset. Reversing
  a receipt or a discount therefore restores the buyer's due with no extra
  bookkeeping here.

STATUS:
  DeriveStatus is the one place the paid/partial/due classification lives,
  so every screen applies the same rounding tolerance.
*/
package dues

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/ledger"
)

// =============================================================================
// STATUS DERIVATION
// =============================================================================

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusDue     Status = "due"
)

// DeriveStatus classifies a due from the billed total and the settled
// amount, within ledger.Tolerance. This is the canonical derivation;
// nothing else should re-implement the comparison.
func DeriveStatus(total, settled decimal.Decimal) Status {
	if total.Sub(settled).LessThanOrEqual(ledger.Tolerance) {
		return StatusPaid
	}
	if settled.LessThanOrEqual(ledger.Tolerance) {
		return StatusDue
	}
	return StatusPartial
}

// =============================================================================
// DUE BOOK
// =============================================================================

// Book computes dues over a ledger store and its sales registry.
type Book struct {
	store ledger.Store
	sales ledger.SaleStore
}

var _ ledger.DueLookup = (*Book)(nil)

func NewBook(store ledger.Store, sales ledger.SaleStore) *Book {
	return &Book{store: store, sales: sales}
}

// BuyerDue is one buyer's position.
type BuyerDue struct {
	BuyerName   string
	Billed      decimal.Decimal
	Settled     decimal.Decimal
	Outstanding decimal.Decimal
	Status      Status
}

// BuyerOutstanding returns how much the buyer still owes right now.
func (b *Book) BuyerOutstanding(ctx context.Context, tenantID, buyerName string) (decimal.Decimal, error) {
	due, err := b.BuyerPosition(ctx, tenantID, buyerName)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return due.Outstanding, nil
}

// BuyerPosition returns the buyer's billed/settled/outstanding breakdown.
func (b *Book) BuyerPosition(ctx context.Context, tenantID, buyerName string) (BuyerDue, error) {
	billed, err := b.billedTo(ctx, tenantID, buyerName)
	if err != nil {
		return BuyerDue{}, err
	}

	txs, err := b.store.List(ctx, tenantID)
	if err != nil {
		return BuyerDue{}, err
	}

	settled := decimal.Zero
	for _, tx := range txs {
		if tx.Base().IsReversed {
			continue
		}
		switch t := tx.(type) {
		case *ledger.Receipt:
			if equalName(t.BuyerName, buyerName) {
				settled = settled.Add(t.Amount)
			}
		case *ledger.Discount:
			settled = settled.Add(t.AllocationFor(buyerName))
		case *ledger.BuyerTransfer:
			// a due moved away counts as settled for the source buyer,
			// and as extra billing for the destination
			if equalName(t.FromBuyer, buyerName) {
				settled = settled.Add(t.Amount)
			}
			if equalName(t.ToBuyer, buyerName) {
				billed = billed.Add(t.Amount)
			}
		}
	}

	outstanding := billed.Sub(settled)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	return BuyerDue{
		BuyerName:   buyerName,
		Billed:      billed,
		Settled:     settled,
		Outstanding: outstanding,
		Status:      DeriveStatus(billed, settled),
	}, nil
}

func (b *Book) billedTo(ctx context.Context, tenantID, buyerName string) (decimal.Decimal, error) {
	sales, err := b.sales.ListSales(ctx, tenantID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	billed := decimal.Zero
	for _, s := range sales {
		if equalName(s.BuyerName, buyerName) {
			billed = billed.Add(s.Amount)
		}
	}
	return billed, nil
}

// =============================================================================
// FARMER-SIDE LOOKUPS
// =============================================================================

// FarmerBuyerDues returns the outstanding dues of the buyers on a farmer's
// sales, largest due first. This is the priority order fed to the discount
// allocator.
func (b *Book) FarmerBuyerDues(ctx context.Context, tenantID string, farmer ledger.FarmerKey) ([]ledger.DueLine, error) {
	sales, err := b.sales.ListSales(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var lines []ledger.DueLine
	for _, s := range sales {
		if s.Farmer != farmer || seen[s.BuyerName] {
			continue
		}
		seen[s.BuyerName] = true
		outstanding, err := b.BuyerOutstanding(ctx, tenantID, s.BuyerName)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ledger.DueLine{BuyerName: s.BuyerName, Outstanding: outstanding})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Outstanding.GreaterThan(lines[j].Outstanding)
	})
	return lines, nil
}

// FarmerOutstanding sums the outstanding dues across a farmer's buyers.
// A discount larger than this is rejected before it reaches the ledger.
func (b *Book) FarmerOutstanding(ctx context.Context, tenantID string, farmer ledger.FarmerKey) (decimal.Decimal, error) {
	lines, err := b.FarmerBuyerDues(ctx, tenantID, farmer)
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Outstanding)
	}
	return total, nil
}

func equalName(a, b string) bool {
	return strings.EqualFold(a, b)
}
