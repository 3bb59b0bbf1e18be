/*
Package ledger provides the cash & transaction engine for the cold-storage
business application.

PURPOSE:
  This package contains the types and algorithms for recording money movement
  across the three funding pools (cash-in-hand, the limit credit account, and
  the current account) and for deriving balances from that history. Receipts,
  expenses, pool transfers, buyer-to-buyer due transfers and farmer discounts
  all flow through the same append-mostly transaction log.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: One of the three funding pools (a tag, never a stored balance)
  - Transaction: Sum type over the five transaction kinds
  - TxnBase: Fields shared by every stored transaction (ids, reversal flag)
  - PoolDelta: Each kind's signed contribution to a pool's balance

DESIGN PRINCIPLES:
  1. Append-mostly: Transactions are never edited or deleted. The single
     permitted mutation is the reversal flag, and it is monotonic.
  2. Derived balances: A pool's balance is always a fold over the active
     transaction history, never a stored number that can drift.
  3. Precision: Uses decimal.Decimal for every amount to avoid
     floating-point errors in money arithmetic.
  4. Real sum types: Each transaction kind is its own struct, so the
     compiler enforces which fields a kind carries.

SEE ALSO:
  - book.go: The operation surface (record, reverse, list, summarize)
  - summary.go: Balance and totals computation
  - txid.go: Sortable transaction identifiers
  - store.go: Persistence and collaborator interfaces
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the rounding slack applied wherever two money amounts are
// compared for equality (allocation sums, due settlement checks).
var Tolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// ACCOUNT - The three funding pools
// =============================================================================

// Account tags which pool a transaction touches. It is not a stored entity;
// a pool's balance is always derived from history.
type Account string

const (
	AccountCash    Account = "cash"
	AccountLimit   Account = "limit"
	AccountCurrent Account = "current"
)

// Accounts returns all pools in display order.
func Accounts() []Account {
	return []Account{AccountCash, AccountLimit, AccountCurrent}
}

// ParseAccount validates an account tag from external input.
func ParseAccount(s string) (Account, error) {
	switch Account(s) {
	case AccountCash, AccountLimit, AccountCurrent:
		return Account(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAccount, s)
}

// =============================================================================
// TRANSACTION KINDS
// =============================================================================

type Kind string

const (
	KindReceipt       Kind = "receipt"        // inbound money
	KindExpense       Kind = "expense"        // outbound money
	KindTransfer      Kind = "transfer"       // pool-to-pool, zero-sum
	KindBuyerTransfer Kind = "buyer_transfer" // moves a due between buyers
	KindDiscount      Kind = "discount"       // reduces buyer dues, no cash
)

// Prefix returns the two-letter transaction ID prefix for the kind.
// Buyer transfers carry no transaction ID and have no prefix.
func (k Kind) Prefix() string {
	switch k {
	case KindReceipt:
		return "CF"
	case KindExpense:
		return "CE"
	case KindTransfer:
		return "CT"
	case KindDiscount:
		return "CD"
	}
	return ""
}

// Reversible reports whether the kind supports reversal. Buyer-to-buyer
// transfers are one-way; callers compensate with an opposite transfer.
func (k Kind) Reversible() bool {
	return k != KindBuyerTransfer
}

// =============================================================================
// TRANSACTION - Sum type over the five kinds
// =============================================================================

// TxnBase holds the fields common to every stored transaction.
type TxnBase struct {
	ID            string // opaque storage id, assigned on record
	TenantID      string
	TransactionID string // sortable id per txid.go; empty for buyer transfers
	Amount        decimal.Decimal
	Date          time.Time // logical date of the transaction
	Remarks       string
	IsReversed    bool
	ReversedAt    *time.Time
	CreatedAt     time.Time
}

// Transaction is the sum type. Concrete variants are *Receipt, *Expense,
// *Transfer, *BuyerTransfer and *Discount.
type Transaction interface {
	Base() *TxnBase
	Kind() Kind

	// PoolDelta returns the signed balance contribution of this transaction
	// to the given pool, ignoring the reversal flag. Reversal filtering is
	// the fold's job, not the transaction's.
	PoolDelta(pool Account) decimal.Decimal

	// Clone returns an independent copy, so stores can hand out transactions
	// without aliasing their internal state.
	Clone() Transaction
}

// Receipt records inbound money into one pool.
type Receipt struct {
	TxnBase
	PayerType string // e.g. "buyer", "advance", "other"
	BuyerName string // set when PayerType refers to a buyer
	Account   Account
}

func (r *Receipt) Base() *TxnBase { return &r.TxnBase }
func (r *Receipt) Kind() Kind     { return KindReceipt }

func (r *Receipt) PoolDelta(pool Account) decimal.Decimal {
	if pool == r.Account {
		return r.Amount
	}
	return decimal.Zero
}

func (r *Receipt) Clone() Transaction {
	c := *r
	c.ReversedAt = cloneTime(r.ReversedAt)
	return &c
}

// Expense records outbound money from one pool.
type Expense struct {
	TxnBase
	ExpenseType  string // e.g. "electricity", "labour", "maintenance"
	ReceiverName string
	Account      Account
}

func (e *Expense) Base() *TxnBase { return &e.TxnBase }
func (e *Expense) Kind() Kind     { return KindExpense }

func (e *Expense) PoolDelta(pool Account) decimal.Decimal {
	if pool == e.Account {
		return e.Amount.Neg()
	}
	return decimal.Zero
}

func (e *Expense) Clone() Transaction {
	c := *e
	c.ReversedAt = cloneTime(e.ReversedAt)
	return &c
}

// Transfer moves money between two pools. Zero-sum across pools.
type Transfer struct {
	TxnBase
	FromAccount Account
	ToAccount   Account
}

func (t *Transfer) Base() *TxnBase { return &t.TxnBase }
func (t *Transfer) Kind() Kind     { return KindTransfer }

func (t *Transfer) PoolDelta(pool Account) decimal.Decimal {
	switch pool {
	case t.ToAccount:
		return t.Amount
	case t.FromAccount:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

func (t *Transfer) Clone() Transaction {
	c := *t
	c.ReversedAt = cloneTime(t.ReversedAt)
	return &c
}

// BuyerTransfer moves an outstanding due from one buyer to another.
// It never touches the three pools and cannot be reversed.
type BuyerTransfer struct {
	TxnBase
	SaleID    string
	FromBuyer string
	ToBuyer   string
}

func (b *BuyerTransfer) Base() *TxnBase                  { return &b.TxnBase }
func (b *BuyerTransfer) Kind() Kind                      { return KindBuyerTransfer }
func (b *BuyerTransfer) PoolDelta(Account) decimal.Decimal { return decimal.Zero }

func (b *BuyerTransfer) Clone() Transaction {
	c := *b
	c.ReversedAt = cloneTime(b.ReversedAt)
	return &c
}

// FarmerKey identifies a farmer. The registry keys farmers by the triple,
// not by a surrogate id.
type FarmerKey struct {
	Name    string
	Village string
	Contact string
}

func (k FarmerKey) String() string {
	return k.Name + "/" + k.Village + "/" + k.Contact
}

// Allocation is the portion of a discount assigned to one buyer's due.
type Allocation struct {
	BuyerName string
	Amount    decimal.Decimal
}

// Discount reduces buyer dues on behalf of a farmer without any cash
// movement. The sum of its allocations equals Amount within Tolerance;
// that invariant is enforced at creation.
type Discount struct {
	TxnBase
	FarmerKey   FarmerKey
	Allocations []Allocation
}

func (d *Discount) Base() *TxnBase                  { return &d.TxnBase }
func (d *Discount) Kind() Kind                      { return KindDiscount }
func (d *Discount) PoolDelta(Account) decimal.Decimal { return decimal.Zero }

func (d *Discount) Clone() Transaction {
	c := *d
	c.ReversedAt = cloneTime(d.ReversedAt)
	c.Allocations = append([]Allocation(nil), d.Allocations...)
	return &c
}

// AllocationFor returns the amount this discount assigns to the buyer.
// Name matching is case-insensitive, like every buyer lookup.
func (d *Discount) AllocationFor(buyerName string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.Allocations {
		if strings.EqualFold(a.BuyerName, buyerName) {
			total = total.Add(a.Amount)
		}
	}
	return total
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
