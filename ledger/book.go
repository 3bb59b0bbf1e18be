/*
book.go - The operation surface of the cash & transaction ledger

PURPOSE:
  Book is what callers (HTTP handlers, reports) talk to. It validates every
  transaction intent against the invariants, assigns ids, persists through
  the Store, and computes listings and summaries. One Book serves one
  tenant; the engine assumes a single editor acting at a time per tenant.

OPERATION FLOW:
  record intent -> validate (nothing written on failure)
               -> assign transaction id (per-day counter) and storage id
               -> append to history
  reversal     -> flip the reversal flag once, never back
  reads        -> pure folds over the current history

  Every operation is synchronous and all-or-nothing. There are no retries
  and no background work.

SEE ALSO:
  - summary.go: The folds behind Summary
  - allocation.go: Discount distribution across buyer dues
  - dues package: BuyerOutstanding, computed over this same history
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BOOK
// =============================================================================

// BookDeps carries the collaborators a Book needs. Openings and Dues may be
// nil: pools then open at zero and the discount due-ceiling check is skipped.
type BookDeps struct {
	Store    Store
	Sales    SaleStore
	Openings OpeningBalances
	Dues     DueLookup
	Log      zerolog.Logger
}

// Book records and reads the cash ledger of one tenant.
type Book struct {
	tenantID string
	store    Store
	sales    SaleStore
	openings OpeningBalances
	dues     DueLookup
	log      zerolog.Logger

	now   func() time.Time
	newID func() string
}

func NewBook(tenantID string, deps BookDeps) *Book {
	return &Book{
		tenantID: tenantID,
		store:    deps.Store,
		sales:    deps.Sales,
		openings: deps.Openings,
		dues:     deps.Dues,
		log:      deps.Log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// =============================================================================
// RECORD OPERATIONS
// =============================================================================

type ReceiptInput struct {
	PayerType  string
	BuyerName  string
	Account    Account
	Amount     decimal.Decimal
	ReceivedAt time.Time
	Notes      string
}

// RecordReceipt records inbound money into a pool.
func (b *Book) RecordReceipt(ctx context.Context, in ReceiptInput) (*Receipt, error) {
	if err := validAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if err := validPool("account", in.Account); err != nil {
		return nil, err
	}
	tx := &Receipt{
		PayerType: in.PayerType,
		BuyerName: in.BuyerName,
		Account:   in.Account,
	}
	if err := b.append(ctx, tx, in.Amount, in.ReceivedAt, in.Notes); err != nil {
		return nil, err
	}
	return tx, nil
}

type ExpenseInput struct {
	ExpenseType  string
	ReceiverName string
	Account      Account
	Amount       decimal.Decimal
	PaidAt       time.Time
	Remarks      string
}

// RecordExpense records outbound money from a pool.
func (b *Book) RecordExpense(ctx context.Context, in ExpenseInput) (*Expense, error) {
	if err := validAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if err := validPool("account", in.Account); err != nil {
		return nil, err
	}
	tx := &Expense{
		ExpenseType:  in.ExpenseType,
		ReceiverName: in.ReceiverName,
		Account:      in.Account,
	}
	if err := b.append(ctx, tx, in.Amount, in.PaidAt, in.Remarks); err != nil {
		return nil, err
	}
	return tx, nil
}

type TransferInput struct {
	FromAccount   Account
	ToAccount     Account
	Amount        decimal.Decimal
	TransferredAt time.Time
	Remarks       string
}

// RecordTransfer moves money between two distinct pools.
func (b *Book) RecordTransfer(ctx context.Context, in TransferInput) (*Transfer, error) {
	if err := validAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if err := validPool("from_account", in.FromAccount); err != nil {
		return nil, err
	}
	if err := validPool("to_account", in.ToAccount); err != nil {
		return nil, err
	}
	if in.FromAccount == in.ToAccount {
		return nil, fieldErr("to_account", ErrInvalidAccountPair, string(in.ToAccount))
	}
	tx := &Transfer{FromAccount: in.FromAccount, ToAccount: in.ToAccount}
	if err := b.append(ctx, tx, in.Amount, in.TransferredAt, in.Remarks); err != nil {
		return nil, err
	}
	return tx, nil
}

type BuyerTransferInput struct {
	SaleID    string
	FromBuyer string
	ToBuyer   string
	Amount    decimal.Decimal
	Date      time.Time
	Remarks   string
}

// RecordBuyerTransfer moves an outstanding due from one buyer to another
// against a sale. The sale must exist and belong to the source buyer.
// Buyer transfers carry no transaction id and cannot be reversed.
func (b *Book) RecordBuyerTransfer(ctx context.Context, in BuyerTransferInput) (*BuyerTransfer, error) {
	if err := validAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	sale, err := b.sales.GetSale(ctx, b.tenantID, in.SaleID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(sale.BuyerName, in.FromBuyer) {
		return nil, fieldErr("from_buyer", ErrUnknownReference, "sale belongs to "+sale.BuyerName)
	}
	tx := &BuyerTransfer{SaleID: in.SaleID, FromBuyer: in.FromBuyer, ToBuyer: in.ToBuyer}
	if err := b.append(ctx, tx, in.Amount, in.Date, in.Remarks); err != nil {
		return nil, err
	}
	return tx, nil
}

type DiscountInput struct {
	Farmer      FarmerKey
	Total       decimal.Decimal
	Date        time.Time
	Remarks     string
	Allocations []Allocation
}

// RecordDiscount records a farmer discount spread across buyer dues.
// Allocations must each be positive, must not exceed the addressed buyer's
// outstanding due at submission time, and must sum to the total within
// Tolerance. The due amounts used for the ceiling check are read at
// submission; a concurrent change between the caller's read and this call
// is an accepted limitation of the single-editor model.
func (b *Book) RecordDiscount(ctx context.Context, in DiscountInput) (*Discount, error) {
	if err := validAmount("total_amount", in.Total); err != nil {
		return nil, err
	}
	if len(in.Allocations) == 0 {
		return nil, fieldErr("allocations", ErrAllocationMismatch, "no allocations")
	}
	for _, a := range in.Allocations {
		if !a.Amount.IsPositive() {
			return nil, fieldErr("allocations."+a.BuyerName, ErrInvalidAmount, a.Amount.String())
		}
	}
	if diff := SumAllocations(in.Allocations).Sub(in.Total).Abs(); diff.GreaterThan(Tolerance) {
		return nil, fieldErr("allocations", ErrAllocationMismatch, "off by "+diff.String())
	}
	if b.dues != nil {
		for _, a := range in.Allocations {
			outstanding, err := b.dues.BuyerOutstanding(ctx, b.tenantID, a.BuyerName)
			if err != nil {
				return nil, err
			}
			if a.Amount.Sub(outstanding).GreaterThan(Tolerance) {
				return nil, fieldErr("allocations."+a.BuyerName, ErrAllocationExceedsDue,
					"outstanding "+outstanding.String())
			}
		}
	}
	tx := &Discount{
		FarmerKey:   in.Farmer,
		Allocations: append([]Allocation(nil), in.Allocations...),
	}
	if err := b.append(ctx, tx, in.Total, in.Date, in.Remarks); err != nil {
		return nil, err
	}
	return tx, nil
}

// append fills the base fields and persists. Validation must already have
// passed: a failed append after the sequence was taken leaves a gap in the
// day's counter, never a partial write.
func (b *Book) append(ctx context.Context, tx Transaction, amount decimal.Decimal, date time.Time, remarks string) error {
	base := tx.Base()
	base.ID = b.newID()
	base.TenantID = b.tenantID
	base.Amount = amount
	base.Date = date
	base.Remarks = remarks
	base.CreatedAt = b.now()

	if tx.Kind().Prefix() != "" {
		seq, err := b.store.NextSequence(ctx, b.tenantID, date)
		if err != nil {
			return err
		}
		base.TransactionID = FormatTransactionID(tx.Kind(), date, seq)
	}

	if err := b.store.Append(ctx, tx); err != nil {
		return err
	}
	b.log.Info().
		Str("kind", string(tx.Kind())).
		Str("transaction_id", base.TransactionID).
		Str("amount", amount.String()).
		Msg("transaction recorded")
	return nil
}

// =============================================================================
// REVERSAL
// =============================================================================

// Reverse flips a transaction from active to reversed. The transition is
// terminal: reversing twice fails with ErrAlreadyReversed, and buyer
// transfers fail with ErrUnreversibleKind. No compensating entry is
// written; every aggregate simply stops counting the transaction. A
// reversed discount thereby restores the addressed buyers' dues.
func (b *Book) Reverse(ctx context.Context, ref string) (Transaction, error) {
	tx, err := b.store.Get(ctx, b.tenantID, ref)
	if err != nil {
		return nil, err
	}
	if !tx.Kind().Reversible() {
		return nil, fieldErr("transaction_id", ErrUnreversibleKind, string(tx.Kind()))
	}
	if err := b.store.MarkReversed(ctx, b.tenantID, ref, b.now()); err != nil {
		return nil, err
	}
	b.log.Info().
		Str("transaction_id", tx.Base().TransactionID).
		Str("kind", string(tx.Kind())).
		Msg("transaction reversed")
	return b.store.Get(ctx, b.tenantID, ref)
}

// =============================================================================
// READS
// =============================================================================

// ListTransactions returns the tenant's history, newest first per the
// transaction id order. Reversed transactions are included (they are
// audit-visible); the filter narrows the result the same way the summary's
// filtered totals are narrowed.
func (b *Book) ListTransactions(ctx context.Context, filter *Filter) ([]Transaction, error) {
	txs, err := b.store.List(ctx, b.tenantID)
	if err != nil {
		return nil, err
	}
	out := txs[:0]
	for _, tx := range txs {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	SortForListing(out)
	return out, nil
}

// Summary computes the tenant's money position. Headline balances cover the
// opening year's full active history; when a filter is supplied, the
// filtered totals are computed with the identical predicate the listing
// uses. The opening year is the filter's year when set, otherwise the
// current one.
func (b *Book) Summary(ctx context.Context, filter *Filter) (Summary, error) {
	year := b.now().Year()
	if filter != nil && filter.Year != 0 {
		year = filter.Year
	}

	opening := map[Account]decimal.Decimal{}
	if b.openings != nil {
		var err error
		opening, err = b.openings.Opening(ctx, b.tenantID, year)
		if err != nil {
			return Summary{}, err
		}
	}

	txs, err := b.store.List(ctx, b.tenantID)
	if err != nil {
		return Summary{}, err
	}

	headline := &Filter{Year: year}
	totals := foldTotals(txs, headline)

	summary := Summary{
		Year:         year,
		Opening:      opening,
		Balances:     foldBalances(txs, headline, opening),
		TotalInflow:  totals.Inflow,
		TotalOutflow: totals.Outflow,
		TransferNet:  totals.TransferNet,
	}
	if filter != nil {
		filtered := foldTotals(txs, filter)
		summary.Filtered = &filtered
	}
	return summary, nil
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func validAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fieldErr(field, ErrInvalidAmount, amount.String())
	}
	return nil
}

func validPool(field string, pool Account) error {
	if _, err := ParseAccount(string(pool)); err != nil {
		return fieldErr(field, ErrUnknownAccount, string(pool))
	}
	return nil
}

