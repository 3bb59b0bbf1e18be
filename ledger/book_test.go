package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldworks/cashbook-engine/dues"
	"github.com/coldworks/cashbook-engine/ledger"
	"github.com/coldworks/cashbook-engine/ledger/store"
)

const testTenant = "tenant-1"

func newTestBook(t *testing.T) (*ledger.Book, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	dueBook := dues.NewBook(mem, mem)
	book := ledger.NewBook(testTenant, ledger.BookDeps{
		Store:    mem,
		Sales:    mem,
		Openings: mem,
		Dues:     dueBook,
		Log:      zerolog.Nop(),
	})
	return book, mem
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func yearFilter(year int) *ledger.Filter {
	return &ledger.Filter{Year: year}
}

// =============================================================================
// RECORD + SUMMARY
// =============================================================================

func TestBook_ReceiptAndExpenseMoveCash(t *testing.T) {
	// GIVEN: a fresh book with no opening balances
	book, _ := newTestBook(t)
	ctx := context.Background()

	// WHEN: 5000 comes in and 2000 goes out, both through the cash pool
	receipt, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		PayerType:  "buyer",
		BuyerName:  "Gupta Traders",
		Account:    ledger.AccountCash,
		Amount:     d(5000),
		ReceivedAt: day(2026, time.March, 10),
	})
	require.NoError(t, err)
	require.Equal(t, "CF202603101", receipt.TransactionID)

	expense, err := book.RecordExpense(ctx, ledger.ExpenseInput{
		ExpenseType:  "labour",
		ReceiverName: "Mohan",
		Account:      ledger.AccountCash,
		Amount:       d(2000),
		PaidAt:       day(2026, time.March, 11),
	})
	require.NoError(t, err)
	require.Equal(t, "CE202603111", expense.TransactionID)

	// THEN: the cash balance is the fold of the two, other pools untouched
	summary, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)
	assert.True(t, summary.Balances[ledger.AccountCash].Equal(d(3000)),
		"cash = %s", summary.Balances[ledger.AccountCash])
	assert.True(t, summary.Balances[ledger.AccountLimit].IsZero())
	assert.True(t, summary.Balances[ledger.AccountCurrent].IsZero())
	assert.True(t, summary.TotalInflow.Equal(d(5000)))
	assert.True(t, summary.TotalOutflow.Equal(d(2000)))
}

func TestBook_OpeningBalanceSeedsThePools(t *testing.T) {
	book, mem := newTestBook(t)
	ctx := context.Background()

	require.NoError(t, mem.SetOpening(ctx, testTenant, 2026, map[ledger.Account]decimal.Decimal{
		ledger.AccountCash:  d(1500),
		ledger.AccountLimit: d(400),
	}))

	summary, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)
	assert.True(t, summary.Balances[ledger.AccountCash].Equal(d(1500)))
	assert.True(t, summary.Balances[ledger.AccountLimit].Equal(d(400)))
	assert.True(t, summary.Balances[ledger.AccountCurrent].IsZero())

	// a different year opens at zero
	other, err := book.Summary(ctx, yearFilter(2025))
	require.NoError(t, err)
	assert.True(t, other.Balances[ledger.AccountCash].IsZero())
}

func TestBook_StaticOpenings(t *testing.T) {
	mem := store.NewMemory()
	book := ledger.NewBook(testTenant, ledger.BookDeps{
		Store: mem,
		Sales: mem,
		Openings: ledger.StaticOpenings{
			2026: {ledger.AccountCash: d(1500), ledger.AccountLimit: d(400)},
		},
		Log: zerolog.Nop(),
	})
	ctx := context.Background()

	summary, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)
	assert.True(t, summary.Balances[ledger.AccountCash].Equal(d(1500)))
	assert.True(t, summary.Balances[ledger.AccountLimit].Equal(d(400)))
	assert.True(t, summary.Balances[ledger.AccountCurrent].IsZero())

	// a different year opens at zero
	other, err := book.Summary(ctx, yearFilter(2025))
	require.NoError(t, err)
	assert.True(t, other.Balances[ledger.AccountCash].IsZero())
}

func TestBook_TransferIsZeroSum(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()

	_, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		Account: ledger.AccountCash, Amount: d(5000),
		ReceivedAt: day(2026, time.April, 1),
	})
	require.NoError(t, err)

	before, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)

	transfer, err := book.RecordTransfer(ctx, ledger.TransferInput{
		FromAccount:   ledger.AccountCash,
		ToAccount:     ledger.AccountLimit,
		Amount:        d(1000),
		TransferredAt: day(2026, time.April, 2),
	})
	require.NoError(t, err)
	require.Equal(t, "CT202604021", transfer.TransactionID)

	after, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)

	assert.True(t, after.Balances[ledger.AccountCash].Equal(d(4000)))
	assert.True(t, after.Balances[ledger.AccountLimit].Equal(d(1000)))
	assert.True(t, after.TotalBalance().Equal(before.TotalBalance()),
		"a transfer must not change the total across pools")
	assert.True(t, after.TransferNet[ledger.AccountCash].Equal(d(-1000)))
	assert.True(t, after.TransferNet[ledger.AccountLimit].Equal(d(1000)))
}

func TestBook_SequenceCountsPerDayAndKindSharesIt(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()
	when := day(2026, time.May, 5)

	r1, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		Account: ledger.AccountCash, Amount: d(100), ReceivedAt: when,
	})
	require.NoError(t, err)
	e1, err := book.RecordExpense(ctx, ledger.ExpenseInput{
		Account: ledger.AccountCash, Amount: d(50), PaidAt: when,
	})
	require.NoError(t, err)
	r2, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		Account: ledger.AccountCash, Amount: d(100), ReceivedAt: when.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	// one counter per day shared across kinds; a new day restarts at 1
	assert.Equal(t, "CF202605051", r1.TransactionID)
	assert.Equal(t, "CE202605052", e1.TransactionID)
	assert.Equal(t, "CF202605061", r2.TransactionID)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestBook_RejectsBadInputs(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
			Account: ledger.AccountCash, Amount: decimal.Zero,
			ReceivedAt: day(2026, time.June, 1),
		})
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
		assert.True(t, ledger.IsClientError(err))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := book.RecordExpense(ctx, ledger.ExpenseInput{
			Account: ledger.Account("savings"), Amount: d(10),
			PaidAt: day(2026, time.June, 1),
		})
		require.ErrorIs(t, err, ledger.ErrUnknownAccount)
	})

	t.Run("transfer between the same pool", func(t *testing.T) {
		_, err := book.RecordTransfer(ctx, ledger.TransferInput{
			FromAccount: ledger.AccountCash, ToAccount: ledger.AccountCash,
			Amount: d(10), TransferredAt: day(2026, time.June, 1),
		})
		require.ErrorIs(t, err, ledger.ErrInvalidAccountPair)
	})

	// THEN: nothing was written
	txs, err := book.ListTransactions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

// =============================================================================
// BUYER TRANSFERS
// =============================================================================

func TestBook_BuyerTransferChecksTheSale(t *testing.T) {
	book, mem := newTestBook(t)
	ctx := context.Background()

	require.NoError(t, mem.PutSale(ctx, ledger.Sale{
		ID: "sale-101", TenantID: testTenant,
		BuyerName: "Gupta Traders",
		Farmer:    ledger.FarmerKey{Name: "Ram Kumar", Village: "Basantpur"},
		Amount:    d(18000),
		Date:      day(2026, time.February, 1),
	}))

	t.Run("unknown sale", func(t *testing.T) {
		_, err := book.RecordBuyerTransfer(ctx, ledger.BuyerTransferInput{
			SaleID: "sale-999", FromBuyer: "Gupta Traders", ToBuyer: "Verma & Sons",
			Amount: d(1000), Date: day(2026, time.February, 2),
		})
		require.ErrorIs(t, err, ledger.ErrUnknownReference)
	})

	t.Run("sale belongs to someone else", func(t *testing.T) {
		_, err := book.RecordBuyerTransfer(ctx, ledger.BuyerTransferInput{
			SaleID: "sale-101", FromBuyer: "Verma & Sons", ToBuyer: "Gupta Traders",
			Amount: d(1000), Date: day(2026, time.February, 2),
		})
		require.ErrorIs(t, err, ledger.ErrUnknownReference)
	})

	t.Run("valid transfer carries no id and moves the due", func(t *testing.T) {
		bt, err := book.RecordBuyerTransfer(ctx, ledger.BuyerTransferInput{
			SaleID: "sale-101", FromBuyer: "Gupta Traders", ToBuyer: "Verma & Sons",
			Amount: d(4000), Date: day(2026, time.February, 2),
		})
		require.NoError(t, err)
		assert.Empty(t, bt.TransactionID)

		dueBook := dues.NewBook(mem, mem)
		from, err := dueBook.BuyerOutstanding(ctx, testTenant, "Gupta Traders")
		require.NoError(t, err)
		to, err := dueBook.BuyerOutstanding(ctx, testTenant, "Verma & Sons")
		require.NoError(t, err)
		assert.True(t, from.Equal(d(14000)), "source due shrinks: %s", from)
		assert.True(t, to.Equal(d(4000)), "destination due grows: %s", to)
	})
}

// =============================================================================
// DISCOUNTS
// =============================================================================

func TestBook_DiscountValidatesAllocations(t *testing.T) {
	book, mem := newTestBook(t)
	ctx := context.Background()
	farmer := ledger.FarmerKey{Name: "Ram Kumar", Village: "Basantpur"}

	require.NoError(t, mem.PutSale(ctx, ledger.Sale{
		ID: "sale-101", TenantID: testTenant, BuyerName: "Gupta Traders",
		Farmer: farmer, Amount: d(500), Date: day(2026, time.February, 1),
	}))

	t.Run("empty allocations", func(t *testing.T) {
		_, err := book.RecordDiscount(ctx, ledger.DiscountInput{
			Farmer: farmer, Total: d(100), Date: day(2026, time.February, 3),
		})
		require.ErrorIs(t, err, ledger.ErrAllocationMismatch)
	})

	t.Run("allocations do not sum to the total", func(t *testing.T) {
		_, err := book.RecordDiscount(ctx, ledger.DiscountInput{
			Farmer: farmer, Total: d(100), Date: day(2026, time.February, 3),
			Allocations: []ledger.Allocation{{BuyerName: "Gupta Traders", Amount: d(90)}},
		})
		require.ErrorIs(t, err, ledger.ErrAllocationMismatch)
	})

	t.Run("allocation above the buyer's outstanding", func(t *testing.T) {
		_, err := book.RecordDiscount(ctx, ledger.DiscountInput{
			Farmer: farmer, Total: d(600), Date: day(2026, time.February, 3),
			Allocations: []ledger.Allocation{{BuyerName: "Gupta Traders", Amount: d(600)}},
		})
		require.ErrorIs(t, err, ledger.ErrAllocationExceedsDue)
	})

	t.Run("valid discount settles the due", func(t *testing.T) {
		disc, err := book.RecordDiscount(ctx, ledger.DiscountInput{
			Farmer: farmer, Total: d(200), Date: day(2026, time.February, 3),
			Allocations: []ledger.Allocation{{BuyerName: "Gupta Traders", Amount: d(200)}},
		})
		require.NoError(t, err)
		assert.Equal(t, "CD202602031", disc.TransactionID)

		dueBook := dues.NewBook(mem, mem)
		out, err := dueBook.BuyerOutstanding(ctx, testTenant, "Gupta Traders")
		require.NoError(t, err)
		assert.True(t, out.Equal(d(300)), "outstanding = %s", out)
	})
}

// =============================================================================
// REVERSAL
// =============================================================================

func TestBook_ReverseRestoresTheBalance(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()

	_, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		Account: ledger.AccountCash, Amount: d(5000),
		ReceivedAt: day(2026, time.July, 1),
	})
	require.NoError(t, err)
	expense, err := book.RecordExpense(ctx, ledger.ExpenseInput{
		Account: ledger.AccountCash, Amount: d(2000),
		PaidAt: day(2026, time.July, 2),
	})
	require.NoError(t, err)

	reversed, err := book.Reverse(ctx, expense.TransactionID)
	require.NoError(t, err)
	assert.True(t, reversed.Base().IsReversed)
	require.NotNil(t, reversed.Base().ReversedAt)

	summary, err := book.Summary(ctx, yearFilter(2026))
	require.NoError(t, err)
	assert.True(t, summary.Balances[ledger.AccountCash].Equal(d(5000)),
		"reversed expense no longer counts: %s", summary.Balances[ledger.AccountCash])

	// the reversed row stays visible in the listing
	txs, err := book.ListTransactions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, txs, 2)
}

func TestBook_ReverseIsTerminal(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()

	receipt, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		Account: ledger.AccountCash, Amount: d(100),
		ReceivedAt: day(2026, time.July, 1),
	})
	require.NoError(t, err)

	_, err = book.Reverse(ctx, receipt.TransactionID)
	require.NoError(t, err)

	_, err = book.Reverse(ctx, receipt.TransactionID)
	require.ErrorIs(t, err, ledger.ErrAlreadyReversed)
}

func TestBook_ReverseRejectsBuyerTransfersAndUnknownRefs(t *testing.T) {
	book, mem := newTestBook(t)
	ctx := context.Background()

	_, err := book.Reverse(ctx, "CF202607011")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, mem.PutSale(ctx, ledger.Sale{
		ID: "sale-101", TenantID: testTenant, BuyerName: "Gupta Traders",
		Amount: d(1000), Date: day(2026, time.July, 1),
	}))
	bt, err := book.RecordBuyerTransfer(ctx, ledger.BuyerTransferInput{
		SaleID: "sale-101", FromBuyer: "Gupta Traders", ToBuyer: "Verma & Sons",
		Amount: d(500), Date: day(2026, time.July, 2),
	})
	require.NoError(t, err)

	_, err = book.Reverse(ctx, bt.ID)
	require.ErrorIs(t, err, ledger.ErrUnreversibleKind)
}

// =============================================================================
// LISTING + FILTERED SUMMARY
// =============================================================================

func TestBook_ListAndSummaryShareTheFilter(t *testing.T) {
	book, _ := newTestBook(t)
	ctx := context.Background()

	_, err := book.RecordReceipt(ctx, ledger.ReceiptInput{
		PayerType: "buyer", BuyerName: "Gupta Traders",
		Account: ledger.AccountCash, Amount: d(3000),
		ReceivedAt: day(2026, time.March, 5),
	})
	require.NoError(t, err)
	_, err = book.RecordReceipt(ctx, ledger.ReceiptInput{
		PayerType: "other", Account: ledger.AccountLimit, Amount: d(700),
		ReceivedAt: day(2026, time.April, 5),
	})
	require.NoError(t, err)
	_, err = book.RecordExpense(ctx, ledger.ExpenseInput{
		ExpenseType: "freight", Account: ledger.AccountCash, Amount: d(900),
		PaidAt: day(2026, time.March, 20),
	})
	require.NoError(t, err)

	filter := &ledger.Filter{Year: 2026, Month: time.March}

	txs, err := book.ListTransactions(ctx, filter)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	summary, err := book.Summary(ctx, filter)
	require.NoError(t, err)
	require.NotNil(t, summary.Filtered)
	assert.Equal(t, len(txs), summary.Filtered.Count,
		"filtered totals must cover exactly the listed rows")
	assert.True(t, summary.Filtered.Inflow.Equal(d(3000)))
	assert.True(t, summary.Filtered.Outflow.Equal(d(900)))

	// headline numbers still cover the whole year
	assert.True(t, summary.TotalInflow.Equal(d(3700)))
}
