package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldworks/cashbook-engine/ledger"
)

func idReceipt(txnID string) ledger.Transaction {
	return &ledger.Receipt{
		TxnBase: ledger.TxnBase{ID: "row-" + txnID, TransactionID: txnID},
		Account: ledger.AccountCash,
	}
}

func idlessTransfer(storageID string, createdAt time.Time) ledger.Transaction {
	return &ledger.BuyerTransfer{
		TxnBase: ledger.TxnBase{ID: storageID, CreatedAt: createdAt},
	}
}

func txnIDs(txs []ledger.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Base().TransactionID
	}
	return out
}

func TestFormatTransactionID(t *testing.T) {
	day := time.Date(2026, time.January, 22, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "CF2026012210", ledger.FormatTransactionID(ledger.KindReceipt, day, 10))
	assert.Equal(t, "CE202601221", ledger.FormatTransactionID(ledger.KindExpense, day, 1))
	assert.Equal(t, "CT20260122123", ledger.FormatTransactionID(ledger.KindTransfer, day, 123))
	assert.Equal(t, "CD202601222", ledger.FormatTransactionID(ledger.KindDiscount, day, 2))
	assert.Equal(t, "", ledger.FormatTransactionID(ledger.KindBuyerTransfer, day, 1),
		"buyer transfers carry no transaction id")
}

func TestSortForListing_SameDayCounterOrder(t *testing.T) {
	// GIVEN: three same-day ids recorded out of order
	// WHEN: sorting for listing
	// THEN: highest counter first

	txs := []ledger.Transaction{
		idReceipt("CF2026011003"),
		idReceipt("CF2026011001"),
		idReceipt("CF2026011002"),
	}
	ledger.SortForListing(txs)

	assert.Equal(t, []string{"CF2026011003", "CF2026011002", "CF2026011001"}, txnIDs(txs))
}

func TestSortForListing_DateBeatsCounter(t *testing.T) {
	// A later date ranks first even when its counter is smaller.
	txs := []ledger.Transaction{
		idReceipt("CF2026010999"),
		idReceipt("CF202601101"),
	}
	ledger.SortForListing(txs)

	assert.Equal(t, []string{"CF202601101", "CF2026010999"}, txnIDs(txs))
}

func TestSortForListing_CounterIsNumericNotLexicographic(t *testing.T) {
	// Counter 10 outranks counter 9 despite "10" < "9" as strings.
	txs := []ledger.Transaction{
		idReceipt("CF202601109"),
		idReceipt("CF2026011010"),
	}
	ledger.SortForListing(txs)

	assert.Equal(t, []string{"CF2026011010", "CF202601109"}, txnIDs(txs))
}

func TestSortForListing_IDlessRankAfterIDs(t *testing.T) {
	// GIVEN: a mix of id-carrying and id-less transactions
	// THEN: id-carrying ones come first; id-less ones order by creation
	//       time descending, then storage id descending

	noon := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	txs := []ledger.Transaction{
		idlessTransfer("bt-a", noon),
		idReceipt("CF202601101"),
		idlessTransfer("bt-b", noon.Add(time.Hour)),
		idlessTransfer("bt-c", noon),
	}
	ledger.SortForListing(txs)

	require.Equal(t, "CF202601101", txs[0].Base().TransactionID)
	assert.Equal(t, "bt-b", txs[1].Base().ID, "newest id-less first")
	assert.Equal(t, "bt-c", txs[2].Base().ID, "creation-time tie breaks by storage id descending")
	assert.Equal(t, "bt-a", txs[3].Base().ID)
}
