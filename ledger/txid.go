/*
txid.go - Sortable, tenant-and-date-scoped transaction identifiers

PURPOSE:
  Every pool-affecting transaction gets a human-readable id of the form

      <2-letter kind prefix><YYYYMMDD><counter>

  e.g. CF2026012210 = the 10th transaction recorded on 2026-01-22 for the
  tenant. The counter starts at 1 per (tenant, day) and increments per
  transaction recorded that day regardless of kind, so the id gives a total
  display order without needing timestamp precision.

LISTING ORDER:
  Transactions list newest-first: by the 8-digit date substring, then by the
  numeric counter. Buyer transfers carry no transaction id; they rank after
  any id-carrying transaction and fall back to creation time, then storage
  id, so the order is fully deterministic.

SEE ALSO:
  - store.go: Sequencer, the per-(tenant, day) counter source
*/
package ledger

import (
	"context"
	"sort"
	"strconv"
	"time"
)

const txnDateLayout = "20060102"

// Sequencer hands out the per-(tenant, day) counter used in transaction ids.
// Counters start at 1 and are shared across all transaction kinds.
type Sequencer interface {
	NextSequence(ctx context.Context, tenantID string, day time.Time) (int, error)
}

// FormatTransactionID builds the id for a transaction of the given kind
// recorded on the given logical date with the given counter value.
func FormatTransactionID(kind Kind, day time.Time, seq int) string {
	prefix := kind.Prefix()
	if prefix == "" {
		return ""
	}
	return prefix + day.Format(txnDateLayout) + strconv.Itoa(seq)
}

// txnIDKey splits a transaction id into its comparable parts.
// ok is false for ids too short to carry a date (including empty ids).
func txnIDKey(id string) (date string, counter int, ok bool) {
	if len(id) < 11 { // prefix(2) + date(8) + at least one counter digit
		return "", 0, false
	}
	n, err := strconv.Atoi(id[10:])
	if err != nil {
		return "", 0, false
	}
	return id[2:10], n, true
}

// SortForListing orders transactions newest-first for display.
func SortForListing(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return listingLess(txs[i], txs[j])
	})
}

// listingLess reports whether a ranks before b in the newest-first listing.
func listingLess(a, b Transaction) bool {
	aDate, aSeq, aOK := txnIDKey(a.Base().TransactionID)
	bDate, bSeq, bOK := txnIDKey(b.Base().TransactionID)

	switch {
	case aOK && bOK:
		if aDate != bDate {
			return aDate > bDate
		}
		if aSeq != bSeq {
			return aSeq > bSeq
		}
	case aOK:
		// id-carrying transactions rank before id-less ones
		return true
	case bOK:
		return false
	}

	// Neither has an id (or the ids tie): newest creation time first,
	// then storage id descending for determinism.
	at, bt := a.Base().CreatedAt, b.Base().CreatedAt
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.Base().ID > b.Base().ID
}
