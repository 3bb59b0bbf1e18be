/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the boundary between the ledger engine and whatever holds its
  data. The engine never stores a balance; it stores transactions and
  derives everything else, so the Store surface is deliberately small.

APPEND-MOSTLY CONTRACT:
  - Append() is the only way a transaction enters the store.
  - MarkReversed() is the only mutation, it flips the reversal flag exactly
    once, and it must be atomic with respect to concurrent reads: a reader
    sees the transaction fully active or fully reversed, never in between.
  - There is no update and no delete. History is retained for audit.

COLLABORATORS:
  OpeningBalances and sales lookups are inputs this engine consumes but does
  not own. The executable wires them to the same SQLite database; tests wire
  fixed maps.

IMPLEMENTATIONS:
  - store/memory.go: In-memory, for tests and scenarios
  - store/sqlite (top-level): Production SQLite
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Transaction persistence
// =============================================================================

// Store persists transactions. Append-mostly: the single permitted mutation
// is MarkReversed, and it is monotonic.
type Store interface {
	Sequencer

	// Append persists a new transaction. The transaction must be fully
	// validated; Append never partially writes.
	Append(ctx context.Context, tx Transaction) error

	// Get resolves a transaction by its transaction id, falling back to the
	// storage id for id-less kinds. Returns ErrNotFound.
	Get(ctx context.Context, tenantID, ref string) (Transaction, error)

	// List returns every transaction for the tenant, reversed ones included.
	// Order is unspecified; callers sort for display.
	List(ctx context.Context, tenantID string) ([]Transaction, error)

	// MarkReversed sets the reversal flag and timestamp. Returns
	// ErrNotFound if ref resolves to nothing and ErrAlreadyReversed if the
	// flag is already set. Atomic with respect to concurrent reads.
	MarkReversed(ctx context.Context, tenantID, ref string, at time.Time) error
}

// =============================================================================
// SALES - Reference data for dues and buyer transfers
// =============================================================================

// Sale is the lot-sale record buyer dues hang off. The full sales workflow
// lives outside this engine; the ledger only needs the reference fields.
type Sale struct {
	ID        string
	TenantID  string
	BuyerName string
	Farmer    FarmerKey
	Amount    decimal.Decimal
	Date      time.Time
}

// SaleStore holds sale reference records.
type SaleStore interface {
	PutSale(ctx context.Context, s Sale) error

	// GetSale returns ErrUnknownReference if the sale does not exist.
	GetSale(ctx context.Context, tenantID, saleID string) (*Sale, error)

	ListSales(ctx context.Context, tenantID string) ([]Sale, error)
}

// =============================================================================
// COLLABORATOR INPUTS
// =============================================================================

// OpeningBalances supplies the once-per-year seed value for each pool.
// Pools absent from the map open at zero.
type OpeningBalances interface {
	Opening(ctx context.Context, tenantID string, year int) (map[Account]decimal.Decimal, error)
}

// DueLookup answers "how much does this buyer still owe right now".
// Implemented by the dues package over the same store.
type DueLookup interface {
	BuyerOutstanding(ctx context.Context, tenantID, buyerName string) (decimal.Decimal, error)
}

// StaticOpenings is a fixed OpeningBalances, keyed by year. Used in tests
// and demo scenarios.
type StaticOpenings map[int]map[Account]decimal.Decimal

func (s StaticOpenings) Opening(_ context.Context, _ string, year int) (map[Account]decimal.Decimal, error) {
	out := make(map[Account]decimal.Decimal, len(s[year]))
	for pool, amount := range s[year] {
		out[pool] = amount
	}
	return out, nil
}
