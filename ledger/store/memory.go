// Package store provides the in-memory ledger.Store implementation,
// used by tests and demo scenarios.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[string][]ledger.Transaction // tenant -> history, append order
	byRef        map[refKey]ledger.Transaction
	sequences    map[seqKey]int
	sales        map[saleKey]ledger.Sale
	openings     map[openKey]map[ledger.Account]decimal.Decimal
}

type refKey struct {
	TenantID string
	Ref      string
}

type seqKey struct {
	TenantID string
	Day      string // YYYYMMDD
}

type saleKey struct {
	TenantID string
	SaleID   string
}

type openKey struct {
	TenantID string
	Year     int
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string][]ledger.Transaction),
		byRef:        make(map[refKey]ledger.Transaction),
		sequences:    make(map[seqKey]int),
		sales:        make(map[saleKey]ledger.Sale),
		openings:     make(map[openKey]map[ledger.Account]decimal.Decimal),
	}
}

// Append adds a transaction to the tenant's history. Append-only.
func (m *Memory) Append(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := tx.Base()
	stored := tx.Clone()
	m.transactions[base.TenantID] = append(m.transactions[base.TenantID], stored)
	m.byRef[refKey{base.TenantID, base.ID}] = stored
	if base.TransactionID != "" {
		m.byRef[refKey{base.TenantID, base.TransactionID}] = stored
	}
	return nil
}

func (m *Memory) Get(_ context.Context, tenantID, ref string) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.byRef[refKey{tenantID, ref}]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return tx.Clone(), nil
}

func (m *Memory) List(_ context.Context, tenantID string) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.transactions[tenantID]
	out := make([]ledger.Transaction, len(history))
	for i, tx := range history {
		out[i] = tx.Clone()
	}
	return out, nil
}

// MarkReversed flips the reversal flag under the write lock, so readers see
// the transaction fully active or fully reversed.
func (m *Memory) MarkReversed(_ context.Context, tenantID, ref string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.byRef[refKey{tenantID, ref}]
	if !ok {
		return ledger.ErrNotFound
	}
	base := tx.Base()
	if base.IsReversed {
		return ledger.ErrAlreadyReversed
	}
	base.IsReversed = true
	base.ReversedAt = &at
	return nil
}

// NextSequence increments the per-(tenant, day) counter. Starts at 1.
func (m *Memory) NextSequence(_ context.Context, tenantID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := seqKey{tenantID, day.Format("20060102")}
	m.sequences[k]++
	return m.sequences[k], nil
}

// =============================================================================
// SALES
// =============================================================================

func (m *Memory) PutSale(_ context.Context, s ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[saleKey{s.TenantID, s.ID}] = s
	return nil
}

func (m *Memory) GetSale(_ context.Context, tenantID, saleID string) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sales[saleKey{tenantID, saleID}]
	if !ok {
		return nil, ledger.ErrUnknownReference
	}
	out := s
	return &out, nil
}

func (m *Memory) ListSales(_ context.Context, tenantID string) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Sale
	for k, s := range m.sales {
		if k.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

// =============================================================================
// OPENING BALANCES
// =============================================================================

func (m *Memory) SetOpening(_ context.Context, tenantID string, year int, balances map[ledger.Account]decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[ledger.Account]decimal.Decimal, len(balances))
	for pool, amount := range balances {
		copied[pool] = amount
	}
	m.openings[openKey{tenantID, year}] = copied
	return nil
}

func (m *Memory) Opening(_ context.Context, tenantID string, year int) (map[ledger.Account]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[ledger.Account]decimal.Decimal)
	for pool, amount := range m.openings[openKey{tenantID, year}] {
		out[pool] = amount
	}
	return out, nil
}
