/*
Package sqlite provides the SQLite-backed implementation of the ledger's
storage interfaces.

PURPOSE:
  Implements ledger.Store, ledger.SaleStore and ledger.OpeningBalances on a
  single SQLite database. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-MOSTLY ENFORCEMENT:
  The transactions table is written with INSERTs and exactly one UPDATE
  shape: setting the reversal flag and timestamp, guarded so it fires at
  most once per row. No DELETE exists. History is retained for audit.

KEY TABLES:
  transactions:      One row per ledger transaction; variant-specific
                     columns are NULL for the kinds they don't apply to,
                     discount allocations travel as JSON.
  sequences:         Per-(tenant, day) transaction id counters.
  sales:             Sale reference records for dues and buyer transfers.
  opening_balances:  Once-per-year seed value per pool.

CONCURRENCY:
  WAL mode plus a process-level mutex: readers run concurrently, the
  reversal update and the sequence upsert are serialized, so a reader sees
  a transaction fully active or fully reversed, never in between.

USAGE:
  st, err := sqlite.New("./data/cashbook.db")   // or ":memory:"
  book := ledger.NewBook(tenant, ledger.BookDeps{Store: st, Sales: st, Openings: st})

SEE ALSO:
  - ledger/store.go: Interface contracts
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/ledger"
)

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.Store           = (*Store)(nil)
	_ ledger.SaleStore       = (*Store)(nil)
	_ ledger.OpeningBalances = (*Store)(nil)
)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: ":memory:" databases are per-connection, and the
	// writes are serialized by the mutex anyway
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-mostly: INSERT plus the one reversal UPDATE)
	CREATE TABLE IF NOT EXISTS transactions (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		kind           TEXT NOT NULL,
		amount         TEXT NOT NULL,
		date           TEXT NOT NULL,
		remarks        TEXT NOT NULL DEFAULT '',
		is_reversed    INTEGER NOT NULL DEFAULT 0,
		reversed_at    TEXT,
		created_at     TEXT NOT NULL,

		-- receipt
		payer_type TEXT,
		buyer_name TEXT,
		account    TEXT,
		-- expense
		expense_type  TEXT,
		receiver_name TEXT,
		-- transfer
		from_account TEXT,
		to_account   TEXT,
		-- buyer transfer
		sale_id    TEXT,
		from_buyer TEXT,
		to_buyer   TEXT,
		-- discount
		farmer_name      TEXT,
		farmer_village   TEXT,
		farmer_contact   TEXT,
		allocations_json TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_txn_id
		ON transactions(tenant_id, transaction_id) WHERE transaction_id != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_tenant_date
		ON transactions(tenant_id, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_kind
		ON transactions(tenant_id, kind);

	-- Per-(tenant, day) transaction id counters
	CREATE TABLE IF NOT EXISTS sequences (
		tenant_id TEXT NOT NULL,
		day       TEXT NOT NULL,
		counter   INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, day)
	);

	-- Sale reference records
	CREATE TABLE IF NOT EXISTS sales (
		id             TEXT NOT NULL,
		tenant_id      TEXT NOT NULL,
		buyer_name     TEXT NOT NULL,
		farmer_name    TEXT NOT NULL DEFAULT '',
		farmer_village TEXT NOT NULL DEFAULT '',
		farmer_contact TEXT NOT NULL DEFAULT '',
		amount         TEXT NOT NULL,
		date           TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Once-per-year seed value per pool
	CREATE TABLE IF NOT EXISTS opening_balances (
		tenant_id TEXT NOT NULL,
		year      INTEGER NOT NULL,
		account   TEXT NOT NULL,
		amount    TEXT NOT NULL,
		PRIMARY KEY (tenant_id, year, account)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) Append(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := tx.Base()
	cols := variantColumns{}
	switch t := tx.(type) {
	case *ledger.Receipt:
		cols.payerType = nullStr(t.PayerType)
		cols.buyerName = nullStr(t.BuyerName)
		cols.account = nullStr(string(t.Account))
	case *ledger.Expense:
		cols.expenseType = nullStr(t.ExpenseType)
		cols.receiverName = nullStr(t.ReceiverName)
		cols.account = nullStr(string(t.Account))
	case *ledger.Transfer:
		cols.fromAccount = nullStr(string(t.FromAccount))
		cols.toAccount = nullStr(string(t.ToAccount))
	case *ledger.BuyerTransfer:
		cols.saleID = nullStr(t.SaleID)
		cols.fromBuyer = nullStr(t.FromBuyer)
		cols.toBuyer = nullStr(t.ToBuyer)
	case *ledger.Discount:
		cols.farmerName = nullStr(t.FarmerKey.Name)
		cols.farmerVillage = nullStr(t.FarmerKey.Village)
		cols.farmerContact = nullStr(t.FarmerKey.Contact)
		allocJSON, err := json.Marshal(t.Allocations)
		if err != nil {
			return fmt.Errorf("marshal allocations: %w", err)
		}
		cols.allocations = nullStr(string(allocJSON))
	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, tenant_id, transaction_id, kind, amount, date, remarks,
			is_reversed, reversed_at, created_at,
			payer_type, buyer_name, account,
			expense_type, receiver_name,
			from_account, to_account,
			sale_id, from_buyer, to_buyer,
			farmer_name, farmer_village, farmer_contact, allocations_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		base.ID, base.TenantID, base.TransactionID, string(tx.Kind()),
		base.Amount.String(), base.Date.UTC().Format(time.RFC3339), base.Remarks,
		base.CreatedAt.UTC().Format(time.RFC3339Nano),
		cols.payerType, cols.buyerName, cols.account,
		cols.expenseType, cols.receiverName,
		cols.fromAccount, cols.toAccount,
		cols.saleID, cols.fromBuyer, cols.toBuyer,
		cols.farmerName, cols.farmerVillage, cols.farmerContact, cols.allocations,
	)
	return err
}

type variantColumns struct {
	payerType, buyerName, account sql.NullString
	expenseType, receiverName     sql.NullString
	fromAccount, toAccount        sql.NullString
	saleID, fromBuyer, toBuyer    sql.NullString
	farmerName, farmerVillage     sql.NullString
	farmerContact, allocations    sql.NullString
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const txnColumns = `
	id, tenant_id, transaction_id, kind, amount, date, remarks,
	is_reversed, reversed_at, created_at,
	payer_type, buyer_name, account,
	expense_type, receiver_name,
	from_account, to_account,
	sale_id, from_buyer, to_buyer,
	farmer_name, farmer_village, farmer_contact, allocations_json`

func (s *Store) Get(ctx context.Context, tenantID, ref string) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(ctx, tenantID, ref)
}

func (s *Store) getLocked(ctx context.Context, tenantID, ref string) (ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE tenant_id = ? AND (transaction_id = ? OR id = ?)
		LIMIT 1`, tenantID, ref, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ledger.ErrNotFound
	}
	return scanTransaction(rows)
}

func (s *Store) List(ctx context.Context, tenantID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE tenant_id = ?
		ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MarkReversed is the one permitted UPDATE. Under the write lock the
// check-then-set pair is atomic with respect to readers.
func (s *Store) MarkReversed(ctx context.Context, tenantID, ref string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.getLocked(ctx, tenantID, ref)
	if err != nil {
		return err
	}
	if tx.Base().IsReversed {
		return ledger.ErrAlreadyReversed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET is_reversed = 1, reversed_at = ?
		WHERE tenant_id = ? AND id = ? AND is_reversed = 0`,
		at.UTC().Format(time.RFC3339Nano), tenantID, tx.Base().ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAlreadyReversed
	}
	return nil
}

// NextSequence upserts the per-(tenant, day) counter and returns its new
// value. Counters start at 1.
func (s *Store) NextSequence(ctx context.Context, tenantID string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counter int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (tenant_id, day, counter) VALUES (?, ?, 1)
		ON CONFLICT(tenant_id, day) DO UPDATE SET counter = counter + 1
		RETURNING counter`,
		tenantID, day.Format("20060102")).Scan(&counter)
	if err != nil {
		return 0, err
	}
	return counter, nil
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		base               ledger.TxnBase
		kind, amount, date string
		isReversed         int
		reversedAt         sql.NullString
		createdAt          string
		cols               variantColumns
	)
	err := rows.Scan(
		&base.ID, &base.TenantID, &base.TransactionID, &kind, &amount, &date, &base.Remarks,
		&isReversed, &reversedAt, &createdAt,
		&cols.payerType, &cols.buyerName, &cols.account,
		&cols.expenseType, &cols.receiverName,
		&cols.fromAccount, &cols.toAccount,
		&cols.saleID, &cols.fromBuyer, &cols.toBuyer,
		&cols.farmerName, &cols.farmerVillage, &cols.farmerContact, &cols.allocations,
	)
	if err != nil {
		return nil, err
	}

	base.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	base.Date, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	base.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	base.IsReversed = isReversed != 0
	if reversedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, reversedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse reversed_at %q: %w", reversedAt.String, err)
		}
		base.ReversedAt = &t
	}

	switch ledger.Kind(kind) {
	case ledger.KindReceipt:
		return &ledger.Receipt{
			TxnBase:   base,
			PayerType: cols.payerType.String,
			BuyerName: cols.buyerName.String,
			Account:   ledger.Account(cols.account.String),
		}, nil
	case ledger.KindExpense:
		return &ledger.Expense{
			TxnBase:      base,
			ExpenseType:  cols.expenseType.String,
			ReceiverName: cols.receiverName.String,
			Account:      ledger.Account(cols.account.String),
		}, nil
	case ledger.KindTransfer:
		return &ledger.Transfer{
			TxnBase:     base,
			FromAccount: ledger.Account(cols.fromAccount.String),
			ToAccount:   ledger.Account(cols.toAccount.String),
		}, nil
	case ledger.KindBuyerTransfer:
		return &ledger.BuyerTransfer{
			TxnBase:   base,
			SaleID:    cols.saleID.String,
			FromBuyer: cols.fromBuyer.String,
			ToBuyer:   cols.toBuyer.String,
		}, nil
	case ledger.KindDiscount:
		d := &ledger.Discount{
			TxnBase: base,
			FarmerKey: ledger.FarmerKey{
				Name:    cols.farmerName.String,
				Village: cols.farmerVillage.String,
				Contact: cols.farmerContact.String,
			},
		}
		if cols.allocations.Valid {
			if err := json.Unmarshal([]byte(cols.allocations.String), &d.Allocations); err != nil {
				return nil, fmt.Errorf("parse allocations: %w", err)
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q", kind)
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) PutSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, buyer_name, farmer_name, farmer_village, farmer_contact, amount, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			buyer_name = excluded.buyer_name,
			farmer_name = excluded.farmer_name,
			farmer_village = excluded.farmer_village,
			farmer_contact = excluded.farmer_contact,
			amount = excluded.amount,
			date = excluded.date`,
		sale.ID, sale.TenantID, sale.BuyerName,
		sale.Farmer.Name, sale.Farmer.Village, sale.Farmer.Contact,
		sale.Amount.String(), sale.Date.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetSale(ctx context.Context, tenantID, saleID string) (*ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, buyer_name, farmer_name, farmer_village, farmer_contact, amount, date
		FROM sales WHERE tenant_id = ? AND id = ?`, tenantID, saleID)
	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrUnknownReference
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, tenantID string) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, buyer_name, farmer_name, farmer_village, farmer_contact, amount, date
		FROM sales WHERE tenant_id = ? ORDER BY date`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sale)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*ledger.Sale, error) {
	var (
		sale         ledger.Sale
		amount, date string
	)
	err := row.Scan(&sale.ID, &sale.TenantID, &sale.BuyerName,
		&sale.Farmer.Name, &sale.Farmer.Village, &sale.Farmer.Contact,
		&amount, &date)
	if err != nil {
		return nil, err
	}
	sale.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse sale amount %q: %w", amount, err)
	}
	sale.Date, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("parse sale date %q: %w", date, err)
	}
	return &sale, nil
}

// =============================================================================
// OPENING BALANCES
// =============================================================================

// SetOpening stores the seed value of one year's pools, replacing any
// previous values for that year.
func (s *Store) SetOpening(ctx context.Context, tenantID string, year int, balances map[ledger.Account]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM opening_balances WHERE tenant_id = ? AND year = ?`, tenantID, year); err != nil {
		return err
	}
	for pool, amount := range balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO opening_balances (tenant_id, year, account, amount)
			VALUES (?, ?, ?, ?)`,
			tenantID, year, string(pool), amount.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Opening(ctx context.Context, tenantID string, year int) (map[ledger.Account]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT account, amount FROM opening_balances
		WHERE tenant_id = ? AND year = ?`, tenantID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ledger.Account]decimal.Decimal)
	for rows.Next() {
		var pool, amount string
		if err := rows.Scan(&pool, &amount); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse opening amount %q: %w", amount, err)
		}
		out[ledger.Account(pool)] = d
	}
	return out, rows.Err()
}
