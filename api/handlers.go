/*
handlers.go - HTTP API handlers for the cashbook engine

PURPOSE:
  Exposes the cash & transaction ledger via REST. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger's Book.

ENDPOINTS:
  Transactions:
    POST   /api/receipts                    Record a receipt
    POST   /api/expenses                    Record an expense
    POST   /api/transfers                   Record a pool transfer
    POST   /api/buyer-transfers             Move a due between buyers
    POST   /api/discounts                   Record a farmer discount
    POST   /api/discounts/preview           Suggest a discount allocation
    POST   /api/transactions/{id}/reverse   Reverse a transaction
    GET    /api/transactions                List (filterable, newest first)
    GET    /api/summary                     Balances and totals

  Reference data:
    POST   /api/sales                       Register a sale
    GET    /api/sales                       List sales
    GET    /api/buyers/{name}/due           Buyer due position
    PUT    /api/opening-balances/{year}     Set a year's opening pools
    GET    /api/opening-balances/{year}     Read a year's opening pools

  Drafts:
    PUT    /api/drafts/{key}                Save form state
    GET    /api/drafts/{key}                Read form state (if not expired)
    DELETE /api/drafts/{key}                Discard form state

  Scenarios:
    GET    /api/scenarios                   List demo datasets
    POST   /api/scenarios/load              Load a demo dataset

ERROR HANDLING:
  Ledger errors map onto HTTP status via the classification helpers:
  - 400: validation (bad amount, equal transfer accounts, allocation sum)
  - 404: unknown transaction/sale/buyer reference
  - 409: already reversed, unreversible kind
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scenarios.go: Demo dataset loaders
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/drafts"
	"github.com/coldworks/cashbook-engine/dues"
	"github.com/coldworks/cashbook-engine/ledger"
)

// OpeningStore reads and writes the once-per-year pool seed values.
// Both the SQLite and the memory store implement it.
type OpeningStore interface {
	ledger.OpeningBalances
	SetOpening(ctx context.Context, tenantID string, year int, balances map[ledger.Account]decimal.Decimal) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tenant   string
	Book     *ledger.Book
	Dues     *dues.Book
	Sales    ledger.SaleStore
	Openings OpeningStore
	Drafts   *drafts.Store
	Log      zerolog.Logger

	currentScenario string
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateReceipt records inbound money.
// POST /api/receipts
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	receivedAt, err := parseDate(req.ReceivedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid received_at (use YYYY-MM-DD)", "received_at", err)
		return
	}
	tx, err := h.Book.RecordReceipt(r.Context(), ledger.ReceiptInput{
		PayerType:  req.PayerType,
		BuyerName:  req.BuyerName,
		Account:    ledger.Account(req.Account),
		Amount:     req.Amount,
		ReceivedAt: receivedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// CreateExpense records outbound money.
// POST /api/expenses
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	paidAt, err := parseDate(req.PaidAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at (use YYYY-MM-DD)", "paid_at", err)
		return
	}
	tx, err := h.Book.RecordExpense(r.Context(), ledger.ExpenseInput{
		ExpenseType:  req.ExpenseType,
		ReceiverName: req.ReceiverName,
		Account:      ledger.Account(req.Account),
		Amount:       req.Amount,
		PaidAt:       paidAt,
		Remarks:      req.Remarks,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// CreateTransfer moves money between pools.
// POST /api/transfers
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	transferredAt, err := parseDate(req.TransferredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transferred_at (use YYYY-MM-DD)", "transferred_at", err)
		return
	}
	tx, err := h.Book.RecordTransfer(r.Context(), ledger.TransferInput{
		FromAccount:   ledger.Account(req.FromAccount),
		ToAccount:     ledger.Account(req.ToAccount),
		Amount:        req.Amount,
		TransferredAt: transferredAt,
		Remarks:       req.Remarks,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// CreateBuyerTransfer moves a due between buyers.
// POST /api/buyer-transfers
func (h *Handler) CreateBuyerTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateBuyerTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", "date", err)
		return
	}
	tx, err := h.Book.RecordBuyerTransfer(r.Context(), ledger.BuyerTransferInput{
		SaleID:    req.SaleID,
		FromBuyer: req.FromBuyer,
		ToBuyer:   req.ToBuyer,
		Amount:    req.Amount,
		Date:      date,
		Remarks:   req.Remarks,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// CreateDiscount records a farmer discount across buyer dues.
// POST /api/discounts
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", "date", err)
		return
	}
	tx, err := h.Book.RecordDiscount(r.Context(), ledger.DiscountInput{
		Farmer:      req.Farmer.toKey(),
		Total:       req.TotalAmount,
		Date:        date,
		Remarks:     req.Remarks,
		Allocations: toAllocations(req.Allocations),
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// PreviewDiscount runs the greedy allocator over the farmer's buyer dues
// without recording anything. The form presents the result for editing.
// POST /api/discounts/preview
func (h *Handler) PreviewDiscount(w http.ResponseWriter, r *http.Request) {
	var req PreviewDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	lines, err := h.Dues.FarmerBuyerDues(r.Context(), h.Tenant, req.Farmer.toKey())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	allocs := ledger.AllocateDiscount(req.TotalAmount, lines)
	out := make([]AllocationDTO, 0, len(allocs))
	for _, a := range allocs {
		if a.Amount.IsPositive() {
			out = append(out, AllocationDTO{BuyerName: a.BuyerName, Amount: a.Amount})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ReverseTransaction flips a transaction to reversed.
// POST /api/transactions/{id}/reverse
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")
	tx, err := h.Book.Reverse(r.Context(), ref)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// ListTransactions returns the filtered history, newest first.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", "", err)
		return
	}
	txs, err := h.Book.ListTransactions(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSummary returns balances and totals.
// GET /api/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	var filter *ledger.Filter
	if len(r.URL.Query()) > 0 {
		var err error
		filter, err = filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid filter", "", err)
			return
		}
	}
	summary, err := h.Book.Summary(r.Context(), filter)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// CreateSale registers a sale the dues hang off.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", "date", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be positive", "amount", nil)
		return
	}
	sale := ledger.Sale{
		ID:        req.ID,
		TenantID:  h.Tenant,
		BuyerName: req.BuyerName,
		Farmer:    req.Farmer.toKey(),
		Amount:    req.Amount,
		Date:      date,
	}
	if err := h.Sales.PutSale(r.Context(), sale); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// ListSales returns the tenant's sales.
// GET /api/sales
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Sales.ListSales(r.Context(), h.Tenant)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBuyerDue returns one buyer's due position.
// GET /api/buyers/{name}/due
func (h *Handler) GetBuyerDue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	due, err := h.Dues.BuyerPosition(r.Context(), h.Tenant, name)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BuyerDueDTO{
		BuyerName:   due.BuyerName,
		Billed:      due.Billed,
		Settled:     due.Settled,
		Outstanding: due.Outstanding,
		Status:      string(due.Status),
	})
}

// SetOpeningBalances replaces a year's opening pool values.
// PUT /api/opening-balances/{year}
func (h *Handler) SetOpeningBalances(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", "year", err)
		return
	}
	var req OpeningBalancesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	balances := make(map[ledger.Account]decimal.Decimal, len(req))
	for pool, amount := range req {
		acct, err := ledger.ParseAccount(pool)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown account", pool, err)
			return
		}
		balances[acct] = amount
	}
	if err := h.Openings.SetOpening(r.Context(), h.Tenant, year, balances); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetOpeningBalances reads a year's opening pool values.
// GET /api/opening-balances/{year}
func (h *Handler) GetOpeningBalances(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", "year", err)
		return
	}
	balances, err := h.Openings.Opening(r.Context(), h.Tenant, year)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolMap(balances))
}

// =============================================================================
// DRAFT HANDLERS
// =============================================================================

// SaveDraft stores form state under a key for a bounded time.
// PUT /api/drafts/{key}
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	payload, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(payload) {
		writeError(w, http.StatusBadRequest, "Draft payload must be valid JSON", "", err)
		return
	}
	d := h.Drafts.Put(h.Tenant+"/"+key, payload)
	writeJSON(w, http.StatusOK, d)
}

// GetDraft returns the draft if it has not expired.
// GET /api/drafts/{key}
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	d, ok := h.Drafts.Get(h.Tenant + "/" + key)
	if !ok {
		writeError(w, http.StatusNotFound, "Draft not found or expired", "", nil)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDraft discards the draft.
// DELETE /api/drafts/{key}
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.Drafts.Delete(h.Tenant + "/" + key)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func toSaleDTO(s ledger.Sale) SaleDTO {
	return SaleDTO{
		ID:        s.ID,
		BuyerName: s.BuyerName,
		Farmer:    FarmerKeyDTO{Name: s.Farmer.Name, Village: s.Farmer.Village, Contact: s.Farmer.Contact},
		Amount:    s.Amount,
		Date:      s.Date.Format(dateLayout),
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// filterFromQuery builds a ledger filter from the supported query params:
// from, to, year, month, kind, payer_type, buyer, expense_type, q.
func filterFromQuery(r *http.Request) (*ledger.Filter, error) {
	q := r.URL.Query()
	filter := &ledger.Filter{
		Kind:        ledger.Kind(q.Get("kind")),
		PayerType:   q.Get("payer_type"),
		BuyerName:   q.Get("buyer"),
		ExpenseType: q.Get("expense_type"),
		Remarks:     q.Get("q"),
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, err
		}
		filter.To = &t
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		filter.Year = year
	}
	if v := q.Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		if month < 1 || month > 12 {
			return nil, errors.New("month out of range")
		}
		filter.Month = time.Month(month)
	}
	return filter, nil
}

// writeLedgerError maps engine errors onto HTTP status codes.
func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	field := ""
	var fieldErr *ledger.FieldError
	if errors.As(err, &fieldErr) {
		field = fieldErr.Field
	}

	switch {
	case errors.Is(err, ledger.ErrAlreadyReversed), errors.Is(err, ledger.ErrUnreversibleKind):
		writeError(w, http.StatusConflict, err.Error(), field, nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), field, nil)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), field, nil)
	default:
		h.Log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "Internal error", "", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, field string, err error) {
	resp := ErrorResponse{Error: message, Field: field}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
