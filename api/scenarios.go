/*
scenarios.go - Demo datasets for exploring the cashbook

PURPOSE:
  Loads small, named datasets so the frontend has something to show
  without manual data entry. Scenarios write through the normal Book
  operations, so everything loaded carries real transaction ids and
  obeys the same invariants as user input.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/ledger"
)

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Current     bool   `json:"current"`
}

type LoadScenarioRequest struct {
	ID string `json:"id"`
}

type scenario struct {
	ID          string
	Name        string
	Description string
	Load        func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		ID:          "season-start",
		Name:        "Season start",
		Description: "Opening balances set, two sales registered, one advance receipt.",
		Load:        loadSeasonStart,
	},
	{
		ID:          "busy-week",
		Name:        "Busy week",
		Description: "Receipts, expenses, a pool transfer and a farmer discount.",
		Load:        loadBusyWeek,
	},
}

// ListScenarios returns the available demo datasets.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = ScenarioDTO{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Current:     s.ID == h.currentScenario,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario seeds the store with a demo dataset. Data is additive; run
// against a fresh database for a clean picture.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	for _, s := range scenarios {
		if s.ID != req.ID {
			continue
		}
		if err := s.Load(r.Context(), h); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", "", err)
			return
		}
		h.currentScenario = s.ID
		h.Log.Info().Str("scenario", s.ID).Msg("scenario loaded")
		writeJSON(w, http.StatusOK, map[string]string{"loaded": s.ID})
		return
	}
	writeError(w, http.StatusNotFound, "Unknown scenario", "id", nil)
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func loadSeasonStart(ctx context.Context, h *Handler) error {
	year := time.Now().Year()
	day := time.Date(year, time.March, 3, 0, 0, 0, 0, time.UTC)

	err := h.Openings.SetOpening(ctx, h.Tenant, year, map[ledger.Account]decimal.Decimal{
		ledger.AccountCash:    decimal.NewFromInt(25000),
		ledger.AccountLimit:   decimal.NewFromInt(100000),
		ledger.AccountCurrent: decimal.NewFromInt(40000),
	})
	if err != nil {
		return err
	}

	farmer := ledger.FarmerKey{Name: "Ram Kumar", Village: "Basantpur", Contact: "9800000001"}
	for i, sale := range []ledger.Sale{
		{ID: "sale-101", BuyerName: "Gupta Traders", Farmer: farmer, Amount: decimal.NewFromInt(18000), Date: day},
		{ID: "sale-102", BuyerName: "Verma & Sons", Farmer: farmer, Amount: decimal.NewFromInt(9500), Date: day.AddDate(0, 0, 1)},
	} {
		sale.TenantID = h.Tenant
		if err := h.Sales.PutSale(ctx, sale); err != nil {
			return fmt.Errorf("seed sale %d: %w", i, err)
		}
	}

	_, err = h.Book.RecordReceipt(ctx, ledger.ReceiptInput{
		PayerType:  "buyer",
		BuyerName:  "Gupta Traders",
		Account:    ledger.AccountCash,
		Amount:     decimal.NewFromInt(5000),
		ReceivedAt: day.AddDate(0, 0, 2),
		Notes:      "advance against sale-101",
	})
	return err
}

func loadBusyWeek(ctx context.Context, h *Handler) error {
	if err := loadSeasonStart(ctx, h); err != nil {
		return err
	}
	year := time.Now().Year()
	day := time.Date(year, time.March, 10, 0, 0, 0, 0, time.UTC)

	if _, err := h.Book.RecordExpense(ctx, ledger.ExpenseInput{
		ExpenseType:  "electricity",
		ReceiverName: "State Power Board",
		Account:      ledger.AccountCurrent,
		Amount:       decimal.NewFromInt(7200),
		PaidAt:       day,
		Remarks:      "february bill",
	}); err != nil {
		return err
	}
	if _, err := h.Book.RecordTransfer(ctx, ledger.TransferInput{
		FromAccount:   ledger.AccountLimit,
		ToAccount:     ledger.AccountCash,
		Amount:        decimal.NewFromInt(10000),
		TransferredAt: day.AddDate(0, 0, 1),
		Remarks:       "cash for the week",
	}); err != nil {
		return err
	}
	_, err := h.Book.RecordDiscount(ctx, ledger.DiscountInput{
		Farmer:  ledger.FarmerKey{Name: "Ram Kumar", Village: "Basantpur", Contact: "9800000001"},
		Total:   decimal.NewFromInt(1500),
		Date:    day.AddDate(0, 0, 2),
		Remarks: "quality adjustment",
		Allocations: []ledger.Allocation{
			{BuyerName: "Gupta Traders", Amount: decimal.NewFromInt(1000)},
			{BuyerName: "Verma & Sons", Amount: decimal.NewFromInt(500)},
		},
	})
	return err
}
