/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the ledger's
  domain types from the external contract. Amounts travel as JSON strings
  (decimal.Decimal marshals quoted), dates as YYYY-MM-DD.

NAMING CONVENTION:
  - Create*Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Structural validation (parsable dates, known accounts) happens in the
  handlers; business validation lives in the ledger and is surfaced through
  the error mapping in handlers.go.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coldworks/cashbook-engine/ledger"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUESTS
// =============================================================================

type CreateReceiptRequest struct {
	PayerType  string          `json:"payer_type"`
	BuyerName  string          `json:"buyer_name,omitempty"`
	Account    string          `json:"account"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt string          `json:"received_at"`
	Notes      string          `json:"notes,omitempty"`
}

type CreateExpenseRequest struct {
	ExpenseType  string          `json:"expense_type"`
	ReceiverName string          `json:"receiver_name,omitempty"`
	Account      string          `json:"account"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       string          `json:"paid_at"`
	Remarks      string          `json:"remarks,omitempty"`
}

type CreateTransferRequest struct {
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	TransferredAt string          `json:"transferred_at"`
	Remarks       string          `json:"remarks,omitempty"`
}

type CreateBuyerTransferRequest struct {
	SaleID    string          `json:"sale_id"`
	FromBuyer string          `json:"from_buyer"`
	ToBuyer   string          `json:"to_buyer"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
	Remarks   string          `json:"remarks,omitempty"`
}

type FarmerKeyDTO struct {
	Name    string `json:"name"`
	Village string `json:"village"`
	Contact string `json:"contact"`
}

type AllocationDTO struct {
	BuyerName string          `json:"buyer_name"`
	Amount    decimal.Decimal `json:"amount"`
}

type CreateDiscountRequest struct {
	Farmer      FarmerKeyDTO    `json:"farmer"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        string          `json:"date"`
	Remarks     string          `json:"remarks,omitempty"`
	Allocations []AllocationDTO `json:"allocations"`
}

// PreviewDiscountRequest asks for a suggested allocation of a discount
// across a farmer's buyer dues, without recording anything.
type PreviewDiscountRequest struct {
	Farmer      FarmerKeyDTO    `json:"farmer"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type CreateSaleRequest struct {
	ID        string          `json:"id"`
	BuyerName string          `json:"buyer_name"`
	Farmer    FarmerKeyDTO    `json:"farmer"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
}

// OpeningBalancesRequest sets one year's seed values, keyed by pool.
type OpeningBalancesRequest map[string]decimal.Decimal

// =============================================================================
// RESPONSES
// =============================================================================

// TransactionDTO flattens the transaction sum type for JSON. Kind-specific
// fields are omitted when empty.
type TransactionDTO struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Remarks       string          `json:"remarks,omitempty"`
	IsReversed    bool            `json:"is_reversed"`
	ReversedAt    string          `json:"reversed_at,omitempty"`
	CreatedAt     string          `json:"created_at"`

	PayerType    string `json:"payer_type,omitempty"`
	BuyerName    string `json:"buyer_name,omitempty"`
	Account      string `json:"account,omitempty"`
	ExpenseType  string `json:"expense_type,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
	FromAccount  string `json:"from_account,omitempty"`
	ToAccount    string `json:"to_account,omitempty"`
	SaleID       string `json:"sale_id,omitempty"`
	FromBuyer    string `json:"from_buyer,omitempty"`
	ToBuyer      string `json:"to_buyer,omitempty"`

	Farmer      *FarmerKeyDTO   `json:"farmer,omitempty"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

type TotalsDTO struct {
	Count       int                        `json:"count"`
	Inflow      decimal.Decimal            `json:"inflow"`
	Outflow     decimal.Decimal            `json:"outflow"`
	TransferNet map[string]decimal.Decimal `json:"transfer_net"`
}

type SummaryDTO struct {
	Year         int                        `json:"year"`
	Opening      map[string]decimal.Decimal `json:"opening"`
	Balances     map[string]decimal.Decimal `json:"balances"`
	TotalInflow  decimal.Decimal            `json:"total_inflow"`
	TotalOutflow decimal.Decimal            `json:"total_outflow"`
	TransferNet  map[string]decimal.Decimal `json:"transfer_net"`
	Filtered     *TotalsDTO                 `json:"filtered,omitempty"`
}

type SaleDTO struct {
	ID        string          `json:"id"`
	BuyerName string          `json:"buyer_name"`
	Farmer    FarmerKeyDTO    `json:"farmer"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date"`
}

type BuyerDueDTO struct {
	BuyerName   string          `json:"buyer_name"`
	Billed      decimal.Decimal `json:"billed"`
	Settled     decimal.Decimal `json:"settled"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	base := tx.Base()
	dto := TransactionDTO{
		ID:            base.ID,
		TransactionID: base.TransactionID,
		Kind:          string(tx.Kind()),
		Amount:        base.Amount,
		Date:          base.Date.Format(dateLayout),
		Remarks:       base.Remarks,
		IsReversed:    base.IsReversed,
		CreatedAt:     base.CreatedAt.Format(time.RFC3339),
	}
	if base.ReversedAt != nil {
		dto.ReversedAt = base.ReversedAt.Format(time.RFC3339)
	}

	switch t := tx.(type) {
	case *ledger.Receipt:
		dto.PayerType = t.PayerType
		dto.BuyerName = t.BuyerName
		dto.Account = string(t.Account)
	case *ledger.Expense:
		dto.ExpenseType = t.ExpenseType
		dto.ReceiverName = t.ReceiverName
		dto.Account = string(t.Account)
	case *ledger.Transfer:
		dto.FromAccount = string(t.FromAccount)
		dto.ToAccount = string(t.ToAccount)
	case *ledger.BuyerTransfer:
		dto.SaleID = t.SaleID
		dto.FromBuyer = t.FromBuyer
		dto.ToBuyer = t.ToBuyer
	case *ledger.Discount:
		dto.Farmer = &FarmerKeyDTO{
			Name:    t.FarmerKey.Name,
			Village: t.FarmerKey.Village,
			Contact: t.FarmerKey.Contact,
		}
		for _, a := range t.Allocations {
			dto.Allocations = append(dto.Allocations, AllocationDTO{BuyerName: a.BuyerName, Amount: a.Amount})
		}
	}
	return dto
}

func toSummaryDTO(s ledger.Summary) SummaryDTO {
	dto := SummaryDTO{
		Year:         s.Year,
		Opening:      poolMap(s.Opening),
		Balances:     poolMap(s.Balances),
		TotalInflow:  s.TotalInflow,
		TotalOutflow: s.TotalOutflow,
		TransferNet:  poolMap(s.TransferNet),
	}
	if s.Filtered != nil {
		dto.Filtered = &TotalsDTO{
			Count:       s.Filtered.Count,
			Inflow:      s.Filtered.Inflow,
			Outflow:     s.Filtered.Outflow,
			TransferNet: poolMap(s.Filtered.TransferNet),
		}
	}
	return dto
}

// poolMap keys every pool, so clients always see all three.
func poolMap(m map[ledger.Account]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, 3)
	for _, pool := range ledger.Accounts() {
		out[string(pool)] = decimal.Zero
	}
	for pool, amount := range m {
		out[string(pool)] = amount
	}
	return out
}

func (d FarmerKeyDTO) toKey() ledger.FarmerKey {
	return ledger.FarmerKey{Name: d.Name, Village: d.Village, Contact: d.Contact}
}

func toAllocations(dtos []AllocationDTO) []ledger.Allocation {
	out := make([]ledger.Allocation, len(dtos))
	for i, a := range dtos {
		out[i] = ledger.Allocation{BuyerName: a.BuyerName, Amount: a.Amount}
	}
	return out
}
