package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceIssued    InvoiceStatus = "issued"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

type Invoice struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    InvoiceStatus   `json:"status"`
	IssuedAt  time.Time       `json:"issued_at"`
	DueDate   string          `json:"due_date"` // YYYY-MM-DD
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	AccountReceivable = "accounts_receivable"
	AccountRevenue    = "revenue"
	AccountCash       = "cash"

	RefInvoice    = "invoice"
	RefPayment    = "payment"
	RefAdjustment = "adjustment"
)

// LedgerEntry is one leg of a double-entry booking; exactly one of debit and
// credit is positive.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Account     string          `json:"account"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	RefType     string          `json:"ref_type"`
	RefID       string          `json:"ref_id"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
