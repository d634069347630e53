package olap

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fact rows are keyed by entity id, so re-applying an event overwrites
// instead of double-counting. They are the projection; the aggregate tables
// are recomputed from them on a fixed cadence.

type OrderFact struct {
	OrderID     string
	CustomerID  string
	TotalAmount decimal.Decimal
	Status      string
	PlacedAt    time.Time
}

type InvoiceFact struct {
	InvoiceID string
	OrderID   string
	Amount    decimal.Decimal
	Status    string
	IssuedAt  time.Time
	DueDate   string // YYYY-MM-DD
	PaidAt    *time.Time
}

type StockSnapshot struct {
	SKU          string    `json:"sku"`
	ProductName  string    `json:"product_name"`
	QtyOnHand    int       `json:"qty_on_hand"`
	ReservedQty  int       `json:"reserved_qty"`
	AvailableQty int       `json:"available_qty"`
	ReorderPoint int       `json:"reorder_point"`
	LastUpdated  time.Time `json:"last_updated"`
}

type SalesHour struct {
	Hour            time.Time       `json:"hour"`
	TotalOrders     int             `json:"total_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	AvgOrderValue   decimal.Decimal `json:"avg_order_value"`
	UniqueCustomers int             `json:"unique_customers"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OverdueAR struct {
	CustomerID        string          `json:"customer_id"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	Days30            decimal.Decimal `json:"days_30"`
	Days60            decimal.Decimal `json:"days_60"`
	Days90Plus        decimal.Decimal `json:"days_90_plus"`
	OldestInvoiceDate string          `json:"oldest_invoice_date"`
	DaysOverdue       int             `json:"days_overdue"`
}

type DailyOrder struct {
	OrderDate     string          `json:"order_date"`
	TotalOrders   int             `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}
