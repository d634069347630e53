package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem snapshots qty and unit price at creation time; it never changes
// after the order leaves draft.
type OrderItem struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	SKU     string          `json:"sku"`
	Qty     int             `json:"qty"`
	Price   decimal.Decimal `json:"price"`
}

type ItemInput struct {
	SKU   string          `json:"sku"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// Total is the price snapshot sum; it is fixed at creation and copied
// verbatim onto the invoice later.
func Total(items []ItemInput) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	return total
}
