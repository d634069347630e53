package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Record is the per-SKU counter pair plus the reorder threshold. It is the
// only shared mutable state in the system; every mutation happens inside the
// service's per-SKU critical section.
type Record struct {
	SKU          string    `json:"sku"`
	QtyOnHand    int       `json:"qty_on_hand"`
	ReservedQty  int       `json:"reserved_qty"`
	ReorderPoint int       `json:"reorder_point"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r Record) Available() int { return r.QtyOnHand - r.ReservedQty }

const (
	ReservationReserved = "RESERVED"
	ReservationReleased = "RELEASED"
)

// Reservation is the durable record of a hold, keyed by (sku, order_id).
// It is what makes reserve/release idempotent and lets the saga compensate
// after a crash.
type Reservation struct {
	SKU       string    `json:"sku"`
	OrderID   string    `json:"order_id"`
	Qty       int       `json:"qty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductStock is a product joined with its inventory record for list views.
type ProductStock struct {
	Product
	Inventory *Record `json:"inventory"`
}
