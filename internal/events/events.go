package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventInvoiceIssued  = "InvoiceIssued"
	EventPaymentSettled = "PaymentSettled"
	EventStockChanged   = "StockChanged"
)

// Envelope wraps every fact on the wire. Payload stays raw so consumers
// decode only the event types they handle.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope fills the envelope boilerplate; payload must already be JSON.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload []byte) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

type ItemLine struct {
	SKU   string          `json:"sku"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []ItemLine      `json:"items"`
	PlacedAt    time.Time       `json:"placed_at"`
}

type OrderCancelledPayload struct {
	OrderID     string    `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type InvoiceIssuedPayload struct {
	InvoiceID string          `json:"invoice_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	IssuedAt  time.Time       `json:"issued_at"`
	DueDate   string          `json:"due_date"` // YYYY-MM-DD
}

type PaymentSettledPayload struct {
	InvoiceID string          `json:"invoice_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

type StockChangedPayload struct {
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name,omitempty"`
	QtyOnHand    int    `json:"qty_on_hand"`
	ReservedQty  int    `json:"reserved_qty"`
	ReorderPoint int    `json:"reorder_point"`
}
