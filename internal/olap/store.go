package olap

import (
	"context"
	"time"
)

// Store is the projection state. Fact writes must be idempotent per entity
// id; Processed/MarkProcessed guard against double-applying an event across
// redeliveries.
type Store interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error

	UpsertOrderFact(ctx context.Context, f OrderFact) error
	SetOrderStatus(ctx context.Context, orderID, status string) error
	UpsertInvoiceFact(ctx context.Context, f InvoiceFact) error
	SetInvoicePaid(ctx context.Context, invoiceID string, paidAt time.Time) error
	UpsertStockSnapshot(ctx context.Context, s StockSnapshot) error

	RefreshAggregates(ctx context.Context) error

	SalesHourly(ctx context.Context, hours int) ([]SalesHour, error)
	LowStock(ctx context.Context) ([]StockSnapshot, error)
	OverdueAR(ctx context.Context) ([]OverdueAR, error)
	DailyOrders(ctx context.Context, days int) ([]DailyOrder, error)
}
