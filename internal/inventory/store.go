package inventory

import "context"

// Store persists the catalog, counters and reservation records. The service
// serializes all mutations per SKU before calling in, so implementations only
// need to make each call atomic, not to coordinate between calls.
type Store interface {
	UpsertProduct(ctx context.Context, p Product, rec Record) (Product, Record, error)
	ListProducts(ctx context.Context) ([]ProductStock, error)
	GetProduct(ctx context.Context, sku string) (Product, error)

	GetRecord(ctx context.Context, sku string) (Record, error)
	UpdateRecord(ctx context.Context, rec Record) (Record, error)

	// GetReservation returns nil when no reservation exists for the pair.
	GetReservation(ctx context.Context, sku, orderID string) (*Reservation, error)
	// ApplyReservation writes the updated counters and the reservation row
	// in one transaction.
	ApplyReservation(ctx context.Context, rec Record, res Reservation) (Record, error)
}
