package billing

import (
	"context"
	"time"
)

// Store persists invoices and their ledger entries. Status flips are
// compare-and-set on the current status: the bool result reports whether the
// row was in the expected state.
type Store interface {
	CreateInvoice(ctx context.Context, inv Invoice, entries []LedgerEntry) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID string) (*Invoice, error)
	ListInvoices(ctx context.Context, orderID string) ([]Invoice, error)

	MarkPaid(ctx context.Context, id string, paidAt time.Time, entries []LedgerEntry) (Invoice, bool, error)
	MarkCancelled(ctx context.Context, id string, entries []LedgerEntry) (Invoice, bool, error)

	// Cancellation tombstones. Order facts travel on separate topics, so a
	// consumer catching up can see the cancel before the placed fact; the
	// tombstone keeps that ordering from issuing an invoice that nothing
	// would ever void.
	MarkOrderCancelled(ctx context.Context, orderID string) error
	OrderCancelled(ctx context.Context, orderID string) (bool, error)
}
