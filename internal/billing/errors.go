package billing

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("billing: invoice not found")

	// ErrDuplicateOrder is returned by stores when a concurrent insert won
	// the one-invoice-per-order race; the service resolves it by reading
	// the existing invoice.
	ErrDuplicateOrder = errors.New("billing: invoice already exists for order")

	// ErrOrderCancelled means a cancellation fact for the order was seen
	// before (or during) issuance; no invoice may exist for it.
	ErrOrderCancelled = errors.New("billing: order was cancelled before issuance")
)

type InvalidStateError struct {
	Current InvoiceStatus
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s invoice in status %s", e.Action, e.Current)
}
