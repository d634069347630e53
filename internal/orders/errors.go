package orders

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("orders: order not found")

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}
