package inventory

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("inventory: sku not found")

type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

type NegativeStockError struct {
	SKU       string
	QtyOnHand int
	Reserved  int
	Delta     int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock adjustment of %+d on %s would drop on-hand %d below reserved %d",
		e.Delta, e.SKU, e.QtyOnHand, e.Reserved)
}
