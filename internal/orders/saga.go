package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/redisx"
)

// Store is the slice of the repo the coordinator drives.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
}

// StockReserver is the inventory service seen over the wire. Both calls are
// idempotent per (sku, order_id) on the inventory side; that is what makes
// retry and compensation safe here.
type StockReserver interface {
	Reserve(ctx context.Context, sku, orderID string, qty int) error
	Release(ctx context.Context, sku, orderID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EmitGuard deduplicates fact emission by key. Mark is called only after the
// fact was handed to the producer, so a crash before the enqueue leaves the
// key unset and a retried place re-emits.
type EmitGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type redisGuard struct{ rdb *redis.Client }

func NewRedisGuard(rdb *redis.Client) EmitGuard { return redisGuard{rdb: rdb} }

func (g redisGuard) Seen(ctx context.Context, key string) (bool, error) {
	return redisx.Exists(ctx, g.rdb, key)
}

func (g redisGuard) Mark(ctx context.Context, key string) error {
	return g.rdb.Set(ctx, key, "1", redisx.TTLEmit).Err()
}

// Coordinator drives the order state machine. The place transition is the one
// multi-step operation: it reserves every line item against inventory and
// compensates by releasing whatever this attempt reserved when any item
// fails. There are no cross-service locks; the durable reservation records on
// the inventory side carry the saga state across retries and crashes.
type Coordinator struct {
	Store             Store
	Inventory         StockReserver
	ProducerPlaced    Publisher
	ProducerCancelled Publisher
	Guard             EmitGuard
	ServiceName       string
	Log               *zap.Logger
}

// Transition applies a client-requested status change.
func (c *Coordinator) Transition(ctx context.Context, orderID string, to Status) (Order, error) {
	switch to {
	case StatusPlaced:
		return c.Place(ctx, orderID)
	case StatusCancelled:
		return c.Cancel(ctx, orderID)
	case StatusShipped, StatusCompleted:
		return c.advance(ctx, orderID, to)
	default:
		o, err := c.Store.GetOrder(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		return Order{}, &InvalidTransitionError{From: o.Status, To: to}
	}
}

// Place reserves all line items, then flips draft to placed and emits the
// order-placed fact exactly once per order id. All-or-nothing: the first
// failed reservation releases every hold this attempt made and leaves the
// order in draft.
func (c *Coordinator) Place(ctx context.Context, orderID string) (Order, error) {
	o, err := c.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status == StatusPlaced {
		// retried place: reservation already holds, treat as success. The
		// emit guard is only set after a successful enqueue, so this also
		// recovers a fact lost to a crash between the flip and the emit.
		c.emitPlaced(ctx, o)
		return o, nil
	}
	if !CanTransition(o.Status, StatusPlaced) {
		return Order{}, &InvalidTransitionError{From: o.Status, To: StatusPlaced}
	}

	var reserved []OrderItem
	for _, it := range o.Items {
		if err := c.Inventory.Reserve(ctx, it.SKU, o.ID, it.Qty); err != nil {
			c.compensate(o.ID, reserved)
			return Order{}, fmt.Errorf("reserve %s: %w", it.SKU, err)
		}
		reserved = append(reserved, it)
	}

	ok, err := c.Store.UpdateStatus(ctx, o.ID, StatusDraft, StatusPlaced)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		// lost the race: either a concurrent place won (reservations are
		// ours either way) or a cancel won and the holds must go back
		cur, err := c.Store.GetOrder(ctx, o.ID)
		if err != nil {
			return Order{}, err
		}
		if cur.Status == StatusPlaced {
			c.emitPlaced(ctx, cur)
			return cur, nil
		}
		c.compensate(o.ID, reserved)
		return Order{}, &InvalidTransitionError{From: cur.Status, To: StatusPlaced}
	}

	o.Status = StatusPlaced
	c.emitPlaced(ctx, o)
	return o, nil
}

// Cancel releases every active reservation for the order and flips it to
// cancelled. The emitted fact lets billing void an already-issued invoice.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) (Order, error) {
	o, err := c.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status == StatusCancelled {
		return o, nil
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return Order{}, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	// release before the status flip; a failure here leaves the order
	// cancellable and the caller retries, never orphaning a hold
	for _, it := range o.Items {
		if err := c.Inventory.Release(ctx, it.SKU, o.ID); err != nil {
			return Order{}, fmt.Errorf("release %s: %w", it.SKU, err)
		}
	}

	ok, err := c.Store.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		cur, err := c.Store.GetOrder(ctx, o.ID)
		if err != nil {
			return Order{}, err
		}
		if cur.Status == StatusCancelled {
			return cur, nil
		}
		// a concurrent ship won the flip; put the holds back so the
		// shipped order keeps its reservation
		for _, it := range o.Items {
			if rerr := c.Inventory.Reserve(ctx, it.SKU, o.ID, it.Qty); rerr != nil {
				c.Log.Error("re-reserve after lost cancel race failed",
					zap.String("order_id", o.ID), zap.String("sku", it.SKU), zap.Error(rerr))
			}
		}
		return Order{}, &InvalidTransitionError{From: cur.Status, To: StatusCancelled}
	}

	o.Status = StatusCancelled
	c.emitCancelled(ctx, o)
	return o, nil
}

// advance handles the pure transitions (ship, complete); no inventory effect,
// the reservation stays with the order and is consumed on completion.
func (c *Coordinator) advance(ctx context.Context, orderID string, to Status) (Order, error) {
	o, err := c.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, &InvalidTransitionError{From: o.Status, To: to}
	}

	ok, err := c.Store.UpdateStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		cur, err := c.Store.GetOrder(ctx, o.ID)
		if err != nil {
			return Order{}, err
		}
		return Order{}, &InvalidTransitionError{From: cur.Status, To: to}
	}

	o.Status = to
	return o, nil
}

// compensate releases the holds a failed place attempt made. Release is
// idempotent and failures only log: the reservation record survives on the
// inventory side, so a later cancel or retried place converges.
func (c *Coordinator) compensate(orderID string, reserved []OrderItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, it := range reserved {
		if err := c.Inventory.Release(ctx, it.SKU, orderID); err != nil {
			c.Log.Error("compensation release failed",
				zap.String("order_id", orderID), zap.String("sku", it.SKU), zap.Error(err))
		}
	}
}

func (c *Coordinator) emitPlaced(ctx context.Context, o Order) {
	key := fmt.Sprintf(redisx.KeyOrderPlacedEmit, o.ID)
	if seen, err := c.Guard.Seen(ctx, key); err != nil {
		c.Log.Warn("emit guard unavailable, emitting anyway", zap.Error(err))
	} else if seen {
		return
	}

	items := make([]events.ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.ItemLine{SKU: it.SKU, Qty: it.Qty, Price: it.Price})
	}
	payload := kafkax.MustMarshal(events.OrderPlacedPayload{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		Items:       items,
		PlacedAt:    time.Now().UTC(),
	})
	env := events.NewEnvelope(events.EventOrderPlaced, c.ServiceName, "", o.ID, payload)
	c.ProducerPlaced.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	// mark only after the enqueue; a duplicate beats a lost fact, consumers
	// dedup by order id
	if err := c.Guard.Mark(ctx, key); err != nil {
		c.Log.Warn("emit guard mark failed", zap.Error(err))
	}
}

func (c *Coordinator) emitCancelled(ctx context.Context, o Order) {
	payload := kafkax.MustMarshal(events.OrderCancelledPayload{
		OrderID:     o.ID,
		CancelledAt: time.Now().UTC(),
	})
	env := events.NewEnvelope(events.EventOrderCancelled, c.ServiceName, "", o.ID, payload)
	c.ProducerCancelled.Publish(events.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
