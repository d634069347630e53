package inventory

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
)

// Publisher is the slice of the Kafka producer the service needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service is the reservation engine. Reserve, Release and AdjustStock on the
// same SKU run inside a per-SKU critical section so concurrent callers never
// act on stale availability.
type Service struct {
	Store       Store
	Producer    Publisher
	ServiceName string
	Log         *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, producer Publisher, serviceName string, log *zap.Logger) *Service {
	return &Service{
		Store:       store,
		Producer:    producer,
		ServiceName: serviceName,
		Log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockSKU(sku string) func() {
	s.mu.Lock()
	l, ok := s.locks[sku]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sku] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Reserve places a hold of qty on sku for orderID. It is idempotent: a
// repeated call with an unreleased prior reservation for the same order is a
// no-op regardless of qty. It never partially reserves; on insufficient stock
// the counters are untouched.
func (s *Service) Reserve(ctx context.Context, sku, orderID string, qty int) (Record, error) {
	unlock := s.lockSKU(sku)
	defer unlock()

	rec, err := s.Store.GetRecord(ctx, sku)
	if err != nil {
		return Record{}, err
	}

	prior, err := s.Store.GetReservation(ctx, sku, orderID)
	if err != nil {
		return Record{}, err
	}
	if prior != nil && prior.Status == ReservationReserved {
		return rec, nil
	}

	if rec.Available() < qty {
		return Record{}, &InsufficientStockError{SKU: sku, Requested: qty, Available: rec.Available()}
	}

	rec.ReservedQty += qty
	res := Reservation{SKU: sku, OrderID: orderID, Qty: qty, Status: ReservationReserved}
	rec, err = s.Store.ApplyReservation(ctx, rec, res)
	if err != nil {
		return Record{}, err
	}

	s.Log.Info("stock reserved",
		zap.String("sku", sku), zap.String("order_id", orderID), zap.Int("qty", qty))
	s.publishStockChanged(rec, "")
	return rec, nil
}

// Release returns a previously reserved hold to availability. Releasing an
// unknown or already-released reservation is a no-op.
func (s *Service) Release(ctx context.Context, sku, orderID string) (Record, error) {
	unlock := s.lockSKU(sku)
	defer unlock()

	rec, err := s.Store.GetRecord(ctx, sku)
	if err != nil {
		return Record{}, err
	}

	prior, err := s.Store.GetReservation(ctx, sku, orderID)
	if err != nil {
		return Record{}, err
	}
	if prior == nil || prior.Status != ReservationReserved {
		return rec, nil
	}

	rec.ReservedQty -= prior.Qty
	if rec.ReservedQty < 0 {
		rec.ReservedQty = 0
	}
	prior.Status = ReservationReleased
	rec, err = s.Store.ApplyReservation(ctx, rec, *prior)
	if err != nil {
		return Record{}, err
	}

	s.Log.Info("reservation released",
		zap.String("sku", sku), zap.String("order_id", orderID), zap.Int("qty", prior.Qty))
	s.publishStockChanged(rec, "")
	return rec, nil
}

// AdjustStock moves qty_on_hand by delta. Reserved quantity is never touched;
// an adjustment that would drop on-hand below the reserved amount (or below
// zero) is rejected whole.
func (s *Service) AdjustStock(ctx context.Context, sku string, delta int) (Record, error) {
	unlock := s.lockSKU(sku)
	defer unlock()

	rec, err := s.Store.GetRecord(ctx, sku)
	if err != nil {
		return Record{}, err
	}

	next := rec.QtyOnHand + delta
	if next < rec.ReservedQty {
		return Record{}, &NegativeStockError{
			SKU: sku, QtyOnHand: rec.QtyOnHand, Reserved: rec.ReservedQty, Delta: delta,
		}
	}

	rec.QtyOnHand = next
	rec, err = s.Store.UpdateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}

	s.Log.Info("stock adjusted",
		zap.String("sku", sku), zap.Int("delta", delta), zap.Int("qty_on_hand", rec.QtyOnHand))
	s.publishStockChanged(rec, "")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, sku string) (Record, error) {
	return s.Store.GetRecord(ctx, sku)
}

func (s *Service) List(ctx context.Context) ([]ProductStock, error) {
	return s.Store.ListProducts(ctx)
}

// UpsertProduct creates or updates a catalog entry together with its
// inventory record. The SKU itself is immutable; updates change name, price
// and stock levels only.
func (s *Service) UpsertProduct(ctx context.Context, p Product, rec Record) (Product, Record, error) {
	unlock := s.lockSKU(p.SKU)
	defer unlock()

	if rec.QtyOnHand < rec.ReservedQty {
		return Product{}, Record{}, &NegativeStockError{
			SKU: p.SKU, QtyOnHand: rec.QtyOnHand, Reserved: rec.ReservedQty,
		}
	}

	p, rec, err := s.Store.UpsertProduct(ctx, p, rec)
	if err != nil {
		return Product{}, Record{}, err
	}
	s.publishStockChanged(rec, p.Name)
	return p, rec, nil
}

// publishStockChanged emits the current counters for sku. name is empty on
// pure stock movements; the projector keeps the last non-empty name it saw.
func (s *Service) publishStockChanged(rec Record, name string) {
	if s.Producer == nil {
		return
	}
	payload := kafkax.MustMarshal(events.StockChangedPayload{
		SKU:          rec.SKU,
		ProductName:  name,
		QtyOnHand:    rec.QtyOnHand,
		ReservedQty:  rec.ReservedQty,
		ReorderPoint: rec.ReorderPoint,
	})
	env := events.NewEnvelope(events.EventStockChanged, s.ServiceName, "", rec.SKU, payload)
	s.Producer.Publish(events.PartitionKey(rec.SKU), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventStockChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
