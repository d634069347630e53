package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type memStore struct {
	mu           sync.Mutex
	products     map[string]Product
	records      map[string]Record
	reservations map[string]Reservation // sku|order_id
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[string]Product{},
		records:      map[string]Record{},
		reservations: map[string]Reservation{},
	}
}

func resKey(sku, orderID string) string { return sku + "|" + orderID }

func (m *memStore) UpsertProduct(_ context.Context, p Product, rec Record) (Product, Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.SKU] = p
	rec.UpdatedAt = time.Now()
	m.records[p.SKU] = rec
	return p, rec, nil
}

func (m *memStore) ListProducts(_ context.Context) ([]ProductStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ProductStock{}
	for sku, p := range m.products {
		rec := m.records[sku]
		out = append(out, ProductStock{Product: p, Inventory: &rec})
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, sku string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[sku]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetRecord(_ context.Context, sku string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sku]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) UpdateRecord(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.UpdatedAt = time.Now()
	m.records[rec.SKU] = rec
	return rec, nil
}

func (m *memStore) GetReservation(_ context.Context, sku, orderID string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[resKey(sku, orderID)]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (m *memStore) ApplyReservation(_ context.Context, rec Record, res Reservation) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.UpdatedAt = time.Now()
	m.records[rec.SKU] = rec
	m.reservations[resKey(res.SKU, res.OrderID)] = res
	return rec, nil
}

type stockEvents struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (s *stockEvents) Publish(_, value []byte, _ ...kafkago.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, value)
}

func (s *stockEvents) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newTestService(t *testing.T) (*Service, *memStore, *stockEvents) {
	t.Helper()
	store := newMemStore()
	events := &stockEvents{}
	return NewService(store, events, "inventory-test", zap.NewNop()), store, events
}

func seed(store *memStore, sku string, onHand, reserved int) {
	store.records[sku] = Record{SKU: sku, QtyOnHand: onHand, ReservedQty: reserved, ReorderPoint: 5}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("holds stock", func(t *testing.T) {
		svc, store, events := newTestService(t)
		seed(store, "SKU-A", 10, 0)

		rec, err := svc.Reserve(ctx, "SKU-A", "o1", 3)
		require.NoError(t, err)
		assert.Equal(t, 10, rec.QtyOnHand)
		assert.Equal(t, 3, rec.ReservedQty)
		assert.Equal(t, 7, rec.Available())
		assert.Equal(t, 1, events.count())
	})

	t.Run("repeat for same order is a no-op", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 10, 0)

		_, err := svc.Reserve(ctx, "SKU-A", "o1", 3)
		require.NoError(t, err)
		rec, err := svc.Reserve(ctx, "SKU-A", "o1", 9)
		require.NoError(t, err)
		assert.Equal(t, 3, rec.ReservedQty, "qty of the retry is ignored")
	})

	t.Run("insufficient stock leaves counters untouched", func(t *testing.T) {
		svc, store, events := newTestService(t)
		seed(store, "SKU-A", 10, 8)

		_, err := svc.Reserve(ctx, "SKU-A", "o1", 3)
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 3, insufficient.Requested)
		assert.Equal(t, 2, insufficient.Available)

		rec, _ := store.GetRecord(ctx, "SKU-A")
		assert.Equal(t, 8, rec.ReservedQty)
		assert.Equal(t, 0, events.count())
	})

	t.Run("unknown sku", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Reserve(ctx, "NOPE", "o1", 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the hold", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 10, 0)

		_, err := svc.Reserve(ctx, "SKU-A", "o1", 4)
		require.NoError(t, err)
		rec, err := svc.Release(ctx, "SKU-A", "o1")
		require.NoError(t, err)
		assert.Equal(t, 0, rec.ReservedQty)
		assert.Equal(t, 10, rec.Available())
	})

	t.Run("unknown reservation is a no-op", func(t *testing.T) {
		svc, store, events := newTestService(t)
		seed(store, "SKU-A", 10, 2)

		rec, err := svc.Release(ctx, "SKU-A", "never-reserved")
		require.NoError(t, err)
		assert.Equal(t, 2, rec.ReservedQty)
		assert.Equal(t, 0, events.count())
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 10, 0)

		_, err := svc.Reserve(ctx, "SKU-A", "o1", 4)
		require.NoError(t, err)
		_, err = svc.Release(ctx, "SKU-A", "o1")
		require.NoError(t, err)
		rec, err := svc.Release(ctx, "SKU-A", "o1")
		require.NoError(t, err)
		assert.Equal(t, 0, rec.ReservedQty)
	})
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()

	t.Run("moves on-hand", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 10, 3)

		rec, err := svc.AdjustStock(ctx, "SKU-A", -5)
		require.NoError(t, err)
		assert.Equal(t, 5, rec.QtyOnHand)
		assert.Equal(t, 3, rec.ReservedQty, "reserved is never touched")
	})

	t.Run("rejects dropping below reserved", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 10, 3)

		_, err := svc.AdjustStock(ctx, "SKU-A", -8)
		var negative *NegativeStockError
		require.ErrorAs(t, err, &negative)

		rec, _ := store.GetRecord(ctx, "SKU-A")
		assert.Equal(t, 10, rec.QtyOnHand, "rejected whole, not clamped")
	})

	t.Run("rejects going negative", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seed(store, "SKU-A", 2, 0)

		_, err := svc.AdjustStock(ctx, "SKU-A", -3)
		var negative *NegativeStockError
		require.ErrorAs(t, err, &negative)
	})
}

// Ten orders race for the last unit; exactly one wins and the counters end
// consistent.
func TestReserveLastUnitRace(t *testing.T) {
	svc, store, _ := newTestService(t)
	seed(store, "SKU-A", 5, 4)

	var g errgroup.Group
	wins := make(chan string, 10)
	for i := 0; i < 10; i++ {
		orderID := fmt.Sprintf("o-%d", i)
		g.Go(func() error {
			_, err := svc.Reserve(context.Background(), "SKU-A", orderID, 1)
			if err == nil {
				wins <- orderID
				return nil
			}
			var insufficient *InsufficientStockError
			if assert.ErrorAs(t, err, &insufficient) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1, "exactly one reservation for the last unit")

	rec, _ := store.GetRecord(context.Background(), "SKU-A")
	assert.Equal(t, 5, rec.ReservedQty)
	assert.Equal(t, 0, rec.Available())
}

func TestUpsertProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects reserved above on-hand", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, _, err := svc.UpsertProduct(ctx,
			Product{SKU: "SKU-A", Name: "Widget"},
			Record{SKU: "SKU-A", QtyOnHand: 1, ReservedQty: 2})
		var negative *NegativeStockError
		require.ErrorAs(t, err, &negative)
	})

	t.Run("creates and publishes", func(t *testing.T) {
		svc, _, events := newTestService(t)
		p, rec, err := svc.UpsertProduct(ctx,
			Product{SKU: "SKU-A", Name: "Widget"},
			Record{SKU: "SKU-A", QtyOnHand: 20, ReorderPoint: 5})
		require.NoError(t, err)
		assert.Equal(t, "Widget", p.Name)
		assert.Equal(t, 20, rec.QtyOnHand)
		assert.Equal(t, 1, events.count())
	})
}
