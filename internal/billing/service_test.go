package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memBilling struct {
	mu         sync.Mutex
	invoices   map[string]Invoice // by id
	byOrder    map[string]string  // order_id -> invoice id
	tombstones map[string]bool
	ledger     []LedgerEntry
}

func newMemBilling() *memBilling {
	return &memBilling{
		invoices:   map[string]Invoice{},
		byOrder:    map[string]string{},
		tombstones: map[string]bool{},
	}
}

func (m *memBilling) CreateInvoice(_ context.Context, inv Invoice, entries []LedgerEntry) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byOrder[inv.OrderID]; dup {
		return Invoice{}, ErrDuplicateOrder
	}
	m.invoices[inv.ID] = inv
	m.byOrder[inv.OrderID] = inv.ID
	m.ledger = append(m.ledger, entries...)
	return inv, nil
}

func (m *memBilling) GetInvoice(_ context.Context, id string) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memBilling) GetInvoiceByOrder(_ context.Context, orderID string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	inv := m.invoices[id]
	return &inv, nil
}

func (m *memBilling) ListInvoices(_ context.Context, orderID string) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Invoice{}
	for _, inv := range m.invoices {
		if orderID == "" || inv.OrderID == orderID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memBilling) MarkPaid(_ context.Context, id string, paidAt time.Time, entries []LedgerEntry) (Invoice, bool, error) {
	return m.flip(id, InvoiceIssued, InvoicePaid, &paidAt, entries)
}

func (m *memBilling) MarkCancelled(_ context.Context, id string, entries []LedgerEntry) (Invoice, bool, error) {
	return m.flip(id, InvoiceIssued, InvoiceCancelled, nil, entries)
}

func (m *memBilling) flip(id string, from, to InvoiceStatus, paidAt *time.Time, entries []LedgerEntry) (Invoice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, false, ErrNotFound
	}
	if inv.Status != from {
		return Invoice{}, false, nil
	}
	inv.Status = to
	inv.PaidAt = paidAt
	m.invoices[id] = inv
	m.ledger = append(m.ledger, entries...)
	return inv, true, nil
}

func (m *memBilling) MarkOrderCancelled(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tombstones[orderID] = true
	return nil
}

func (m *memBilling) OrderCancelled(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tombstones[orderID], nil
}

type captureBus struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (b *captureBus) Publish(_, value []byte, _ ...kafkago.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, value)
}

func (b *captureBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func newTestBilling(t *testing.T) (*Service, *memBilling, *captureBus, *captureBus) {
	t.Helper()
	store := newMemBilling()
	issued := &captureBus{}
	paid := &captureBus{}
	svc := &Service{
		Store:          store,
		ProducerIssued: issued,
		ProducerPaid:   paid,
		DueDays:        30,
		ServiceName:    "billing-test",
		Log:            zap.NewNop(),
		Now: func() time.Time {
			return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		},
	}
	return svc, store, issued, paid
}

func entriesFor(store *memBilling, refType string) []LedgerEntry {
	var out []LedgerEntry
	for _, e := range store.ledger {
		if e.RefType == refType {
			out = append(out, e)
		}
	}
	return out
}

func TestIssueForOrder(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("999.90")

	t.Run("copies the amount verbatim and books AR against revenue", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)

		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)
		assert.Equal(t, InvoiceIssued, inv.Status)
		assert.True(t, inv.Amount.Equal(amount), "amount is never recomputed")
		assert.Equal(t, "2025-03-31", inv.DueDate)
		assert.Equal(t, 1, issued.count())

		entries := entriesFor(store, RefInvoice)
		require.Len(t, entries, 2)
		assert.Equal(t, AccountReceivable, entries[0].Account)
		assert.True(t, entries[0].Debit.Equal(amount))
		assert.Equal(t, AccountRevenue, entries[1].Account)
		assert.True(t, entries[1].Credit.Equal(amount))
	})

	t.Run("placed fact arriving after the cancel issues nothing", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)

		require.NoError(t, svc.CancelForOrder(ctx, "o1"))
		_, err := svc.IssueForOrder(ctx, "o1", amount)
		require.ErrorIs(t, err, ErrOrderCancelled)

		inv, _ := store.GetInvoiceByOrder(ctx, "o1")
		assert.Nil(t, inv)
		assert.Equal(t, 0, issued.count())
	})

	t.Run("cancel landing mid-issuance voids the invoice", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)
		race := &midIssuanceCancel{memBilling: store}
		svc.Store = race

		_, err := svc.IssueForOrder(ctx, "o1", amount)
		require.ErrorIs(t, err, ErrOrderCancelled)

		inv, _ := store.GetInvoiceByOrder(ctx, "o1")
		require.NotNil(t, inv)
		assert.Equal(t, InvoiceCancelled, inv.Status, "self-voided, never left open")
		assert.Equal(t, 0, issued.count())
	})

	t.Run("second delivery returns the existing invoice", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)

		first, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)
		second, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		all, _ := store.ListInvoices(ctx, "o1")
		assert.Len(t, all, 1, "at most one invoice per order")
		assert.Equal(t, 1, issued.count())
	})
}

// midIssuanceCancel tombstones the order the moment the invoice row lands,
// mimicking a cancel processed between the pre-insert check and the insert.
type midIssuanceCancel struct {
	*memBilling
}

func (s *midIssuanceCancel) CreateInvoice(ctx context.Context, inv Invoice, entries []LedgerEntry) (Invoice, error) {
	out, err := s.memBilling.CreateInvoice(ctx, inv, entries)
	if err == nil {
		_ = s.memBilling.MarkOrderCancelled(ctx, inv.OrderID)
	}
	return out, err
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("150.00")

	t.Run("settles an issued invoice", func(t *testing.T) {
		svc, store, _, paid := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		got, err := svc.MarkPaid(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, InvoicePaid, got.Status)
		require.NotNil(t, got.PaidAt)
		assert.Equal(t, 1, paid.count())

		entries := entriesFor(store, RefPayment)
		require.Len(t, entries, 2)
		assert.Equal(t, AccountCash, entries[0].Account)
		assert.True(t, entries[0].Debit.Equal(amount))
		assert.Equal(t, AccountReceivable, entries[1].Account)
		assert.True(t, entries[1].Credit.Equal(amount))
	})

	t.Run("repeated pay is rejected, not double-applied", func(t *testing.T) {
		svc, store, _, paid := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		_, err = svc.MarkPaid(ctx, inv.ID)
		require.NoError(t, err)
		_, err = svc.MarkPaid(ctx, inv.ID)

		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, InvoicePaid, invalid.Current)
		assert.Len(t, entriesFor(store, RefPayment), 2, "no second booking")
		assert.Equal(t, 1, paid.count())
	})

	t.Run("cancelled invoice rejects payment", func(t *testing.T) {
		svc, _, _, _ := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)
		_, err = svc.Cancel(ctx, inv.ID)
		require.NoError(t, err)

		_, err = svc.MarkPaid(ctx, inv.ID)
		var invalid *InvalidStateError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		svc, _, _, _ := newTestBilling(t)
		_, err := svc.MarkPaid(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("80.50")

	t.Run("voids with reversing entries", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		got, err := svc.Cancel(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, InvoiceCancelled, got.Status)

		entries := entriesFor(store, RefAdjustment)
		require.Len(t, entries, 2)
		assert.Equal(t, AccountRevenue, entries[0].Account)
		assert.True(t, entries[0].Debit.Equal(amount))
		assert.Equal(t, AccountReceivable, entries[1].Account)
		assert.True(t, entries[1].Credit.Equal(amount))
	})

	t.Run("cancel twice converges", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, inv.ID)
		require.NoError(t, err)
		got, err := svc.Cancel(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, InvoiceCancelled, got.Status)
		assert.Len(t, entriesFor(store, RefAdjustment), 2, "reversal booked once")
	})
}

func TestCancelForOrder(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("42.00")

	t.Run("voids the issued invoice", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)

		require.NoError(t, svc.CancelForOrder(ctx, "o1"))
		got, _ := store.GetInvoice(ctx, inv.ID)
		assert.Equal(t, InvoiceCancelled, got.Status)
	})

	t.Run("no invoice is a no-op", func(t *testing.T) {
		svc, _, _, _ := newTestBilling(t)
		assert.NoError(t, svc.CancelForOrder(ctx, "never-invoiced"))
	})

	t.Run("paid invoice is left alone", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		inv, err := svc.IssueForOrder(ctx, "o1", amount)
		require.NoError(t, err)
		_, err = svc.MarkPaid(ctx, inv.ID)
		require.NoError(t, err)

		require.NoError(t, svc.CancelForOrder(ctx, "o1"))
		got, _ := store.GetInvoice(ctx, inv.ID)
		assert.Equal(t, InvoicePaid, got.Status)
	})
}
