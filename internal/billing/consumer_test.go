package billing

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
)

func orderPlacedMessage(orderID string, amount decimal.Decimal) kafkago.Message {
	payload := kafkax.MustMarshal(events.OrderPlacedPayload{
		OrderID:     orderID,
		CustomerID:  "cust-1",
		TotalAmount: amount,
		PlacedAt:    time.Now().UTC(),
	})
	env := events.NewEnvelope(events.EventOrderPlaced, "orders-test", "", orderID, payload)
	return kafkago.Message{Key: events.PartitionKey(orderID), Value: kafkax.MustMarshal(env)}
}

func TestHandleOrderEvent(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("55.00")

	t.Run("order placed issues the invoice", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}

		require.NoError(t, c.HandleOrderEvent(ctx, orderPlacedMessage("o1", amount)))
		inv, err := store.GetInvoiceByOrder(ctx, "o1")
		require.NoError(t, err)
		require.NotNil(t, inv)
		assert.True(t, inv.Amount.Equal(amount))
	})

	t.Run("redelivery converges on one invoice", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}
		m := orderPlacedMessage("o1", amount)

		require.NoError(t, c.HandleOrderEvent(ctx, m))
		require.NoError(t, c.HandleOrderEvent(ctx, m))

		all, _ := store.ListInvoices(ctx, "o1")
		assert.Len(t, all, 1)
		assert.Equal(t, 1, issued.count())
	})

	t.Run("order cancelled voids the invoice", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}
		require.NoError(t, c.HandleOrderEvent(ctx, orderPlacedMessage("o1", amount)))

		payload := kafkax.MustMarshal(events.OrderCancelledPayload{OrderID: "o1", CancelledAt: time.Now().UTC()})
		env := events.NewEnvelope(events.EventOrderCancelled, "orders-test", "", "o1", payload)
		m := kafkago.Message{Key: events.PartitionKey("o1"), Value: kafkax.MustMarshal(env)}
		require.NoError(t, c.HandleOrderEvent(ctx, m))

		inv, _ := store.GetInvoiceByOrder(ctx, "o1")
		require.NotNil(t, inv)
		assert.Equal(t, InvoiceCancelled, inv.Status)
	})

	t.Run("cancel arriving before the placed fact wins", func(t *testing.T) {
		svc, store, issued, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}

		payload := kafkax.MustMarshal(events.OrderCancelledPayload{OrderID: "o1", CancelledAt: time.Now().UTC()})
		env := events.NewEnvelope(events.EventOrderCancelled, "orders-test", "", "o1", payload)
		cancelMsg := kafkago.Message{Key: events.PartitionKey("o1"), Value: kafkax.MustMarshal(env)}

		require.NoError(t, c.HandleOrderEvent(ctx, cancelMsg))
		require.NoError(t, c.HandleOrderEvent(ctx, orderPlacedMessage("o1", amount)))

		inv, _ := store.GetInvoiceByOrder(ctx, "o1")
		assert.Nil(t, inv, "late placed fact must not leave an open invoice")
		assert.Equal(t, 0, issued.count())
	})

	t.Run("garbage is dropped without error", func(t *testing.T) {
		svc, _, _, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}
		assert.NoError(t, c.HandleOrderEvent(ctx, kafkago.Message{Value: []byte("not json")}))
	})

	t.Run("unknown event types are ignored", func(t *testing.T) {
		svc, store, _, _ := newTestBilling(t)
		c := &Consumer{Service: svc, Log: zap.NewNop()}
		env := events.NewEnvelope("SomethingElse", "x", "", "", []byte(`{}`))
		require.NoError(t, c.HandleOrderEvent(ctx, kafkago.Message{Value: kafkax.MustMarshal(env)}))
		all, _ := store.ListInvoices(ctx, "")
		assert.Empty(t, all)
	})
}
