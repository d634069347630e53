package olap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/redisx"
)

// Projector folds the event stream into the fact tables. Delivery is at
// least once: the Redis key is a fast-path dedup, the processed-events table
// is durable, and every fact write is an idempotent upsert keyed by the
// entity id anyway.
type Projector struct {
	Store Store
	Redis *redis.Client
	Log   *zap.Logger
}

func (p *Projector) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.Log.Warn("dropping undecodable event", zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "olap", env.EventID)
	if p.Redis != nil {
		if seen, err := redisx.Exists(ctx, p.Redis, dkey); err == nil && seen {
			return nil
		}
	}
	done, err := p.Store.Processed(ctx, env.EventID)
	if err != nil {
		return err
	}
	if done {
		p.markSeen(ctx, dkey)
		return nil
	}

	if err := p.apply(ctx, env); err != nil {
		return err
	}
	if err := p.Store.MarkProcessed(ctx, env.EventID); err != nil {
		return err
	}
	p.markSeen(ctx, dkey)
	return nil
}

func (p *Projector) markSeen(ctx context.Context, key string) {
	if p.Redis != nil {
		redisx.MarkDone(ctx, p.Redis, key, redisx.TTLDedup)
	}
}

func (p *Projector) apply(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.EventOrderPlaced:
		pl, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			p.Log.Warn("dropping malformed order-placed payload", zap.Error(err))
			return nil
		}
		return p.Store.UpsertOrderFact(ctx, OrderFact{
			OrderID:     pl.OrderID,
			CustomerID:  pl.CustomerID,
			TotalAmount: pl.TotalAmount,
			Status:      "placed",
			PlacedAt:    pl.PlacedAt,
		})

	case events.EventOrderCancelled:
		pl, err := kafkax.UnwrapPayload[events.OrderCancelledPayload](env.Payload)
		if err != nil {
			p.Log.Warn("dropping malformed order-cancelled payload", zap.Error(err))
			return nil
		}
		return p.Store.SetOrderStatus(ctx, pl.OrderID, "cancelled")

	case events.EventInvoiceIssued:
		pl, err := kafkax.UnwrapPayload[events.InvoiceIssuedPayload](env.Payload)
		if err != nil {
			p.Log.Warn("dropping malformed invoice-issued payload", zap.Error(err))
			return nil
		}
		return p.Store.UpsertInvoiceFact(ctx, InvoiceFact{
			InvoiceID: pl.InvoiceID,
			OrderID:   pl.OrderID,
			Amount:    pl.Amount,
			Status:    "issued",
			IssuedAt:  pl.IssuedAt,
			DueDate:   pl.DueDate,
		})

	case events.EventPaymentSettled:
		pl, err := kafkax.UnwrapPayload[events.PaymentSettledPayload](env.Payload)
		if err != nil {
			p.Log.Warn("dropping malformed payment-settled payload", zap.Error(err))
			return nil
		}
		return p.Store.SetInvoicePaid(ctx, pl.InvoiceID, pl.PaidAt)

	case events.EventStockChanged:
		pl, err := kafkax.UnwrapPayload[events.StockChangedPayload](env.Payload)
		if err != nil {
			p.Log.Warn("dropping malformed stock-changed payload", zap.Error(err))
			return nil
		}
		return p.Store.UpsertStockSnapshot(ctx, StockSnapshot{
			SKU:          pl.SKU,
			ProductName:  pl.ProductName,
			QtyOnHand:    pl.QtyOnHand,
			ReservedQty:  pl.ReservedQty,
			ReorderPoint: pl.ReorderPoint,
		})

	default:
		return nil
	}
}

// RunRefresh recomputes the rollup tables on a fixed cadence until ctx ends.
func (p *Projector) RunRefresh(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.Store.RefreshAggregates(ctx); err != nil && ctx.Err() == nil {
				p.Log.Error("aggregate refresh failed", zap.Error(err))
			}
		}
	}
}
