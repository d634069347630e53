package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/pulse-erp/fulfillment/internal/events"
	kafkax "github.com/pulse-erp/fulfillment/internal/kafka"
	"github.com/pulse-erp/fulfillment/internal/redisx"
)

// Consumer turns order facts into invoice actions. Delivery is at least
// once: the Redis key is a fast-path dedup, and the existing-invoice lookup
// inside the service is the real idempotency barrier.
type Consumer struct {
	Service *Service
	Redis   *redis.Client
	Log     *zap.Logger
}

func (c *Consumer) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.Log.Warn("dropping undecodable event", zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "billing", env.EventID)
	if c.Redis != nil {
		if seen, err := redisx.Exists(ctx, c.Redis, dkey); err == nil && seen {
			return nil
		}
	}

	if err := c.handle(ctx, env); err != nil {
		return err
	}
	if c.Redis != nil {
		redisx.MarkDone(ctx, c.Redis, dkey, redisx.TTLDedup)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			c.Log.Warn("dropping malformed order-placed payload", zap.Error(err))
			return nil
		}
		_, err = c.Service.IssueForOrder(ctx, p.OrderID, p.TotalAmount)
		if errors.Is(err, ErrOrderCancelled) {
			c.Log.Info("skipping issuance for cancelled order", zap.String("order_id", p.OrderID))
			return nil
		}
		return err

	case events.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[events.OrderCancelledPayload](env.Payload)
		if err != nil {
			c.Log.Warn("dropping malformed order-cancelled payload", zap.Error(err))
			return nil
		}
		return c.Service.CancelForOrder(ctx, p.OrderID)

	default:
		return nil
	}
}
