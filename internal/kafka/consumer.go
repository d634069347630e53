package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message was processed and its offset
// may be committed. A failed message is retried in place, so handlers have to
// be idempotent.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	log     *zap.Logger
	workers int
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		// manual commit after handler success
		CommitInterval: 0,
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, log: log, workers: workers}
}

// Start fetches until ctx ends. Messages are routed to a worker by partition,
// so one partition is always handled, and committed, in fetch order; a later
// offset can never be committed past an earlier failure.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		ch := make(chan kafka.Message, 128)
		jobs[i] = ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range ch {
				if !c.process(ctx, m, h) {
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn("offset commit failed", zap.Error(err))
				}
			}
		}()
	}
	closeAll := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		// FetchMessage, not ReadMessage: offsets commit only after the
		// handler succeeded.
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			closeAll()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs[partitionIndex(m, c.workers)] <- m:
		case <-ctx.Done():
			closeAll()
			return nil
		}
	}
}

// process retries the handler with backoff until it succeeds or ctx ends;
// reports whether the message was handled.
func (c *Consumer) process(ctx context.Context, m kafka.Message, h Handler) bool {
	for {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("consumer handler error",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// partitionIndex pins a partition to one worker. Different topics sharing a
// partition number land on the same worker, which over-serializes slightly
// but keeps per-order facts in order.
func partitionIndex(m kafka.Message, workers int) int {
	return m.Partition % workers
}
