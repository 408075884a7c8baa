package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/metrics"
)

// Remover deletes objects from the object store.
type Remover interface {
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// RetryConfig bounds the delete retries of one message.
type RetryConfig struct {
	InitialInterval time.Duration // default 500ms
	MaxInterval     time.Duration // default 30s
	MaxRetries      uint64        // default 8
}

func (c *RetryConfig) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 8
	}
}

// OrphanConsumer listens to the image.orphaned queue and retries the
// delete of each reported object until it succeeds or retries run out.
type OrphanConsumer struct {
	url     string
	objects Remover
	retry   RetryConfig
	log     *logger.Logger
}

func NewOrphanConsumer(url string, objects Remover, retry RetryConfig, log *logger.Logger) *OrphanConsumer {
	retry.applyDefaults()
	return &OrphanConsumer{url: url, objects: objects, retry: retry, log: log.Named("orphan-consumer")}
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled.  Broker failures trigger a reconnect with
// exponential back-off; Run only returns ctx.Err().
func (c *OrphanConsumer) Run(ctx context.Context) error {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = time.Second
	reconnect.MaxInterval = 30 * time.Second
	reconnect.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			wait := reconnect.NextBackOff()
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		reconnect.Reset()

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *OrphanConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(OrphanQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrphanQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.log.Error("orphan cleanup failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one ImageOrphanedEvent and deletes its object, retrying
// with exponential back-off.  An object that is already gone is
// acknowledged without a delete.
func (c *OrphanConsumer) Handle(ctx context.Context, body []byte) error {
	var ev ImageOrphanedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Key == "" {
		return errors.New("event without key")
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retry.InitialInterval
	eb.MaxInterval = c.retry.MaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.retry.MaxRetries), ctx)

	attempt := 0
	gone := false
	err := backoff.Retry(func() error {
		attempt++
		ok, err := c.objects.Exists(ctx, ev.Key)
		if err != nil {
			return err
		}
		if !ok {
			gone = true
			return nil
		}
		return c.objects.Remove(ctx, ev.Key)
	}, policy)
	if err != nil {
		return fmt.Errorf("remove %s after %d attempts: %w", ev.Key, attempt, err)
	}
	if gone {
		c.log.Info("orphaned object already gone", zap.String("key", ev.Key), zap.Uint64("product_id", ev.ProductID))
		return nil
	}
	metrics.OrphansReclaimed.Inc()
	c.log.Info("orphaned object removed",
		zap.String("key", ev.Key),
		zap.Uint64("product_id", ev.ProductID),
		zap.String("reason", ev.Reason),
		zap.Int("attempts", attempt),
	)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
