package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/queue"
)

// OrphanReporter receives objects left behind by a failed best-effort
// delete.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, ev queue.ImageOrphanedEvent) error
}

// RabbitPublisher publishes ImageOrphanedEvent messages to RabbitMQ.  Each
// publish dials its own connection; orphan reports are rare.  Errors are
// logged and returned so the caller can ignore them without interrupting
// the request.
type RabbitPublisher struct {
	url string
	log *logger.Logger
}

func NewRabbitPublisher(url string, log *logger.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, log: log.Named("orphan-publisher")}
}

func (p *RabbitPublisher) ReportOrphan(ctx context.Context, ev queue.ImageOrphanedEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout(ctx)),
	})
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.OrphanQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.OrphanQueue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

// dialTimeout bounds the broker dial by ctx's deadline.
func dialTimeout(ctx context.Context) time.Duration {
	const limit = 30 * time.Second
	dl, ok := ctx.Deadline()
	if !ok {
		return limit
	}
	if d := time.Until(dl); d < limit {
		if d <= 0 {
			return time.Millisecond
		}
		return d
	}
	return limit
}

type nopReporter struct{}

func (nopReporter) ReportOrphan(context.Context, queue.ImageOrphanedEvent) error { return nil }
