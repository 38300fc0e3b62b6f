package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	q "github.com/iliyamo/food-box-reservation/internal/queue"
)

//go:generate mockgen -source=queue_publisher.go -destination=mocks/mock_publisher.go -package=mocks

// EventPublisher delivers reservation events after commit.  Delivery is best
// effort: a failure is logged by the engine and never undoes the commit.
type EventPublisher interface {
	PublishReservation(ctx context.Context, event q.ReservationEvent) error
}

// maxDialTimeout bounds the broker dial when ctx carries no earlier deadline.
const maxDialTimeout = 5 * time.Second

// RabbitPublisher publishes ReservationEvents to the reservation.reconciled
// queue.  It dials per message: reservation saves are rare compared to reads
// and this keeps broker outages from poisoning a long-lived channel.
type RabbitPublisher struct {
	URL string
	Log *zap.Logger
}

// NewRabbitPublisher returns a publisher for url, or nil when url is empty so
// the engine runs without events.
func NewRabbitPublisher(url string, log *zap.Logger) EventPublisher {
	if url == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitPublisher{URL: url, Log: log}
}

// PublishReservation marshals event and publishes it as a persistent message.
// The dial, the AMQP handshake and the publish all end by ctx's deadline.
func (p *RabbitPublisher) PublishReservation(ctx context.Context, event q.ReservationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout(ctx)),
	})
	if err != nil {
		p.Log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable, idempotent declaration
	if _, err := ch.QueueDeclare(
		q.ReservationsQueue, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		p.Log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                  // default exchange
		q.ReservationsQueue, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		pub,
	); err != nil {
		p.Log.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("event_id", event.EventID))
		return err
	}
	return nil
}

// dialTimeout is what is left of ctx, capped at maxDialTimeout.
func dialTimeout(ctx context.Context) time.Duration {
	d := maxDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = max(left, time.Millisecond)
		}
	}
	return d
}
