package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartReservationConsumer connects to RabbitMQ, declares the
// reservation.reconciled queue (durable) and appends one audit line per
// event to auditPath.  It reconnects with exponential backoff and only
// returns once ctx is cancelled.  Malformed messages are rejected without
// requeue so the consumer keeps running.
func StartReservationConsumer(ctx context.Context, url, auditPath string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("reservation-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, auditPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("reservation-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, auditPath string, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("reservation-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ReservationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ReservationsQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(d.Body, auditPath); err != nil {
				log.Error("reservation-consumer: handle message failed", zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, auditPath string) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.Kind == "" {
		return errors.New("event without id or kind")
	}
	if err := os.MkdirAll(filepath.Dir(auditPath), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(auditLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// auditLine renders one event as a single human-readable line.
func auditLine(ev ReservationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Reservation %s | event_id=%s | user=%q", ev.OccurredAt, ev.Kind, ev.EventID, ev.Username)
	if ev.Actor != "" {
		fmt.Fprintf(&b, " | actor=%q", ev.Actor)
	}
	fmt.Fprintf(&b, " | added=%s | removed=%s", ids(ev.Added), ids(ev.Removed))
	if len(ev.RemovedItems) > 0 {
		boxes := make([]int64, 0, len(ev.RemovedItems))
		for id := range ev.RemovedItems {
			boxes = append(boxes, id)
		}
		sort.Slice(boxes, func(i, j int) bool { return boxes[i] < boxes[j] })
		parts := make([]string, len(boxes))
		for i, id := range boxes {
			parts[i] = fmt.Sprintf("%d:%s", id, strings.Join(ev.RemovedItems[id], "+"))
		}
		fmt.Fprintf(&b, " | removed_items=[%s]", strings.Join(parts, ","))
	}
	if len(ev.Skipped) > 0 {
		fmt.Fprintf(&b, " | skipped=%s", ids(ev.Skipped))
	}
	if ev.Holdings != nil {
		fmt.Fprintf(&b, " | holdings=%s", ids(ev.Holdings))
	}
	b.WriteByte('\n')
	return b.String()
}

func ids(v []int64) string {
	parts := make([]string, len(v))
	for i, id := range v {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
