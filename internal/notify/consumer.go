package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewConsumer(url, exchange, queue string, keys []string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("NewConsumer: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("NewConsumer: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("NewConsumer: declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("NewConsumer: declare queue: %w", err)
	}
	for _, rk := range keys {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("NewConsumer: bind %s: %w", rk, err)
		}
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name}, nil
}

func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Sender delivers the booking confirmation for a completed payment.
type Sender interface {
	SendPaymentConfirmation(ctx context.Context, evt PaymentCompleted) error
}

// Acknowledger is the subset of amqp.Delivery the worker needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Worker struct {
	sender Sender
	logger *slog.Logger
}

func NewWorker(sender Sender, logger *slog.Logger) *Worker {
	return &Worker{sender: sender, logger: logger}
}

// Run drains deliveries until the channel closes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("notification worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("delivery channel closed")
				return
			}
			w.Handle(ctx, d.RoutingKey, d.Body, &d)
		}
	}
}

func (w *Worker) Handle(ctx context.Context, routingKey string, body []byte, ack Acknowledger) {
	if routingKey != RoutingKeyPaymentCompleted {
		_ = ack.Ack(false)
		return
	}

	var evt PaymentCompleted
	if err := json.Unmarshal(body, &evt); err != nil {
		w.logger.Error("malformed notification", "routing_key", routingKey, "error", err)
		_ = ack.Nack(false, false)
		return
	}
	if evt.Data.MerchantReference == "" {
		w.logger.Warn("notification missing tx_ref, dropping", "routing_key", routingKey)
		_ = ack.Ack(false)
		return
	}

	if err := w.sender.SendPaymentConfirmation(ctx, evt); err != nil {
		w.logger.Error("send payment confirmation failed",
			"merchant_reference", evt.Data.MerchantReference,
			"error", err,
		)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

// LogSender records confirmations in the log instead of sending mail.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendPaymentConfirmation(_ context.Context, evt PaymentCompleted) error {
	s.Logger.Info("payment confirmation",
		"merchant_reference", evt.Data.MerchantReference,
		"booking_reference", evt.Data.BookingReference,
		"amount", evt.Data.Amount.StringFixed(2),
		"currency", evt.Data.Currency,
	)
	return nil
}
