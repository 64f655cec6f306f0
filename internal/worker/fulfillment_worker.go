package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
)

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"
)

var errUnknownMessage = errors.New("unknown message type")

// Fulfillment applies gateway and carrier callbacks to orders.
type Fulfillment interface {
	ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, req dto.PaymentResultRequest) (*dto.PaymentResponse, error)
	UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status model.DeliveryStatus) (*dto.DeliveryResponse, error)
}

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// FulfillmentWorker consumes payment results and delivery updates.
// Business rejections are acknowledged and dropped; infrastructure failures
// are dead-lettered for inspection.
type FulfillmentWorker struct {
	channel     consumer
	queue       string
	fulfillment Fulfillment
	store       cache.Store
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewFulfillmentWorker(
	ch consumer,
	queue string,
	fulfillment Fulfillment,
	store cache.Store,
	m *metrics.Metrics,
	log *slog.Logger,
) *FulfillmentWorker {
	return &FulfillmentWorker{
		channel:     ch,
		queue:       queue,
		fulfillment: fulfillment,
		store:       store,
		metrics:     m,
		log:         log.With("component", "fulfillment_worker", "queue", queue),
	}
}

// SetupRabbitMQ declares the queue with its dead-letter exchange and queue.
func SetupRabbitMQ(ch *amqp.Channel, queue string, prefetch int) error {
	dlx, dlq := queue+".dlx", queue+".dlq"
	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlq, queue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare fulfillment queue: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (w *FulfillmentWorker) Run(ctx context.Context) error {
	msgs, err := w.channel.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	w.log.Info("fulfillment worker started")
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.processMessage(ctx, msg)
		case <-ctx.Done():
			w.log.Info("fulfillment worker stopped")
			return nil
		}
	}
}

func (w *FulfillmentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var m model.FulfillmentMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		w.log.Error("unmarshal fulfillment message", "error", err)
		w.metrics.WorkerMessage("unknown", outcomeInvalid)
		_ = msg.Nack(false, false)
		return
	}

	id := msg.MessageId
	if id == "" {
		id = m.MessageID
	}
	log := w.log.With("message_id", id, "type", m.Type, "order_id", m.OrderID)

	if id != "" {
		_, seen, err := w.store.Get(ctx, cache.ProcessedKey(id))
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if seen {
			log.Info("message already processed, skipping")
			w.metrics.WorkerMessage(m.Type, outcomeDuplicate)
			_ = msg.Ack(false)
			return
		}
	}

	err := w.handle(ctx, m)
	switch {
	case errors.Is(err, errUnknownMessage):
		log.Error("unknown fulfillment message")
		w.metrics.WorkerMessage(m.Type, outcomeInvalid)
		_ = msg.Nack(false, false)
		return
	case err != nil:
		if e, ok := apperr.As(err); ok {
			log.Info("fulfillment message rejected", "code", e.Code)
			w.metrics.WorkerMessage(m.Type, outcomeRejected)
			_ = msg.Ack(false)
			return
		}
		log.Error("process fulfillment message failed", "error", err)
		w.metrics.WorkerMessage(m.Type, outcomeFailed)
		_ = msg.Nack(false, false) // dead-lettered
		return
	}

	if id != "" {
		if err := w.store.Set(ctx, cache.ProcessedKey(id), []byte("1"), cache.ProcessedTTL); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}
	w.metrics.WorkerMessage(m.Type, outcomeProcessed)
	_ = msg.Ack(false)
	log.Info("fulfillment message processed")
}

func (w *FulfillmentWorker) handle(ctx context.Context, m model.FulfillmentMessage) error {
	switch m.Type {
	case model.MessagePaymentResult:
		_, err := w.fulfillment.ApplyPaymentResult(ctx, m.OrderID, dto.PaymentResultRequest{
			Status:        m.PaymentStatus,
			PaymentKey:    m.PaymentKey,
			TransactionID: m.TransactionID,
			Provider:      m.Provider,
			CardCompany:   m.CardCompany,
			CardNumber:    m.CardNumber,
			CardType:      m.CardType,
			FailureReason: m.FailureReason,
			Amount:        m.Amount,

			VirtualAccountBank:   m.VirtualAccountBank,
			VirtualAccountNumber: m.VirtualAccountNumber,
			VirtualAccountHolder: m.VirtualAccountHolder,
			VirtualAccountDue:    m.VirtualAccountDue,
		})
		return err
	case model.MessageDeliveryStatus:
		_, err := w.fulfillment.UpdateDeliveryStatus(ctx, m.OrderID, m.DeliveryStatus)
		return err
	}
	return fmt.Errorf("%q: %w", m.Type, errUnknownMessage)
}
