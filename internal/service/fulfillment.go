package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/events"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// FulfillmentService drives an order after checkout: payment results from
// the gateway, preparation, shipping, carrier updates and refunds. Every
// operation locks the order row, so callbacks for the same order apply one
// at a time.
type FulfillmentService struct {
	repos  repository.Repositories
	inv    *cache.Invalidator
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewFulfillmentService(repos repository.Repositories, store cache.Store, pub events.Publisher, log *slog.Logger) *FulfillmentService {
	log = loggerOrDiscard(log)
	return &FulfillmentService{
		repos:  repos,
		inv:    cache.NewInvalidator(store, log),
		events: publisherOrNop(pub),
		log:    log,
		now:    nowUTC,
	}
}

// ApplyPaymentResult records the gateway's verdict on an order's payment.
// PAID advances a PENDING order to PAID; FAILED leaves the order PENDING so
// the customer can cancel it. PENDING carries the deposit account issued for
// a virtual-account payment. Replaying the same result is a no-op.
func (s *FulfillmentService) ApplyPaymentResult(ctx context.Context, orderID uuid.UUID, req dto.PaymentResultRequest) (*dto.PaymentResponse, error) {
	switch req.Status {
	case model.PaymentStatusPaid, model.PaymentStatusFailed, model.PaymentStatusPending:
	default:
		return nil, fmt.Errorf("payment result %q: %w", req.Status, apperr.ErrInvalidInput)
	}

	var (
		payment *model.Payment
		order   *model.Order
		changed bool
	)
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lockOrder(ctx, orderID); err != nil {
			return err
		}
		if payment, err = s.repos.Payments.GetByOrderID(ctx, orderID); err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if payment == nil {
			return apperr.ErrPaymentNotFound
		}
		if req.Amount.Valid && !req.Amount.Decimal.Equal(payment.Amount) {
			return fmt.Errorf("paid %s, expected %s: %w", req.Amount.Decimal, payment.Amount, apperr.ErrInvalidInput)
		}
		if req.Status == model.PaymentStatusPending {
			err := payment.IssueVirtualAccount(model.VirtualAccount{
				Bank:    req.VirtualAccountBank,
				Number:  req.VirtualAccountNumber,
				Holder:  req.VirtualAccountHolder,
				DueDate: req.VirtualAccountDue,
			}, s.now())
			if err != nil {
				return err
			}
			payment.UpdateGatewayInfo(req.PaymentKey, req.TransactionID, req.Provider)
			return s.repos.Payments.Update(ctx, payment)
		}
		if payment.Status == req.Status {
			return nil
		}

		at := s.now()
		if err := payment.UpdateStatus(req.Status, at); err != nil {
			return err
		}
		payment.UpdateGatewayInfo(req.PaymentKey, req.TransactionID, req.Provider)
		if req.CardCompany != "" || req.CardNumber != "" {
			payment.UpdateCardInfo(req.CardCompany, req.CardNumber, req.CardType)
		}
		if req.Status == model.PaymentStatusFailed {
			payment.FailureReason = req.FailureReason
		}
		if err := s.repos.Payments.Update(ctx, payment); err != nil {
			return err
		}

		if err := order.ApplyPaymentStatus(payment.Status, at); err != nil {
			return err
		}
		changed = true
		return s.repos.Orders.Update(ctx, order)
	})
	if err != nil {
		logRejected(s.log, "payment result rejected", err, "order_id", orderID, "status", req.Status)
		return nil, err
	}

	if changed {
		s.inv.Prefix(ctx, cache.OrderListPrefix(order.UserID))
		typ := events.PaymentFailed
		if payment.Status.Successful() {
			typ = events.OrderPaid
		}
		s.log.Info("payment result applied", "order_id", orderID, "status", payment.Status)
		publish(ctx, s.events, s.log, events.New(typ, order.ID, order.UserID, map[string]any{
			"payment_key": payment.PaymentKey,
			"amount":      payment.Amount.String(),
		}))
	}

	resp := toPaymentResponse(payment)
	return &resp, nil
}

// StartPreparation moves a PAID order to PREPARING and opens its delivery.
func (s *FulfillmentService) StartPreparation(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error) {
	return s.advance(ctx, orderID, events.OrderPreparing, func(ctx context.Context, o *model.Order, at time.Time) error {
		if err := o.Transition(model.OrderStatusPreparing, at); err != nil {
			return err
		}
		d, err := s.repos.Deliveries.GetByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("get delivery: %w", err)
		}
		if d != nil {
			return nil
		}
		delivery := model.NewDelivery(o.ID, at)
		return s.repos.Deliveries.Create(ctx, &delivery)
	})
}

// ShipOrder hands the parcel to a carrier and moves the order to SHIPPED.
func (s *FulfillmentService) ShipOrder(ctx context.Context, orderID uuid.UUID, req dto.ShipOrderRequest) (*dto.OrderResponse, error) {
	return s.advance(ctx, orderID, events.OrderShipped, func(ctx context.Context, o *model.Order, at time.Time) error {
		if err := o.Transition(model.OrderStatusShipped, at); err != nil {
			return err
		}
		d, err := s.repos.Deliveries.GetByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("get delivery: %w", err)
		}
		create := d == nil
		if create {
			fresh := model.NewDelivery(o.ID, at)
			d = &fresh
		}
		if err := d.AssignTracking(req.Carrier, req.TrackingNumber, at); err != nil {
			return err
		}
		if req.EstimatedDelivery != nil {
			d.EstimatedDeliveryDate = req.EstimatedDelivery
		}
		if create {
			return s.repos.Deliveries.Create(ctx, d)
		}
		return s.repos.Deliveries.Update(ctx, d)
	})
}

// UpdateDeliveryStatus records a carrier status update. Reaching DELIVERED
// completes the order in the same unit of work.
func (s *FulfillmentService) UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status model.DeliveryStatus) (*dto.DeliveryResponse, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("delivery status %q: %w", status, apperr.ErrInvalidInput)
	}

	var (
		order     *model.Order
		delivery  *model.Delivery
		completed bool
	)
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lockOrder(ctx, orderID); err != nil {
			return err
		}
		if delivery, err = s.repos.Deliveries.GetByOrderID(ctx, orderID); err != nil {
			return fmt.Errorf("get delivery: %w", err)
		}
		if delivery == nil {
			return apperr.ErrDeliveryNotFound
		}

		done, err := delivery.UpdateStatus(status, s.now())
		if err != nil {
			return err
		}
		if err := s.repos.Deliveries.Update(ctx, delivery); err != nil {
			return err
		}
		if done == nil {
			return nil
		}
		completed, err = s.completeDelivery(ctx, order, *done)
		return err
	})
	if err != nil {
		logRejected(s.log, "delivery update rejected", err, "order_id", orderID, "status", status)
		return nil, err
	}

	s.log.Info("delivery status updated", "order_id", orderID, "status", status)
	if completed {
		s.afterDelivered(ctx, order)
	}
	resp := toDeliveryResponse(delivery)
	return &resp, nil
}

// ApplyDeliveryCompleted moves the order to DELIVERED. An order that is
// already DELIVERED is left alone.
func (s *FulfillmentService) ApplyDeliveryCompleted(ctx context.Context, done model.DeliveryCompleted) error {
	var (
		order     *model.Order
		completed bool
	)
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lockOrder(ctx, done.OrderID); err != nil {
			return err
		}
		completed, err = s.completeDelivery(ctx, order, done)
		return err
	})
	if err != nil {
		logRejected(s.log, "delivery completion rejected", err, "order_id", done.OrderID)
		return err
	}
	if completed {
		s.afterDelivered(ctx, order)
	}
	return nil
}

func (s *FulfillmentService) completeDelivery(ctx context.Context, o *model.Order, done model.DeliveryCompleted) (bool, error) {
	if o.Status == model.OrderStatusDelivered {
		return false, nil
	}
	if err := o.Transition(model.OrderStatusDelivered, done.DeliveredAt); err != nil {
		return false, err
	}
	return true, s.repos.Orders.Update(ctx, o)
}

func (s *FulfillmentService) afterDelivered(ctx context.Context, o *model.Order) {
	s.inv.Prefix(ctx, cache.OrderListPrefix(o.UserID))
	s.log.Info("order delivered", "order_id", o.ID)
	publish(ctx, s.events, s.log, events.New(events.OrderDelivered, o.ID, o.UserID, nil))
}

// RefundOrder refunds a paid order. Stock is not returned: the goods may
// already be with the customer.
func (s *FulfillmentService) RefundOrder(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	return s.advance(ctx, orderID, events.OrderRefunded, func(ctx context.Context, o *model.Order, at time.Time) error {
		if err := o.Refund(at); err != nil {
			return err
		}
		payment, err := s.repos.Payments.GetByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if payment == nil || !payment.CanRefund() {
			return nil
		}
		if err := payment.UpdateStatus(model.PaymentStatusRefunded, at); err != nil {
			return err
		}
		payment.CancelReason = reason
		if err := s.repos.Payments.Update(ctx, payment); err != nil {
			return err
		}
		o.PaymentStatus = payment.Status
		return nil
	})
}

// advance runs step on the locked order, persists it and publishes typ
// after commit.
func (s *FulfillmentService) advance(
	ctx context.Context,
	orderID uuid.UUID,
	typ string,
	step func(ctx context.Context, o *model.Order, at time.Time) error,
) (*dto.OrderResponse, error) {
	var order *model.Order
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.lockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := step(ctx, order, s.now()); err != nil {
			return err
		}
		return s.repos.Orders.Update(ctx, order)
	})
	if err != nil {
		logRejected(s.log, "fulfillment step rejected", err, "order_id", orderID, "event", typ)
		return nil, err
	}

	s.inv.Prefix(ctx, cache.OrderListPrefix(order.UserID))
	s.log.Info("order advanced", "order_id", orderID, "status", order.Status)
	publish(ctx, s.events, s.log, events.New(typ, order.ID, order.UserID, map[string]any{
		"status": string(order.Status),
	}))

	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *FulfillmentService) lockOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.repos.Orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, apperr.ErrOrderNotFound
	}
	return o, nil
}
