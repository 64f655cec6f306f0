package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/apperr"
)

// ErrNegativeTotal marks an order whose amounts would produce a negative
// total. It is a programming defect, not a business rule violation.
var ErrNegativeTotal = errors.New("order total must not be negative")

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusPreparing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

func (s OrderStatus) Refundable() bool {
	return s == OrderStatusPaid || s == OrderStatusPreparing || s == OrderStatusShipped
}

func (s OrderStatus) Completed() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// orderTransitions lists, per target status, the statuses it may be entered from.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:      {OrderStatusPending},
	OrderStatusPreparing: {OrderStatusPaid},
	OrderStatusShipped:   {OrderStatusPaid, OrderStatusPreparing},
	OrderStatusDelivered: {OrderStatusPaid, OrderStatusPreparing, OrderStatusShipped},
	OrderStatusCancelled: {OrderStatusPending, OrderStatusPaid},
	OrderStatusRefunded:  {OrderStatusPaid, OrderStatusPreparing, OrderStatusShipped},
}

type ShippingAddress struct {
	Recipient     string `json:"recipient"`
	Phone         string `json:"phone"`
	Zipcode       string `json:"zipcode"`
	Address       string `json:"address"`
	DetailAddress string `json:"detail_address,omitempty"`
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	UserID        uuid.UUID
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Shipping      ShippingAddress
	Subtotal      decimal.Decimal
	ShippingFee   decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	OrderMemo     string
	AdminMemo     string
	OrderedAt     time.Time
	PaidAt        *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	BrandName    string
	CategoryName string
	SKU          string
	ImageURL     string
	Quantity     int
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	CreatedAt    time.Time
}

// NewOrderItem snapshots the catalog fields of p so the order line no longer
// depends on later product edits.
func NewOrderItem(p *Product, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		BrandName:    p.BrandName,
		CategoryName: p.CategoryName,
		SKU:          p.SKU,
		ImageURL:     p.ImageURL,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		TotalPrice:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func (o *Order) CanCancel() bool { return o.Status.Cancellable() }
func (o *Order) CanRefund() bool { return o.Status.Refundable() }

// SetAmounts stores the monetary components and recomputes the total.
func (o *Order) SetAmounts(subtotal, shippingFee, discount decimal.Decimal) error {
	total := subtotal.Add(shippingFee).Sub(discount)
	if total.IsNegative() {
		return fmt.Errorf("subtotal %s, shipping %s, discount %s: %w", subtotal, shippingFee, discount, ErrNegativeTotal)
	}
	o.Subtotal = subtotal
	o.ShippingFee = shippingFee
	o.Discount = discount
	o.Total = total
	return nil
}

// Transition moves the order to status to, stamping the matching timestamp.
func (o *Order) Transition(to OrderStatus, at time.Time) error {
	if !canEnter(o.Status, to) {
		return fmt.Errorf("order %s %s -> %s: %w", o.OrderNumber, o.Status, to, apperr.ErrOrderInvalidTransition)
	}
	o.Status = to
	o.UpdatedAt = at
	switch to {
	case OrderStatusPaid:
		o.PaidAt = &at
	case OrderStatusShipped:
		o.ShippedAt = &at
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	}
	return nil
}

func canEnter(from, to OrderStatus) bool {
	for _, s := range orderTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func (o *Order) Cancel(at time.Time) error {
	if !o.CanCancel() {
		return fmt.Errorf("order %s is %s: %w", o.OrderNumber, o.Status, apperr.ErrOrderCannotCancel)
	}
	return o.Transition(OrderStatusCancelled, at)
}

func (o *Order) Refund(at time.Time) error {
	if !o.CanRefund() {
		return fmt.Errorf("order %s is %s: %w", o.OrderNumber, o.Status, apperr.ErrOrderCannotRefund)
	}
	return o.Transition(OrderStatusRefunded, at)
}

// ApplyPaymentStatus records the payment status on the order. An approved
// payment advances a PENDING order to PAID.
func (o *Order) ApplyPaymentStatus(status PaymentStatus, at time.Time) error {
	if status == PaymentStatusPaid && o.Status == OrderStatusPending {
		if err := o.Transition(OrderStatusPaid, at); err != nil {
			return err
		}
	}
	o.PaymentStatus = status
	o.UpdatedAt = at
	return nil
}

func (o *Order) TotalItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

const orderNumberPrefix = "ORD"

// NewOrderNumber builds a human-visible order number: the ORD prefix, the
// last 8 digits of the millisecond clock and 8 random uppercase alphanumerics.
func NewOrderNumber(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return orderNumberPrefix + ts + suffix
}
