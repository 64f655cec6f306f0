package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/apperr"
)

type DeliveryStatus string

const (
	DeliveryStatusPreparing      DeliveryStatus = "PREPARING"
	DeliveryStatusPickedUp       DeliveryStatus = "PICKED_UP"
	DeliveryStatusInTransit      DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusOutForDelivery DeliveryStatus = "OUT_FOR_DELIVERY"
	DeliveryStatusDelivered      DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed         DeliveryStatus = "FAILED"
)

// deliveryStages orders the forward pipeline; FAILED sits outside it.
var deliveryStages = map[DeliveryStatus]int{
	DeliveryStatusPreparing:      0,
	DeliveryStatusPickedUp:       1,
	DeliveryStatusInTransit:      2,
	DeliveryStatusOutForDelivery: 3,
	DeliveryStatusDelivered:      4,
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryStages[s]
	return ok || s == DeliveryStatusFailed
}

func (s DeliveryStatus) InProgress() bool {
	return s == DeliveryStatusPickedUp || s == DeliveryStatusInTransit || s == DeliveryStatusOutForDelivery
}

func (s DeliveryStatus) Completed() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

func (s DeliveryStatus) CanTrack() bool {
	return s != DeliveryStatusPreparing && s != DeliveryStatusFailed
}

type Delivery struct {
	ID                    uuid.UUID
	OrderID               uuid.UUID
	Carrier               string
	TrackingNumber        string
	Status                DeliveryStatus
	EstimatedDeliveryDate *time.Time
	ActualDeliveryDate    *time.Time
	Memo                  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func NewDelivery(orderID uuid.UUID, at time.Time) Delivery {
	return Delivery{
		OrderID:   orderID,
		Status:    DeliveryStatusPreparing,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// DeliveryCompleted is raised when a delivery reaches DELIVERED. The owner of
// the order applies it; the delivery never touches the order itself.
type DeliveryCompleted struct {
	OrderID     uuid.UUID
	DeliveredAt time.Time
}

func (d *Delivery) Trackable() bool { return strings.TrimSpace(d.TrackingNumber) != "" }

// AssignTracking records carrier details and marks the parcel picked up.
func (d *Delivery) AssignTracking(carrier, trackingNumber string, at time.Time) error {
	if d.Status != DeliveryStatusPreparing {
		return fmt.Errorf("delivery for order %s is %s: %w", d.OrderID, d.Status, apperr.ErrDeliveryInvalidTransition)
	}
	d.Carrier = carrier
	d.TrackingNumber = trackingNumber
	d.Status = DeliveryStatusPickedUp
	d.UpdatedAt = at
	return nil
}

// UpdateStatus advances the delivery. Moves go forward along the pipeline;
// FAILED is reachable from any in-progress status. Reaching DELIVERED
// returns the completion event for the order.
func (d *Delivery) UpdateStatus(to DeliveryStatus, at time.Time) (*DeliveryCompleted, error) {
	if !d.canMove(to) {
		return nil, fmt.Errorf("delivery for order %s %s -> %s: %w", d.OrderID, d.Status, to, apperr.ErrDeliveryInvalidTransition)
	}
	d.Status = to
	d.UpdatedAt = at
	if to != DeliveryStatusDelivered {
		return nil, nil
	}
	d.ActualDeliveryDate = &at
	return &DeliveryCompleted{OrderID: d.OrderID, DeliveredAt: at}, nil
}

func (d *Delivery) canMove(to DeliveryStatus) bool {
	if d.Status.Completed() {
		return false
	}
	if to == DeliveryStatusFailed {
		return d.Status.InProgress()
	}
	from, ok := deliveryStages[d.Status]
	if !ok {
		return false
	}
	next, ok := deliveryStages[to]
	return ok && next > from
}
