package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *model.Delivery) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error)
	Update(ctx context.Context, delivery *model.Delivery) error
}

type pgDeliveryRepo struct{ pool *pgxpool.Pool }

func NewDeliveryRepository(pool *pgxpool.Pool) DeliveryRepository {
	return &pgDeliveryRepo{pool: pool}
}

func (r *pgDeliveryRepo) Create(ctx context.Context, d *model.Delivery) error {
	d.ID = uuid.New()
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO deliveries (id, order_id, courier_company, tracking_number, delivery_status,
			estimated_delivery_date, actual_delivery_date, delivery_memo, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.OrderID, d.Carrier, d.TrackingNumber, d.Status,
		d.EstimatedDeliveryDate, d.ActualDeliveryDate, d.Memo, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

func (r *pgDeliveryRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error) {
	d := &model.Delivery{}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, order_id, courier_company, tracking_number, delivery_status,
			estimated_delivery_date, actual_delivery_date, delivery_memo, created_at, updated_at
		 FROM deliveries WHERE order_id = $1`, orderID,
	).Scan(&d.ID, &d.OrderID, &d.Carrier, &d.TrackingNumber, &d.Status,
		&d.EstimatedDeliveryDate, &d.ActualDeliveryDate, &d.Memo, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (r *pgDeliveryRepo) Update(ctx context.Context, d *model.Delivery) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE deliveries SET courier_company=$2, tracking_number=$3, delivery_status=$4,
			estimated_delivery_date=$5, actual_delivery_date=$6, delivery_memo=$7, updated_at=$8
		 WHERE id=$1`,
		d.ID, d.Carrier, d.TrackingNumber, d.Status,
		d.EstimatedDeliveryDate, d.ActualDeliveryDate, d.Memo, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
