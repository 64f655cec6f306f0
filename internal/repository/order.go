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

type OrderRepository interface {
	// Create stores the order and its lines. Lines are immutable afterwards.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByNumber(ctx context.Context, number string) (*model.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	// ListByUser pages through the user's orders, newest first. An empty
	// status lists every order.
	ListByUser(ctx context.Context, userID uuid.UUID, status model.OrderStatus, limit, offset int) ([]model.Order, int, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	// Update persists status, payment status, memos and lifecycle timestamps.
	Update(ctx context.Context, order *model.Order) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, order_number, user_id, order_status, payment_status, payment_method,
	shipping_recipient, shipping_phone, shipping_zipcode, shipping_address, shipping_detail_address,
	subtotal_amount, shipping_fee, discount_amount, total_amount, order_memo, admin_memo,
	ordered_at, paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Shipping.Recipient, &o.Shipping.Phone, &o.Shipping.Zipcode, &o.Shipping.Address, &o.Shipping.DetailAddress,
		&o.Subtotal, &o.ShippingFee, &o.Discount, &o.Total, &o.OrderMemo, &o.AdminMemo,
		&o.OrderedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	db := conn(ctx, r.pool)
	order.ID = uuid.New()
	now := time.Now().UTC()
	if order.OrderedAt.IsZero() {
		order.OrderedAt = now
	}
	order.CreatedAt, order.UpdatedAt = now, now

	_, err := db.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Shipping.Recipient, order.Shipping.Phone, order.Shipping.Zipcode, order.Shipping.Address, order.Shipping.DetailAddress,
		order.Subtotal, order.ShippingFee, order.Discount, order.Total, order.OrderMemo, order.AdminMemo,
		order.OrderedAt, order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.CreatedAt = now
		_, err = db.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, product_name, brand_name, category_name,
				product_sku, image_url, quantity, unit_price, total_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			item.ID, item.OrderID, item.ProductID, item.ProductName, item.BrandName, item.CategoryName,
			item.SKU, item.ImageURL, item.Quantity, item.UnitPrice, item.TotalPrice, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepo) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *pgOrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgOrderRepo) getOne(ctx context.Context, query string, arg any) (*model.Order, error) {
	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgOrderRepo) items(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, order_id, product_id, product_name, brand_name, category_name, product_sku, image_url,
			quantity, unit_price, total_price, created_at
		 FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.BrandName,
			&item.CategoryName, &item.SKU, &item.ImageURL, &item.Quantity, &item.UnitPrice, &item.TotalPrice,
			&item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgOrderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order number: %w", err)
	}
	return exists, nil
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, status model.OrderStatus, limit, offset int) ([]model.Order, int, error) {
	db := conn(ctx, r.pool)
	var total int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND ($2 = '' OR order_status = $2)`,
		userID, string(status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND ($2 = '' OR order_status = $2)
		 ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`,
		userID, string(status), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	for i := range orders {
		if orders[i].Items, err = r.items(ctx, orders[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *pgOrderRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *pgOrderRepo) Update(ctx context.Context, order *model.Order) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE orders SET order_status=$2, payment_status=$3, order_memo=$4, admin_memo=$5,
			paid_at=$6, shipped_at=$7, delivered_at=$8, cancelled_at=$9, updated_at=$10
		 WHERE id=$1`,
		order.ID, order.Status, order.PaymentStatus, order.OrderMemo, order.AdminMemo,
		order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
