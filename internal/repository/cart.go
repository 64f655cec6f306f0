package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type CartRepository interface {
	// GetByUserID returns the user's cart with its items, or nil if the user
	// has never had one.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error)
	// AddItem inserts a line, or adds to the quantity of the existing line
	// for the same product.
	AddItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
	// CountItems sums line quantities across the user's cart.
	CountItems(ctx context.Context, userID uuid.UUID) (int, error)
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	db := conn(ctx, r.pool)
	cart := &model.Cart{}
	err := db.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := db.Query(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at, updated_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (r *pgCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}

func (r *pgCartRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	var item model.CartItem
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, cart_id, product_id, quantity, unit_price, created_at, updated_at FROM cart_items WHERE id = $1`, itemID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return &item, nil
}

func (r *pgCartRepo) AddItem(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			  ON CONFLICT (cart_id, product_id) DO UPDATE
			  SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			  RETURNING id, quantity, unit_price, created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query, item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPrice).
		Scan(&item.ID, &item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return r.touch(ctx, item.CartID)
}

func (r *pgCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	var cartID uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1 RETURNING cart_id`,
		itemID, quantity,
	).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update cart item: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	ct, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return r.touch(ctx, cartID)
}

func (r *pgCartRepo) CountItems(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(ci.quantity), 0) FROM cart_items ci
		 JOIN carts c ON c.id = ci.cart_id WHERE c.user_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return n, nil
}

func (r *pgCartRepo) touch(ctx context.Context, cartID uuid.UUID) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
