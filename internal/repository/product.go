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

type ProductFilter struct {
	Limit  int
	Offset int
	Search string
	Sort   string
	Order  string
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// GetForUpdate reads the product and, inside a transaction, holds its
	// row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, f ProductFilter) ([]model.Product, int, error)
	ListNewArrivals(ctx context.Context, limit int) ([]model.Product, error)
	ListFeatured(ctx context.Context, limit int) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	// Delete removes the product together with any cart lines holding it.
	Delete(ctx context.Context, id uuid.UUID) error
	// DecrementStock subtracts quantity only while the product is ACTIVE with
	// at least quantity units, flipping it to SOLDOUT at zero. It returns nil
	// when the condition did not hold.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error)
	// IncrementStock adds quantity, reviving a SOLDOUT product. It returns nil
	// when the product does not exist.
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, brand_name, category_name, COALESCE(sku, ''), image_url,
	price, discount_price, stock, status, is_featured, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.BrandName, &p.CategoryName, &p.SKU, &p.ImageURL,
		&p.Price, &p.DiscountPrice, &p.Stock, &p.Status, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	if product.Status == "" {
		product.Status = model.ProductStatusActive
	}
	product.SetStock(product.Stock)
	now := time.Now().UTC()
	product.CreatedAt, product.UpdatedAt = now, now

	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO products (id, name, description, brand_name, category_name, sku, image_url,
			price, discount_price, stock, status, is_featured, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14)`,
		product.ID, product.Name, product.Description, product.BrandName, product.CategoryName,
		product.SKU, product.ImageURL, product.Price, product.DiscountPrice, product.Stock,
		product.Status, product.IsFeatured, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *pgProductRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgProductRepo) getOne(ctx context.Context, query string, args ...any) (*model.Product, error) {
	p, err := scanProduct(conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "created_at": true}
	if !allowedSorts[f.Sort] {
		f.Sort = "created_at"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = "desc"
	}

	db := conn(ctx, r.pool)
	var total int
	countQ := `SELECT COUNT(*) FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')`
	if err := db.QueryRow(ctx, countQ, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products
		WHERE ($1 = '' OR name ILIKE '%%' || $1 || '%%' OR description ILIKE '%%' || $1 || '%%')
		ORDER BY %s %s LIMIT $2 OFFSET $3`, productColumns, f.Sort, f.Order)

	products, err := r.query(ctx, query, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *pgProductRepo) ListNewArrivals(ctx context.Context, limit int) ([]model.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE status = 'ACTIVE' ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *pgProductRepo) ListFeatured(ctx context.Context, limit int) ([]model.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE status = 'ACTIVE' AND is_featured ORDER BY updated_at DESC LIMIT $1`, limit)
}

func (r *pgProductRepo) query(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE products SET name=$2, description=$3, brand_name=$4, category_name=$5, sku=NULLIF($6, ''),
			image_url=$7, price=$8, discount_price=$9, stock=$10, status=$11, is_featured=$12, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		product.ID, product.Name, product.Description, product.BrandName, product.CategoryName, product.SKU,
		product.ImageURL, product.Price, product.DiscountPrice, product.Stock, product.Status, product.IsFeatured,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error) {
	p, err := scanProduct(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE products SET stock = stock - $2,
			status = CASE WHEN stock - $2 <= 0 THEN 'SOLDOUT' ELSE status END,
			updated_at = NOW()
		 WHERE id = $1 AND status = 'ACTIVE' AND stock >= $2
		 RETURNING `+productColumns,
		id, quantity,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error) {
	p, err := scanProduct(conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE products SET stock = stock + $2,
			status = CASE WHEN status = 'SOLDOUT' AND stock + $2 > 0 THEN 'ACTIVE' ELSE status END,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, quantity,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("increment stock: %w", err)
	}
	return p, nil
}
