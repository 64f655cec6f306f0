package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

// --- Product ---

type CreateProductRequest struct {
	Name          string               `json:"name" binding:"required"`
	Description   string               `json:"description"`
	BrandName     string               `json:"brand_name"`
	CategoryName  string               `json:"category_name"`
	SKU           string               `json:"sku"`
	ImageURL      string               `json:"image_url"`
	Price         decimal.Decimal      `json:"price" binding:"required"`
	DiscountPrice decimal.NullDecimal  `json:"discount_price"`
	Stock         int                  `json:"stock" binding:"min=0"`
	IsFeatured    bool                 `json:"is_featured"`
	Status        *model.ProductStatus `json:"status"`
}

type UpdateProductRequest struct {
	Name          *string              `json:"name"`
	Description   *string              `json:"description"`
	BrandName     *string              `json:"brand_name"`
	CategoryName  *string              `json:"category_name"`
	ImageURL      *string              `json:"image_url"`
	Price         *decimal.Decimal     `json:"price"`
	DiscountPrice *decimal.NullDecimal `json:"discount_price"`
	Stock         *int                 `json:"stock" binding:"omitempty,min=0"`
	IsFeatured    *bool                `json:"is_featured"`
	Status        *model.ProductStatus `json:"status"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
	Sort   string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order  string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID             uuid.UUID           `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	BrandName      string              `json:"brand_name"`
	CategoryName   string              `json:"category_name"`
	SKU            string              `json:"sku,omitempty"`
	ImageURL       string              `json:"image_url,omitempty"`
	Price          decimal.Decimal     `json:"price"`
	DiscountPrice  decimal.NullDecimal `json:"discount_price"`
	EffectivePrice decimal.Decimal     `json:"effective_price"`
	Stock          int                 `json:"stock"`
	Status         model.ProductStatus `json:"status"`
	IsFeatured     bool                `json:"is_featured"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type CartResponse struct {
	ID          uuid.UUID          `json:"id"`
	Items       []CartItemResponse `json:"items"`
	ItemCount   int                `json:"item_count"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	ShippingFee decimal.Decimal    `json:"shipping_fee"`
	Total       decimal.Decimal    `json:"total"`
}

type CartItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

type CartCountResponse struct {
	Count int `json:"count"`
}

// --- Order ---

type CreateOrderRequest struct {
	PaymentMethod model.PaymentMethod   `json:"payment_method" binding:"required"`
	Shipping      model.ShippingAddress `json:"shipping"`
	OrderMemo     string                `json:"order_memo"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type ListOrdersRequest struct {
	Page   int               `form:"page,default=0" binding:"min=0"`
	Size   int               `form:"size,default=10" binding:"min=1,max=100"`
	Status model.OrderStatus `form:"status"`
}

type OrderResponse struct {
	ID            uuid.UUID             `json:"id"`
	OrderNumber   string                `json:"order_number"`
	UserID        uuid.UUID             `json:"user_id"`
	Status        model.OrderStatus     `json:"status"`
	PaymentStatus model.PaymentStatus   `json:"payment_status"`
	PaymentMethod model.PaymentMethod   `json:"payment_method"`
	Shipping      model.ShippingAddress `json:"shipping"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	ShippingFee   decimal.Decimal       `json:"shipping_fee"`
	Discount      decimal.Decimal       `json:"discount"`
	Total         decimal.Decimal       `json:"total"`
	OrderMemo     string                `json:"order_memo,omitempty"`
	ItemCount     int                   `json:"item_count"`
	Items         []OrderItemResponse   `json:"items"`
	OrderedAt     time.Time             `json:"ordered_at"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	ShippedAt     *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time            `json:"cancelled_at,omitempty"`
	CanCancel     bool                  `json:"can_cancel"`
	CanRefund     bool                  `json:"can_refund"`
}

type OrderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	BrandName    string          `json:"brand_name"`
	CategoryName string          `json:"category_name"`
	SKU          string          `json:"sku,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

type OrderCountResponse struct {
	Count int `json:"count"`
}

// --- Fulfillment (admin) ---

type PaymentResultRequest struct {
	Status        model.PaymentStatus `json:"status" binding:"required"`
	PaymentKey    string              `json:"payment_key"`
	TransactionID string              `json:"transaction_id"`
	Provider      model.PGProvider    `json:"provider"`
	CardCompany   string              `json:"card_company"`
	CardNumber    string              `json:"card_number_masked"`
	CardType      model.CardType      `json:"card_type"`
	FailureReason string              `json:"failure_reason"`
	// Amount, when present, must match the charged amount.
	Amount decimal.NullDecimal `json:"amount"`

	VirtualAccountBank   string     `json:"virtual_account_bank"`
	VirtualAccountNumber string     `json:"virtual_account_number"`
	VirtualAccountHolder string     `json:"virtual_account_holder"`
	VirtualAccountDue    *time.Time `json:"virtual_account_due"`
}

type ShipOrderRequest struct {
	Carrier           string     `json:"carrier" binding:"required"`
	TrackingNumber    string     `json:"tracking_number" binding:"required"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

type DeliveryStatusRequest struct {
	Status model.DeliveryStatus `json:"status" binding:"required"`
}

type AdminCancelRequest struct {
	Reason string `json:"reason"`
}

type PaymentResponse struct {
	OrderID          uuid.UUID           `json:"order_id"`
	PaymentKey       string              `json:"payment_key,omitempty"`
	TransactionID    string              `json:"transaction_id,omitempty"`
	Provider         model.PGProvider    `json:"provider,omitempty"`
	Method           model.PaymentMethod `json:"method"`
	Status           model.PaymentStatus `json:"status"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	CardCompany      string              `json:"card_company,omitempty"`
	CardNumberMasked string              `json:"card_number_masked,omitempty"`
	VirtualAccount   *VirtualAccountInfo `json:"virtual_account,omitempty"`
	ApprovedAt       *time.Time          `json:"approved_at,omitempty"`
	FailedAt         *time.Time          `json:"failed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	CancelReason     string              `json:"cancel_reason,omitempty"`
}

type VirtualAccountInfo struct {
	Bank    string     `json:"bank"`
	Number  string     `json:"number"`
	Holder  string     `json:"holder,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

type DeliveryResponse struct {
	OrderID               uuid.UUID            `json:"order_id"`
	Carrier               string               `json:"carrier,omitempty"`
	TrackingNumber        string               `json:"tracking_number,omitempty"`
	Status                model.DeliveryStatus `json:"status"`
	CanTrack              bool                 `json:"can_track"`
	EstimatedDeliveryDate *time.Time           `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time           `json:"actual_delivery_date,omitempty"`
}
