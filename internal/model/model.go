package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusSoldOut  ProductStatus = "SOLDOUT"
)

type Product struct {
	ID            uuid.UUID
	Name          string
	Description   string
	BrandName     string
	CategoryName  string
	SKU           string
	ImageURL      string
	Price         decimal.Decimal
	DiscountPrice decimal.NullDecimal
	Stock         int
	Status        ProductStatus
	IsFeatured    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Product) InStock() bool { return p.Stock > 0 }

// OnSale reports whether a positive discount price below the list price is set.
func (p *Product) OnSale() bool {
	return p.DiscountPrice.Valid &&
		p.DiscountPrice.Decimal.IsPositive() &&
		p.DiscountPrice.Decimal.LessThan(p.Price)
}

// SetStock replaces the stock count and derives the availability status.
// An INACTIVE product stays INACTIVE.
func (p *Product) SetStock(stock int) {
	p.Stock = stock
	p.Status = StatusForStock(p.Status, stock)
}

// StatusForStock returns the status a product with the given current status
// has once its stock becomes stock.
func StatusForStock(current ProductStatus, stock int) ProductStatus {
	switch {
	case current == ProductStatusInactive:
		return current
	case stock <= 0:
		return ProductStatusSoldOut
	case current == ProductStatusSoldOut:
		return ProductStatusActive
	}
	return current
}

type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Cart) Item(id uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) ItemForProduct(productID uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }

// FulfillmentMessage is a payment-gateway or carrier callback delivered
// through the fulfillment queue.
type FulfillmentMessage struct {
	MessageID      string          `json:"message_id"`
	Type           string          `json:"type"`
	OrderID        uuid.UUID       `json:"order_id"`
	PaymentStatus  PaymentStatus   `json:"payment_status,omitempty"`
	PaymentKey     string          `json:"payment_key,omitempty"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	Provider       PGProvider      `json:"provider,omitempty"`
	CardCompany    string          `json:"card_company,omitempty"`
	CardNumber     string          `json:"card_number_masked,omitempty"`
	CardType       CardType        `json:"card_type,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	DeliveryStatus DeliveryStatus  `json:"delivery_status,omitempty"`
	// Amount is null when the gateway does not report one.
	Amount decimal.NullDecimal `json:"amount"`

	VirtualAccountBank   string     `json:"virtual_account_bank,omitempty"`
	VirtualAccountNumber string     `json:"virtual_account_number,omitempty"`
	VirtualAccountHolder string     `json:"virtual_account_holder,omitempty"`
	VirtualAccountDue    *time.Time `json:"virtual_account_due,omitempty"`
}

const (
	MessagePaymentResult  = "payment.result"
	MessageDeliveryStatus = "delivery.status"
)
