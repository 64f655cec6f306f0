package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/events"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

type testEnv struct {
	repos       repository.Repositories
	store       *cache.MemoryStore
	pub         *recordingPublisher
	ledger      *InventoryLedger
	carts       *CartService
	orders      *OrderService
	fulfillment *FulfillmentService
	products    *ProductService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, repository.NewMemory())
}

func newTestEnvWith(t *testing.T, repos repository.Repositories) *testEnv {
	t.Helper()
	store := cache.NewMemoryStore()
	pub := &recordingPublisher{}
	ledger := NewInventoryLedger(repos.Products, cache.NewInvalidator(store, loggerOrDiscard(nil)))
	return &testEnv{
		repos:       repos,
		store:       store,
		pub:         pub,
		ledger:      ledger,
		carts:       NewCartService(repos, store, nil),
		orders:      NewOrderService(repos, ledger, store, pub, nil, nil),
		fulfillment: NewFulfillmentService(repos, store, pub, nil),
		products:    NewProductService(repos, store, nil),
	}
}

func (e *testEnv) seedUser(t *testing.T) uuid.UUID {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@example.com", Password: "x", Role: model.RoleCustomer}
	require.NoError(t, e.repos.Users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) seedProduct(t *testing.T, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:         "product " + uuid.NewString()[:8],
		BrandName:    "acme",
		CategoryName: "tools",
		Price:        decimal.NewFromInt(price),
		Stock:        stock,
	}
	require.NoError(t, e.repos.Products.Create(context.Background(), p))
	return p
}

func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := e.repos.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func (e *testEnv) addToCart(t *testing.T, userID uuid.UUID, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, e.carts.AddItem(context.Background(), userID, dto.AddCartItemRequest{ProductID: productID, Quantity: qty}))
}

func checkoutRequest() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		PaymentMethod: model.PaymentMethodCard,
		Shipping: model.ShippingAddress{
			Recipient: "Kim", Phone: "010-0000-0000", Zipcode: "04524", Address: "Seoul",
		},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
