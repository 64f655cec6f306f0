package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/apperr"
	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/events"
	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/pricing"
	"github.com/flicky/storefront-api/internal/repository"
)

const (
	defaultOrderPageSize = 10
	orderNumberAttempts  = 5
)

type OrderService struct {
	repos   repository.Repositories
	ledger  *InventoryLedger
	store   cache.Store
	inv     *cache.Invalidator
	events  events.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger

	newOrderNumber func(time.Time) string
	now            func() time.Time
}

func NewOrderService(
	repos repository.Repositories,
	ledger *InventoryLedger,
	store cache.Store,
	pub events.Publisher,
	m *metrics.Metrics,
	log *slog.Logger,
) *OrderService {
	log = loggerOrDiscard(log)
	return &OrderService{
		repos:          repos,
		ledger:         ledger,
		store:          store,
		inv:            cache.NewInvalidator(store, log),
		events:         publisherOrNop(pub),
		metrics:        m,
		log:            log,
		newOrderNumber: model.NewOrderNumber,
		now:            nowUTC,
	}
}

// CreateOrder turns the user's cart into an order. Validation, order and
// payment persistence, stock reservation and cart clearing form one unit of
// work: any failure leaves no trace of the attempt.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	var order *model.Order
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.placeOrder(ctx, userID, req)
		return err
	})
	if err != nil {
		if e, ok := apperr.As(err); ok {
			s.metrics.CheckoutFailed(e.Code)
		}
		logRejected(s.log, "checkout rejected", err, "user_id", userID)
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	s.inv.Prefix(ctx, cache.OrderListPrefix(userID))
	s.inv.Keys(ctx, cache.CartKey(userID), cache.CartCountKey(userID))
	// Reservations already invalidated these inside the transaction; drop
	// them again so nothing cached before commit survives.
	s.inv.Keys(ctx, cache.ProductKeys(productIDs...)...)

	s.metrics.OrderCreated()
	s.log.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber,
		"user_id", userID, "total", order.Total.String())
	publish(ctx, s.events, s.log, events.New(events.OrderCreated, order.ID, userID, map[string]any{
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
		"items":        order.TotalItemCount(),
	}))

	resp := toOrderResponse(order)
	return &resp, nil
}

func validateCheckout(req dto.CreateOrderRequest) error {
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("payment method %q: %w", req.PaymentMethod, apperr.ErrInvalidInput)
	}
	sh := req.Shipping
	for field, v := range map[string]string{
		"recipient": sh.Recipient, "phone": sh.Phone, "zipcode": sh.Zipcode, "address": sh.Address,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("shipping %s is required: %w", field, apperr.ErrInvalidInput)
		}
	}
	return nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID uuid.UUID, req dto.CreateOrderRequest) (*model.Order, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}

	cart, err := s.repos.Carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, apperr.ErrCartEmpty
	}

	products, err := s.lockProducts(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	at := s.now()
	order := &model.Order{
		UserID:        userID,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		Shipping:      req.Shipping,
		OrderMemo:     req.OrderMemo,
		OrderedAt:     at,
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, model.NewOrderItem(products[item.ProductID], item.Quantity, item.UnitPrice))
	}

	summary, err := pricing.Summarize(pricing.CartLines(cart.Items), decimal.Zero)
	if err != nil {
		return nil, err
	}
	if err := order.SetAmounts(summary.Subtotal, summary.ShippingFee, summary.Discount); err != nil {
		return nil, err
	}

	if order.OrderNumber, err = s.uniqueOrderNumber(ctx, at); err != nil {
		return nil, err
	}
	if err := s.repos.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	payment := model.NewPayment(order, at)
	if err := s.repos.Payments.Create(ctx, &payment); err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		if _, err := s.ledger.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := s.repos.Carts.Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// lockProducts loads every product in the cart under a row lock, in id
// order so concurrent checkouts cannot deadlock, and re-validates
// availability against the requested quantities.
func (s *OrderService) lockProducts(ctx context.Context, items []model.CartItem) (map[uuid.UUID]*model.Product, error) {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b model.CartItem) int { return byProductID(a.ProductID, b.ProductID) })

	products := make(map[uuid.UUID]*model.Product, len(sorted))
	for _, item := range sorted {
		p, err := s.repos.Products.GetForUpdate(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lock product: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, apperr.ErrProductNotFound)
		}
		if p.Status == model.ProductStatusInactive {
			return nil, fmt.Errorf("product %s: %w", p.ID, apperr.ErrProductUnavailable)
		}
		if !p.InStock() || p.Stock < item.Quantity {
			return nil, fmt.Errorf("product %s has %d, requested %d: %w", p.ID, p.Stock, item.Quantity, apperr.ErrInsufficientStock)
		}
		products[p.ID] = p
	}
	return products, nil
}

// byProductID is the one order in which product rows are locked, by checkout
// and cancellation alike.
func byProductID(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) }

func (s *OrderService) uniqueOrderNumber(ctx context.Context, at time.Time) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		number := s.newOrderNumber(at)
		exists, err := s.repos.Orders.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("no free order number after %d attempts", orderNumberAttempts)
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*dto.OrderResponse, error) {
	order, err := s.repos.Orders.GetByID(ctx, orderID)
	return s.ownedResponse(order, err, userID)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, userID uuid.UUID, number string) (*dto.OrderResponse, error) {
	order, err := s.repos.Orders.GetByNumber(ctx, number)
	return s.ownedResponse(order, err, userID)
}

func (s *OrderService) ownedResponse(order *model.Order, err error, userID uuid.UUID) (*dto.OrderResponse, error) {
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, apperr.ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", order.ID, apperr.ErrAccessDenied)
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

// ListOrders pages through the user's orders, newest first, optionally
// filtered by status. Pages are zero-based.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, page, size int, status model.OrderStatus) (*dto.OrderListResponse, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("order status %q: %w", status, apperr.ErrInvalidInput)
	}
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = defaultOrderPageSize
	}

	key := cache.OrderListKey(userID, page, size, string(status))
	resp, err := cache.Cached(ctx, s.store, key, cache.OrderListTTL, func(ctx context.Context) (dto.OrderListResponse, error) {
		orders, total, err := s.repos.Orders.ListByUser(ctx, userID, status, size, page*size)
		if err != nil {
			return dto.OrderListResponse{}, fmt.Errorf("list orders: %w", err)
		}
		list := dto.OrderListResponse{Orders: make([]dto.OrderResponse, 0, len(orders)), Total: total, Page: page, Size: size}
		for i := range orders {
			list.Orders = append(list.Orders, toOrderResponse(&orders[i]))
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *OrderService) CountOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repos.Orders.CountByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// CancelOrder cancels one of the caller's orders, returning its stock and
// cancelling the payment when possible. A second call fails with
// ErrOrderCannotCancel and releases nothing.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	return s.cancel(ctx, orderID, reason, func(o *model.Order) error {
		if o.UserID != userID {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrAccessDenied)
		}
		return nil
	})
}

// AdminCancelOrder cancels any order regardless of its owner.
func (s *OrderService) AdminCancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error) {
	return s.cancel(ctx, orderID, reason, func(*model.Order) error { return nil })
}

func (s *OrderService) cancel(ctx context.Context, orderID uuid.UUID, reason string, authorize func(*model.Order) error) (*dto.OrderResponse, error) {
	log := s.log.With("order_id", orderID)
	var (
		order    *model.Order
		released int
	)
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return apperr.ErrOrderNotFound
		}
		if err := authorize(order); err != nil {
			return err
		}

		at := s.now()
		if err := order.Cancel(at); err != nil {
			return err
		}

		items := slices.Clone(order.Items)
		slices.SortFunc(items, func(a, b model.OrderItem) int { return byProductID(a.ProductID, b.ProductID) })

		released = 0
		for _, item := range items {
			if _, err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, apperr.ErrProductNotFound) {
					log.Warn("skip restock of deleted product", "product_id", item.ProductID)
					continue
				}
				return err
			}
			released += item.Quantity
		}

		payment, err := s.repos.Payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get payment: %w", err)
		}
		if payment != nil && payment.CanCancel() {
			if err := payment.UpdateStatus(model.PaymentStatusCancelled, at); err != nil {
				return err
			}
			payment.CancelReason = reason
			if err := s.repos.Payments.Update(ctx, payment); err != nil {
				return err
			}
			order.PaymentStatus = payment.Status
		}

		return s.repos.Orders.Update(ctx, order)
	})
	if err != nil {
		logRejected(log, "cancel rejected", err)
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	s.inv.Prefix(ctx, cache.OrderListPrefix(order.UserID))
	s.inv.Keys(ctx, cache.ProductKeys(productIDs...)...)

	s.metrics.OrderCancelled(released)
	log.Info("order cancelled", "released_units", released, "reason", reason)
	publish(ctx, s.events, s.log, events.New(events.OrderCancelled, order.ID, order.UserID, map[string]any{
		"reason":         reason,
		"released_units": released,
	}))

	resp := toOrderResponse(order)
	return &resp, nil
}
