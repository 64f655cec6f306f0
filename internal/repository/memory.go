package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/model"
)

// memStore keeps every table in process memory behind one mutex. A unit of
// work holds the mutex for its whole duration and restores a snapshot when
// it fails, so it is atomic and isolated like a serializable transaction.
type memStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]model.User
	products   map[uuid.UUID]model.Product
	carts      map[uuid.UUID]model.Cart
	cartItems  map[uuid.UUID][]model.CartItem
	orders     map[uuid.UUID]model.Order
	orderSeq   []uuid.UUID
	payments   map[uuid.UUID]model.Payment
	deliveries map[uuid.UUID]model.Delivery
}

type memTxKey struct{}

// NewMemory returns repositories over a fresh in-memory store.
func NewMemory() Repositories {
	s := &memStore{
		users:      map[uuid.UUID]model.User{},
		products:   map[uuid.UUID]model.Product{},
		carts:      map[uuid.UUID]model.Cart{},
		cartItems:  map[uuid.UUID][]model.CartItem{},
		orders:     map[uuid.UUID]model.Order{},
		payments:   map[uuid.UUID]model.Payment{},
		deliveries: map[uuid.UUID]model.Delivery{},
	}
	return Repositories{
		Users:      memUserRepo{s},
		Products:   memProductRepo{s},
		Carts:      memCartRepo{s},
		Orders:     memOrderRepo{s},
		Payments:   memPaymentRepo{s},
		Deliveries: memDeliveryRepo{s},
		Tx:         s,
	}
}

// lock acquires the store unless ctx already runs inside one of its units
// of work.
func (s *memStore) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(memTxKey{}).(*memStore); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(memTxKey{}).(*memStore); owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users      map[uuid.UUID]model.User
	products   map[uuid.UUID]model.Product
	carts      map[uuid.UUID]model.Cart
	cartItems  map[uuid.UUID][]model.CartItem
	orders     map[uuid.UUID]model.Order
	orderSeq   []uuid.UUID
	payments   map[uuid.UUID]model.Payment
	deliveries map[uuid.UUID]model.Delivery
}

// snapshot copies every table. Stored values are never mutated in place, so
// copying the maps and slices is enough.
func (s *memStore) snapshot() memSnapshot {
	items := make(map[uuid.UUID][]model.CartItem, len(s.cartItems))
	for id, lines := range s.cartItems {
		items[id] = slices.Clone(lines)
	}
	return memSnapshot{
		users:      maps.Clone(s.users),
		products:   maps.Clone(s.products),
		carts:      maps.Clone(s.carts),
		cartItems:  items,
		orders:     maps.Clone(s.orders),
		orderSeq:   slices.Clone(s.orderSeq),
		payments:   maps.Clone(s.payments),
		deliveries: maps.Clone(s.deliveries),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = snap.users
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.orderSeq = snap.orderSeq
	s.payments = snap.payments
	s.deliveries = snap.deliveries
}

func memNow() time.Time { return time.Now().UTC() }

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt, user.UpdatedAt = memNow(), memNow()
	r.s.users[user.ID] = *user
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

type memProductRepo struct{ s *memStore }

func (r memProductRepo) Create(ctx context.Context, product *model.Product) error {
	defer r.s.lock(ctx)()
	product.ID = uuid.New()
	if product.Status == "" {
		product.Status = model.ProductStatusActive
	}
	product.SetStock(product.Stock)
	product.CreatedAt, product.UpdatedAt = memNow(), memNow()
	r.s.products[product.ID] = *product
	return nil
}

func (r memProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memProductRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.GetByID(ctx, id)
}

func (r memProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	defer r.s.lock(ctx)()
	search := strings.ToLower(f.Search)
	var matched []model.Product
	for _, p := range r.s.products {
		if search == "" || strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Description), search) {
			matched = append(matched, p)
		}
	}
	slices.SortFunc(matched, func(a, b model.Product) int {
		var c int
		switch f.Sort {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "price":
			c = a.Price.Cmp(b.Price)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if f.Order != "asc" {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		return c
	})
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func (r memProductRepo) ListNewArrivals(ctx context.Context, limit int) ([]model.Product, error) {
	return r.listActive(ctx, limit, func(p model.Product) bool { return true })
}

func (r memProductRepo) ListFeatured(ctx context.Context, limit int) ([]model.Product, error) {
	return r.listActive(ctx, limit, func(p model.Product) bool { return p.IsFeatured })
}

func (r memProductRepo) listActive(ctx context.Context, limit int, keep func(model.Product) bool) ([]model.Product, error) {
	defer r.s.lock(ctx)()
	var out []model.Product
	for _, p := range r.s.products {
		if p.Status == model.ProductStatusActive && keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(out, limit, 0), nil
}

func (r memProductRepo) Update(ctx context.Context, product *model.Product) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.products[product.ID]; !ok {
		return nil
	}
	product.UpdatedAt = memNow()
	r.s.products[product.ID] = *product
	return nil
}

func (r memProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.products, id)
	for cartID, lines := range r.s.cartItems {
		r.s.cartItems[cartID] = slices.DeleteFunc(slices.Clone(lines), func(it model.CartItem) bool {
			return it.ProductID == id
		})
	}
	return nil
}

func (r memProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.products[id]
	if !ok || p.Status != model.ProductStatusActive || p.Stock < quantity {
		return nil, nil
	}
	p.SetStock(p.Stock - quantity)
	p.UpdatedAt = memNow()
	r.s.products[id] = p
	return &p, nil
}

func (r memProductRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (*model.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	p.SetStock(p.Stock + quantity)
	p.UpdatedAt = memNow()
	r.s.products[id] = p
	return &p, nil
}

type memCartRepo struct{ s *memStore }

func (r memCartRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	defer r.s.lock(ctx)()
	return r.byUser(userID), nil
}

func (r memCartRepo) byUser(userID uuid.UUID) *model.Cart {
	for _, c := range r.s.carts {
		if c.UserID == userID {
			c.Items = slices.Clone(r.s.cartItems[c.ID])
			return &c
		}
	}
	return nil
}

func (r memCartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	defer r.s.lock(ctx)()
	if c := r.byUser(userID); c != nil {
		return c, nil
	}
	c := model.Cart{ID: uuid.New(), UserID: userID, CreatedAt: memNow(), UpdatedAt: memNow()}
	r.s.carts[c.ID] = c
	return &c, nil
}

func (r memCartRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	defer r.s.lock(ctx)()
	for _, lines := range r.s.cartItems {
		for _, it := range lines {
			if it.ID == itemID {
				return &it, nil
			}
		}
	}
	return nil, nil
}

func (r memCartRepo) AddItem(ctx context.Context, item *model.CartItem) error {
	defer r.s.lock(ctx)()
	lines := slices.Clone(r.s.cartItems[item.CartID])
	ts := memNow()
	for i := range lines {
		if lines[i].ProductID == item.ProductID {
			lines[i].Quantity += item.Quantity
			lines[i].UpdatedAt = ts
			*item = lines[i]
			r.s.cartItems[item.CartID] = lines
			r.touch(item.CartID, ts)
			return nil
		}
	}
	item.ID = uuid.New()
	item.CreatedAt, item.UpdatedAt = ts, ts
	r.s.cartItems[item.CartID] = append(lines, *item)
	r.touch(item.CartID, ts)
	return nil
}

func (r memCartRepo) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	defer r.s.lock(ctx)()
	for cartID, lines := range r.s.cartItems {
		if i := slices.IndexFunc(lines, func(it model.CartItem) bool { return it.ID == itemID }); i >= 0 {
			lines = slices.Clone(lines)
			lines[i].Quantity = quantity
			lines[i].UpdatedAt = memNow()
			r.s.cartItems[cartID] = lines
			r.touch(cartID, lines[i].UpdatedAt)
			return nil
		}
	}
	return ErrNotFound
}

func (r memCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	defer r.s.lock(ctx)()
	for cartID, lines := range r.s.cartItems {
		if i := slices.IndexFunc(lines, func(it model.CartItem) bool { return it.ID == itemID }); i >= 0 {
			r.s.cartItems[cartID] = slices.Delete(slices.Clone(lines), i, i+1)
			r.touch(cartID, memNow())
			return nil
		}
	}
	return ErrNotFound
}

func (r memCartRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	defer r.s.lock(ctx)()
	delete(r.s.cartItems, cartID)
	r.touch(cartID, memNow())
	return nil
}

func (r memCartRepo) CountItems(ctx context.Context, userID uuid.UUID) (int, error) {
	defer r.s.lock(ctx)()
	c := r.byUser(userID)
	if c == nil {
		return 0, nil
	}
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n, nil
}

func (r memCartRepo) touch(cartID uuid.UUID, at time.Time) {
	if c, ok := r.s.carts[cartID]; ok {
		c.UpdatedAt = at
		r.s.carts[cartID] = c
	}
}

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) Create(ctx context.Context, order *model.Order) error {
	defer r.s.lock(ctx)()
	ts := memNow()
	order.ID = uuid.New()
	if order.OrderedAt.IsZero() {
		order.OrderedAt = ts
	}
	order.CreatedAt, order.UpdatedAt = ts, ts
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = ts
	}
	stored := *order
	stored.Items = slices.Clone(order.Items)
	r.s.orders[order.ID] = stored
	r.s.orderSeq = append(r.s.orderSeq, order.ID)
	return nil
}

func (r memOrderRepo) get(id uuid.UUID) *model.Order {
	o, ok := r.s.orders[id]
	if !ok {
		return nil
	}
	o.Items = slices.Clone(o.Items)
	return &o
}

func (r memOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	defer r.s.lock(ctx)()
	return r.get(id), nil
}

func (r memOrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

func (r memOrderRepo) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	defer r.s.lock(ctx)()
	for id, o := range r.s.orders {
		if o.OrderNumber == number {
			return r.get(id), nil
		}
	}
	return nil, nil
}

func (r memOrderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	o, err := r.GetByNumber(ctx, number)
	return o != nil, err
}

func (r memOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, status model.OrderStatus, limit, offset int) ([]model.Order, int, error) {
	defer r.s.lock(ctx)()
	var matched []model.Order
	for i := len(r.s.orderSeq) - 1; i >= 0; i-- {
		o := r.get(r.s.orderSeq[i])
		if o.UserID == userID && (status == "" || o.Status == status) {
			matched = append(matched, *o)
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func (r memOrderRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	_, total, err := r.ListByUser(ctx, userID, "", 0, 0)
	return total, err
}

func (r memOrderRepo) Update(ctx context.Context, order *model.Order) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = order.Status
	stored.PaymentStatus = order.PaymentStatus
	stored.OrderMemo = order.OrderMemo
	stored.AdminMemo = order.AdminMemo
	stored.PaidAt = order.PaidAt
	stored.ShippedAt = order.ShippedAt
	stored.DeliveredAt = order.DeliveredAt
	stored.CancelledAt = order.CancelledAt
	stored.UpdatedAt = order.UpdatedAt
	r.s.orders[order.ID] = stored
	return nil
}

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	defer r.s.lock(ctx)()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = memNow(), memNow()
	r.s.payments[p.OrderID] = *p
	return nil
}

func (r memPaymentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.payments[p.OrderID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = memNow()
	r.s.payments[p.OrderID] = *p
	return nil
}

type memDeliveryRepo struct{ s *memStore }

func (r memDeliveryRepo) Create(ctx context.Context, d *model.Delivery) error {
	defer r.s.lock(ctx)()
	d.ID = uuid.New()
	d.CreatedAt, d.UpdatedAt = memNow(), memNow()
	r.s.deliveries[d.OrderID] = *d
	return nil
}

func (r memDeliveryRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error) {
	defer r.s.lock(ctx)()
	d, ok := r.s.deliveries[orderID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r memDeliveryRepo) Update(ctx context.Context, d *model.Delivery) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.deliveries[d.OrderID]; !ok {
		return ErrNotFound
	}
	r.s.deliveries[d.OrderID] = *d
	return nil
}

// page applies limit and offset; a non-positive limit returns everything
// after offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
