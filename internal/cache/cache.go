// Package cache holds the key-value cache used to memoize cart contents,
// order listings and catalog lookups. Entries are conveniences; the durable
// store stays the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is a key-value store with per-entry TTL.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key starting with prefix.
	DeletePattern(ctx context.Context, prefix string) error
}

// Cached is the single cache-aside read path: it serves key from store when
// present, otherwise calls load and stores the JSON-encoded result for ttl.
// Cache failures degrade to a direct load.
func Cached[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if store != nil {
		if raw, ok, err := store.Get(ctx, key); err == nil && ok {
			var v T
			if json.Unmarshal(raw, &v) == nil {
				return v, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if store != nil {
		if raw, err := json.Marshal(v); err == nil {
			_ = store.Set(ctx, key, raw, ttl)
		}
	}
	return v, nil
}

// Invalidator deletes cache entries on write paths and logs, rather than
// returns, failures: a missed invalidation is bounded by the entry TTL.
type Invalidator struct {
	store Store
	log   *slog.Logger
}

func NewInvalidator(store Store, log *slog.Logger) *Invalidator {
	return &Invalidator{store: store, log: log}
}

func (i *Invalidator) Keys(ctx context.Context, keys ...string) {
	if i == nil || i.store == nil || len(keys) == 0 {
		return
	}
	if err := i.store.Delete(ctx, keys...); err != nil {
		i.log.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func (i *Invalidator) Prefix(ctx context.Context, prefix string) {
	if i == nil || i.store == nil {
		return
	}
	if err := i.store.DeletePattern(ctx, prefix); err != nil {
		i.log.Warn("cache prefix invalidation failed", "prefix", prefix, "error", err)
	}
}

const (
	CartTTL      = 15 * time.Minute
	CartCountTTL = 10 * time.Minute
	OrderListTTL = 10 * time.Minute
	ProductTTL   = 60 * time.Second
	ListingTTL   = 5 * time.Minute
	SessionTTL   = 24 * time.Hour
	ProcessedTTL = 24 * time.Hour
)

const (
	NewProductsKey         = "product:cache:new"
	RecommendedProductsKey = "product:cache:recommended"
)

// CartPrefix covers every cart and cart-count entry.
const CartPrefix = "cart:"

func CartKey(userID uuid.UUID) string      { return "cart:user:" + userID.String() }
func CartCountKey(userID uuid.UUID) string { return "cart:count:" + userID.String() }
func ProductKey(id uuid.UUID) string       { return "product:cache:" + id.String() }
func SessionKey(userID uuid.UUID) string   { return "user:session:" + userID.String() }

// ProcessedKey marks a queue message as handled.
func ProcessedKey(messageID string) string { return "fulfillment:processed:" + messageID }

// OrderListPrefix covers every cached order-list page of a user.
func OrderListPrefix(userID uuid.UUID) string { return "orders:user:" + userID.String() + ":" }

func OrderListKey(userID uuid.UUID, page, size int, status string) string {
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("%spage:%d:size:%d:status:%s", OrderListPrefix(userID), page, size, status)
}

// ProductKeys lists every key that embeds stock or availability of the
// given products.
func ProductKeys(ids ...uuid.UUID) []string {
	keys := make([]string, 0, len(ids)+2)
	for _, id := range ids {
		keys = append(keys, ProductKey(id))
	}
	return append(keys, NewProductsKey, RecommendedProductsKey)
}
