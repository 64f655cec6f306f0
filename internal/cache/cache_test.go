package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	now = now.Add(time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_DeletePattern(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()

	require.NoError(t, s.Set(ctx, OrderListKey(user, 0, 10, ""), []byte("a"), time.Minute))
	require.NoError(t, s.Set(ctx, OrderListKey(user, 1, 10, "PAID"), []byte("b"), time.Minute))
	require.NoError(t, s.Set(ctx, OrderListKey(other, 0, 10, ""), []byte("c"), time.Minute))

	require.NoError(t, s.DeletePattern(ctx, OrderListPrefix(user)))
	assert.Equal(t, 1, s.Len())
	_, ok, _ := s.Get(ctx, OrderListKey(other, 0, 10, ""))
	assert.True(t, ok)
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCached_MissThenHit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "cart", Count: calls}, nil
	}

	first, err := Cached(ctx, s, "k", time.Minute, load)
	require.NoError(t, err)
	second, err := Cached(ctx, s, "k", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestCached_LoaderErrorIsNotCached(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Cached(ctx, s, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
}

func TestCached_NilStoreLoadsDirectly(t *testing.T) {
	v, err := Cached(context.Background(), nil, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestInvalidator_Keys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()
	for _, k := range ProductKeys(id) {
		require.NoError(t, s.Set(ctx, k, []byte("x"), time.Minute))
	}

	inv := NewInvalidator(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	inv.Keys(ctx, ProductKeys(id)...)
	assert.Equal(t, 0, s.Len())
}
