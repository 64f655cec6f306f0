package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// PostgresSuite runs against TEST_DATABASE_URL and is skipped without it.
type PostgresSuite struct {
	suite.Suite
}

func TestPostgresSuite(t *testing.T) {
	if testPool == nil {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) TestContract() {
	runContract(s.T(), func(t *testing.T) Repositories {
		cleanupTables(t)
		return NewPostgres(testPool)
	})
}

func (s *PostgresSuite) TestConcurrentDecrementNeverOversells() {
	t := s.T()
	cleanupTables(t)
	repos := NewPostgres(testPool)
	ctx := context.Background()
	p := seedProduct(t, repos, "P", 10, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
				got, err := repos.Products.DecrementStock(ctx, p.ID, 1)
				if err == nil && got != nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s.Equal(5, applied)
	got, err := repos.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	s.Equal(0, got.Stock)
}
