package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// DependencyChecks builds the readiness checks for whichever backends are
// configured. Nil arguments are skipped.
func DependencyChecks(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) map[string]Check {
	checks := make(map[string]Check)
	if dbPool != nil {
		checks["postgres"] = func(ctx context.Context) error { return dbPool.Ping(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if amqpConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status = gin.H{}
		ready  = true
	)
	var g errgroup.Group
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[name] = "unavailable"
				ready = false
			} else {
				status[name] = "connected"
			}
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		status["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["status"] = "ok"
	c.JSON(http.StatusOK, status)
}
