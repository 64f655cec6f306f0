package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/events"
	"github.com/flicky/storefront-api/internal/repository"
	"github.com/flicky/storefront-api/internal/worker"
)

// infra holds the backends selected by configuration. Unused backends stay nil.
type infra struct {
	repos  repository.Repositories
	store  cache.Store
	events events.Publisher

	pool     *pgxpool.Pool
	redis    *redis.Client
	amqpConn *amqp.Connection
	workerCh *amqp.Channel
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *infra, err error) {
	in := &infra{events: events.Nop{}}
	defer func() {
		if err != nil {
			in.Close(log)
		}
	}()

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if in.pool, err = openPostgres(ctx, cfg.DB); err != nil {
			return nil, err
		}
		in.repos = repository.NewPostgres(in.pool)
		log.Info("connected to PostgreSQL")
	default:
		in.repos = repository.NewMemory()
		log.Warn("using in-memory store; data is lost on restart")
	}

	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		in.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = in.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		in.store = cache.NewRedisStore(in.redis)
		log.Info("connected to Redis")
	default:
		in.store = cache.NewMemoryStore()
	}

	if cfg.Events.Driver == config.EventsDriverAMQP || cfg.Events.Worker {
		if in.amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL); err != nil {
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		log.Info("connected to RabbitMQ")
	}

	switch cfg.Events.Driver {
	case config.EventsDriverAMQP:
		ch, err := in.amqpConn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open publish channel: %w", err)
		}
		pub, err := events.NewAMQPPublisher(ch, cfg.RabbitMQ.EventExchange)
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		in.events = pub
	case config.EventsDriverKafka:
		in.events = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("publishing events to Kafka", "topic", cfg.Kafka.Topic)
	}

	if cfg.Events.Worker {
		if in.workerCh, err = in.amqpConn.Channel(); err != nil {
			return nil, fmt.Errorf("open worker channel: %w", err)
		}
		if err = worker.SetupRabbitMQ(in.workerCh, cfg.RabbitMQ.Queue, cfg.RabbitMQ.Prefetch); err != nil {
			return nil, fmt.Errorf("setup RabbitMQ: %w", err)
		}
	}

	return in, nil
}

func openPostgres(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

// Close releases backends in reverse order of acquisition.
func (in *infra) Close(log *slog.Logger) {
	if in.workerCh != nil {
		_ = in.workerCh.Close()
	}
	if in.events != nil {
		if err := in.events.Close(); err != nil {
			log.Warn("close event publisher", "error", err)
		}
	}
	if in.amqpConn != nil {
		_ = in.amqpConn.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.pool != nil {
		in.pool.Close()
	}
}
