package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"sarvin_back_end/internal/config"
)

// ErrNotConfigured marks an optional backend left out of the configuration.
var ErrNotConfigured = errors.New("not configured")

// Connections groups the backends the server talks to. Redis and Scylla are
// optional and nil when not configured.
type Connections struct {
	Mongo  *mongo.Client
	Redis  *redis.Client
	Scylla *gocql.Session
}

func (c *Connections) Close(ctx context.Context) {
	if c.Scylla != nil {
		c.Scylla.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Disconnect(ctx)
	}
}

// Connect opens Mongo, which is required, and whichever optional backends
// are configured. An optional backend that fails to connect is logged and skipped.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Connections, error) {
	conns := &Connections{}

	client, err := ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	conns.Mongo = client
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	rdb, err := ConnectRedis(ctx, cfg.Redis)
	switch {
	case errors.Is(err, ErrNotConfigured):
		log.Warn("REDIS_ADDR not set: random order ids, no payment lock, no rate limit")
	case err != nil:
		log.Error("redis unavailable, continuing without it", zap.Error(err))
	default:
		conns.Redis = rdb
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	session, err := ConnectScylla(cfg.Scylla)
	switch {
	case errors.Is(err, ErrNotConfigured):
		log.Warn("SCYLLA_HOSTS not set: audit entries go to the log")
	case err != nil:
		log.Error("scylla unavailable, continuing without it", zap.Error(err))
	default:
		conns.Scylla = session
		log.Info("connected to ScyllaDB", zap.String("keyspace", cfg.Scylla.Keyspace))
	}

	return conns, nil
}

// =============================================
// MONGODB
// =============================================

func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// =============================================
// REDIS
// =============================================

func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrNotConfigured
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// =============================================
// SCYLLA DB
// =============================================

func ConnectScylla(cfg config.ScyllaConfig) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 || cfg.Keyspace == "" {
		return nil, ErrNotConfigured
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.ReconnectInterval = time.Second
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create scylla session for %s: %w", cfg.Keyspace, err)
	}
	return session, nil
}
