package kvstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKeyPrefix namespaces every key so Clear cannot touch foreign data.
const redisKeyPrefix = "weatherboard:"

// RedisStore is the redis-backed Store for deployments where local state must
// survive the process. It keeps the same degrade-to-no-op contract as
// FileStore: redis errors are logged and read as absent.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewRedisStore connects to addr and verifies reachability with a ping.
// opTimeout bounds each operation; it defaults to one second when zero.
// A failed ping does not fail construction; the store degrades and reports
// unavailable until redis comes back.
func NewRedisStore(addr, password string, db int, opTimeout time.Duration, logger *zap.Logger) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = time.Second
	}
	s := &RedisStore{
		client:    redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		logger:    logger,
		opTimeout: opTimeout,
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis storage unreachable, operations will no-op until it recovers", zap.String("addr", addr), zap.Error(err))
	}
	return s
}

func (s *RedisStore) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}

// Set implements Store.
func (s *RedisStore) Set(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("storage set: serialize failed", zap.String("key", key), zap.Error(err))
		return
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		s.logger.Warn("storage set failed", zap.String("key", key), zap.Error(err))
	}
}

// Get implements Store.
func (s *RedisStore) Get(key string, out any) bool {
	ctx, cancel := s.opCtx()
	defer cancel()
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("storage get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("storage get: malformed entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Has implements Store.
func (s *RedisStore) Has(key string) bool {
	ctx, cancel := s.opCtx()
	defer cancel()
	n, err := s.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		s.logger.Warn("storage has failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// Remove implements Store.
func (s *RedisStore) Remove(key string) {
	ctx, cancel := s.opCtx()
	defer cancel()
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		s.logger.Warn("storage remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear implements Store. Deletes only keys under the weatherboard namespace.
func (s *RedisStore) Clear() {
	ctx, cancel := s.opCtx()
	defer cancel()
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("storage clear: delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("storage clear failed", zap.Error(err))
	}
}

// Available implements Store.
func (s *RedisStore) Available() bool {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Close releases the redis connection pool. Call during shutdown.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
