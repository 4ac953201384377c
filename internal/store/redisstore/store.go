// Package redisstore is the optional second cache tier. When configured,
// translations survive process restarts and are shared across instances.
package redisstore

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "transq:result:"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get implements the engine's shared cache read. A miss or a Redis error
// both report absent; the caller falls through to the outbound call.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("redis get failed key=%s err=%v", key, err)
		return "", false
	}
	return val, true
}

// Set implements the engine's shared cache write. Failures are logged and
// swallowed so a Redis outage never fails a translation.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		log.Printf("redis set failed key=%s err=%v", key, err)
	}
}
