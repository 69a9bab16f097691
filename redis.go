package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb *redis.Client
}

type RedisOptions struct {
	Host     string
	Port     int
	DB       int
	Password string
}

func NewRedisStore(opts RedisOptions) Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		DB:       opts.DB,
		Password: opts.Password,
	})
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (s *redisStore) SAdd(ctx context.Context, set, member string) error {
	return s.rdb.SAdd(ctx, set, member).Err()
}

func (s *redisStore) SRem(ctx context.Context, set, member string) error {
	return s.rdb.SRem(ctx, set, member).Err()
}

func (s *redisStore) SIsMember(ctx context.Context, set, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, set, member).Result()
}

func (s *redisStore) SMembers(ctx context.Context, set string) ([]string, error) {
	return s.rdb.SMembers(ctx, set).Result()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
