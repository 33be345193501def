package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-quill/internal/segment"
)

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// RedisCache shares processed sentences between replicas. Values are CBOR
// encoded token lists.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and pings it once.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "quill:sentence:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (segment.Sentence, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("Redis cache get failed")
		return nil, false
	}

	var tokens []segment.Token
	if err := cbor.Unmarshal(data, &tokens); err != nil {
		log.Warn().Err(err).Msg("Dropping undecodable cache entry")
		return nil, false
	}
	s := make(segment.Sentence, len(tokens))
	for i := range tokens {
		s[i] = &tokens[i]
	}
	return s, true
}

func (c *RedisCache) Put(ctx context.Context, key string, s segment.Sentence) {
	tokens := make([]segment.Token, len(s))
	for i, tok := range s {
		tokens[i] = *tok
	}
	data, err := cbor.Marshal(tokens)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode cache entry")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis cache set failed")
	}
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
