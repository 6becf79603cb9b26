package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"db-relay/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance that receives run logs.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// RedisPublisher stores the latest log of each integration and announces it:
//
//	SET  <prefix>:integration:<id>:last  <JSON>  EX <ttl>
//	PUB  <prefix>:integration:<id>       <JSON>
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPublisher(cfg RedisConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisPublisherWithClient(client, cfg)
}

func NewRedisPublisherWithClient(client *redis.Client, cfg RedisConfig) *RedisPublisher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "relay"
	}
	return &RedisPublisher{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (p *RedisPublisher) StateKey(integrationID string) string {
	return fmt.Sprintf("%s:integration:%s:last", p.prefix, integrationID)
}

func (p *RedisPublisher) Channel(integrationID string) string {
	return fmt.Sprintf("%s:integration:%s", p.prefix, integrationID)
}

func (p *RedisPublisher) Record(ctx context.Context, entry model.IntegrationLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal integration log: %w", err)
	}
	if err := p.client.Set(ctx, p.StateKey(entry.IntegrationID), payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(entry.IntegrationID), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
