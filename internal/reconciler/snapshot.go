package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the last applied pending view under a per-actor key with a
// TTL, so the view survives gateway restarts but never outlives its
// usefulness. The backend record stays authoritative; this is display cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, actor string) ([]domain.PendingBooking, error) {
	data, err := s.client.Get(ctx, pendingKey(actor)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var items []domain.PendingBooking
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, actor string, items []domain.PendingBooking) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pendingKey(actor), payload, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, actor string) error {
	return s.client.Del(ctx, pendingKey(actor)).Err()
}

func pendingKey(actor string) string {
	return "cache:pending:" + actor
}
