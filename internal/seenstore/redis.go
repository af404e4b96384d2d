package seenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps the seen set in a Redis set keyed per vendor, so several
// vendors can share one instance.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(redisURL, vendorID string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{
		client: client,
		key:    "marketpulse:seen:" + vendorID,
	}, nil
}

func (r *Redis) Load(ctx context.Context) (map[string]struct{}, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load seen set: %w", err)
	}
	out := make(map[string]struct{}, len(members))
	for _, m := range members {
		out[m] = struct{}{}
	}
	return out, nil
}

func (r *Redis) Save(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("save seen set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
