package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/retail-ledger/internal/config"
	"github.com/safar/retail-ledger/internal/database"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Redis struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client, lockTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &Redis{client: client, lockTTL: lockTTL}
}

func collectionKey(tenantID, key string) string {
	return fmt.Sprintf("tenant:%s:%s", tenantID, key)
}

func (r *Redis) Load(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, collectionKey(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, database.MarkTransient(fmt.Errorf("load collection %s/%s: %w", tenantID, key, err))
	}
	return data, true, nil
}

func (r *Redis) Save(ctx context.Context, tenantID, key string, data []byte) error {
	return r.SaveBatch(ctx, tenantID, map[string][]byte{key: data})
}

// SaveBatch writes all collections in one MULTI/EXEC block.
func (r *Redis) SaveBatch(ctx context.Context, tenantID string, batch map[string][]byte) error {
	if len(batch) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range batch {
			pipe.Set(ctx, collectionKey(tenantID, key), data, 0)
		}
		return nil
	})
	if err != nil {
		return database.MarkTransient(fmt.Errorf("save batch for %s: %w", tenantID, err))
	}
	return nil
}

func (r *Redis) AcquireLock(ctx context.Context, key, value string) (bool, error) {
	return r.client.SetNX(ctx, key, value, r.lockTTL).Result()
}

// ReleaseLock deletes the lock only while it still holds value.
func (r *Redis) ReleaseLock(ctx context.Context, key, value string) error {
	return releaseScript.Run(ctx, r.client, []string{key}, value).Err()
}
