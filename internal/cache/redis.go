package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Service on a go-redis client.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client. The caller keeps ownership of rdb
// unless it lets Close release it.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// releaseScript deletes the lock key only while the caller's token owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL only while the caller's token owns it.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func (r *Redis) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	return r.rdb.HIncrBy(ctx, key, field, delta).Result()
}

func (r *Redis) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, key).Result()
}

func (r *Redis) SetFields(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.rdb.HSet(ctx, key, fields).Err()
}

func (r *Redis) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := newToken()
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *Redis) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, r.rdb, []string{key}, token).Err()
}

func (r *Redis) RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	res, err := refreshScript.Run(ctx, r.rdb, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Allow implements a sliding window: drop events older than the window,
// count what remains, and admit the new event only under the limit.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if card.Val() >= int64(limit) {
		return false, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + newToken()
	pipe = r.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func newToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// rand.Read on supported platforms does not fail; keep a
		// usable token anyway.
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}
