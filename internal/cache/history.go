// Package cache holds the read-through cache of per-user calculation history.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taxservice/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStale is returned by Set when the history was invalidated after the
// caller read the generation. The entry is not written.
var ErrStale = errors.New("history changed since it was read")

// generationTTL outlives any read-then-store window by a wide margin.
const generationTTL = 24 * time.Hour

// HistoryCache caches a user's full calculation history. Implementations must
// treat every read failure as a miss; the database stays the source of truth.
//
// Readers take Generation before loading from the database and pass it to Set,
// so a list loaded before a concurrent Invalidate is never stored.
type HistoryCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]model.Calculation, bool)
	Generation(ctx context.Context, userID uuid.UUID) (int64, error)
	Set(ctx context.Context, userID uuid.UUID, generation int64, calcs []model.Calculation) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// storeIfCurrent writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing generation key counts as 0. ARGV[3] is the ttl in ms, 0 for none.
var storeIfCurrent = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then current = "0" end
if current ~= ARGV[1] then return 0 end
if ARGV[3] == "0" then
	redis.call("SET", KEYS[2], ARGV[2])
else
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
end
return 1
`)

type redisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHistoryCache returns a HistoryCache backed by client.
func NewRedisHistoryCache(client *redis.Client, ttl time.Duration) HistoryCache {
	return &redisHistoryCache{client: client, ttl: ttl}
}

func historyKey(userID uuid.UUID) string {
	return fmt.Sprintf("calculations:%s", userID)
}

func generationKey(userID uuid.UUID) string {
	return fmt.Sprintf("calculations:%s:gen", userID)
}

func (c *redisHistoryCache) Get(ctx context.Context, userID uuid.UUID) ([]model.Calculation, bool) {
	data, err := c.client.Get(ctx, historyKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var calcs []model.Calculation
	if err := json.Unmarshal(data, &calcs); err != nil {
		return nil, false
	}
	return calcs, true
}

func (c *redisHistoryCache) Generation(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read history generation: %w", err)
	}
	return gen, nil
}

func (c *redisHistoryCache) Set(ctx context.Context, userID uuid.UUID, generation int64, calcs []model.Calculation) error {
	data, err := json.Marshal(calcs)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	ttl := c.ttl.Milliseconds()
	if ttl < 0 {
		ttl = 0
	}

	stored, err := storeIfCurrent.Run(ctx, c.client,
		[]string{generationKey(userID), historyKey(userID)},
		strconv.FormatInt(generation, 10), data, strconv.FormatInt(ttl, 10),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to store history: %w", err)
	}
	if stored == 0 {
		return ErrStale
	}
	return nil
}

// Invalidate bumps the generation and drops the cached list in one transaction.
func (c *redisHistoryCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, historyKey(userID))
		return nil
	})
	return err
}

// Noop never hits. Used when Redis is disabled.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) ([]model.Calculation, bool) {
	return nil, false
}

func (Noop) Generation(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (Noop) Set(context.Context, uuid.UUID, int64, []model.Calculation) error {
	return nil
}

func (Noop) Invalidate(context.Context, uuid.UUID) error {
	return nil
}
