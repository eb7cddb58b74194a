package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"en-words-service/internal/app"
	"en-words-service/internal/domain"
)

// WordCache caches the per-user word catalog in Redis as a JSON blob and falls
// back to the wrapped store on miss. Check writes delete the cached catalog
// (checked flags are part of the payload); attempts and stats pass through.
//
// Key layout: SET words:catalog:{userID} {json} EX ttl
type WordCache struct {
	client *redis.Client
	store  app.WordStore
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewWordCache(client *redis.Client, store app.WordStore, ttl time.Duration) *WordCache {
	return &WordCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *WordCache) ListWords(ctx context.Context, userID int64) ([]domain.Word, error) {
	key := c.catalogKey(userID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var words []domain.Word
		if err := json.Unmarshal(raw, &words); err == nil {
			return words, nil
		}
		// Unreadable payload: fall through and rebuild.
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var words []domain.Word
			if err := json.Unmarshal(raw, &words); err == nil {
				return words, nil
			}
		}

		words, err := c.store.ListWords(ctx, userID)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(words); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Word), nil
}

func (c *WordCache) RecordAttempts(ctx context.Context, userID int64, attempts []domain.Attempt) (int, error) {
	return c.store.RecordAttempts(ctx, userID, attempts)
}

func (c *WordCache) ReplaceChecks(ctx context.Context, userID int64, wordIDs []string) (domain.CheckSync, error) {
	sync, err := c.store.ReplaceChecks(ctx, userID, wordIDs)
	if err != nil {
		return domain.CheckSync{}, err
	}
	// best-effort invalidation; a stale catalog just lives until the TTL
	_ = c.client.Del(ctx, c.catalogKey(userID)).Err()
	return sync, nil
}

func (c *WordCache) QuizStats(ctx context.Context) ([]domain.WordStat, error) {
	return c.store.QuizStats(ctx)
}

func (c *WordCache) catalogKey(userID int64) string {
	return "words:catalog:" + strconv.FormatInt(userID, 10)
}

func (c *WordCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
