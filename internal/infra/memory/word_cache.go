package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"en-words-service/internal/app"
	"en-words-service/internal/domain"
)

// WordCache wraps a WordStore and caches the per-user catalog with a TTL to
// avoid rebuilding the word list on every request. Check writes invalidate the
// cached catalog because checked flags are baked into it; attempt and stats
// traffic passes straight through.
type WordCache struct {
	store app.WordStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedCatalog
}

type cachedCatalog struct {
	words     []domain.Word
	expiresAt time.Time
}

func NewWordCache(store app.WordStore, ttl time.Duration) *WordCache {
	return &WordCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[int64]cachedCatalog),
	}
}

func (c *WordCache) ListWords(ctx context.Context, userID int64) ([]domain.Word, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[userID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return append([]domain.Word(nil), entry.words...), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[userID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.words, nil
		}
		c.mu.RUnlock()

		words, err := c.store.ListWords(ctx, userID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[userID] = cachedCatalog{words: words, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	words := result.([]domain.Word)
	return append([]domain.Word(nil), words...), nil
}

func (c *WordCache) RecordAttempts(ctx context.Context, userID int64, attempts []domain.Attempt) (int, error) {
	return c.store.RecordAttempts(ctx, userID, attempts)
}

func (c *WordCache) ReplaceChecks(ctx context.Context, userID int64, wordIDs []string) (domain.CheckSync, error) {
	sync, err := c.store.ReplaceChecks(ctx, userID, wordIDs)
	if err != nil {
		return domain.CheckSync{}, err
	}
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
	return sync, nil
}

func (c *WordCache) QuizStats(ctx context.Context) ([]domain.WordStat, error) {
	return c.store.QuizStats(ctx)
}

func (c *WordCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
