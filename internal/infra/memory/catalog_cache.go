package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cie-scoring-service/internal/app"
)

var (
	_ app.CatalogReader      = (*CatalogCache)(nil)
	_ app.CatalogInvalidator = (*CatalogCache)(nil)
)

// CatalogCache caches rubric counts with TTL to avoid repeated DB hits.
// Every other catalog read goes straight to the wrapped reader.
type CatalogCache struct {
	app.CatalogReader

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCount
	// gen is bumped by every invalidation; a load only caches counts whose
	// generation did not move while it ran.
	gen map[string]uint64
}

type cachedCount struct {
	count     int
	expiresAt time.Time
}

func NewCatalogCache(next app.CatalogReader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		CatalogReader: next,
		ttl:           ttl,
		clock:         time.Now,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:         make(map[string]cachedCount),
		gen:           make(map[string]uint64),
	}
}

func (c *CatalogCache) CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error) {
	counts, missing, gens := c.lookup(activityIDs)
	if len(missing) == 0 {
		return counts, nil
	}

	// callers that started after an invalidation never join an older load
	sort.Strings(missing)
	flight := make([]string, len(missing))
	for i, id := range missing {
		flight[i] = id + "@" + strconv.FormatUint(gens[id], 10)
	}
	loaded, err, _ := c.sf.Do(strings.Join(flight, ","), func() (interface{}, error) {
		fresh, err := c.CatalogReader.CountRubrics(ctx, missing)
		if err != nil {
			return nil, err
		}
		expiresAt := c.clock().Add(c.ttlWithJitter())
		c.mu.Lock()
		for _, id := range missing {
			if c.gen[id] != gens[id] {
				continue
			}
			c.cache[id] = cachedCount{count: fresh[id], expiresAt: expiresAt}
		}
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		counts[id] = loaded.(map[string]int)[id]
	}
	return counts, nil
}

// InvalidateActivity drops the cached rubric count of one activity and
// discards any load of it still in flight.
func (c *CatalogCache) InvalidateActivity(_ context.Context, activityID string) error {
	c.mu.Lock()
	delete(c.cache, activityID)
	c.gen[activityID]++
	c.mu.Unlock()
	return nil
}

func (c *CatalogCache) lookup(activityIDs []string) (map[string]int, []string, map[string]uint64) {
	now := c.clock()
	counts := make(map[string]int, len(activityIDs))
	gens := make(map[string]uint64)
	var missing []string

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range activityIDs {
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			counts[id] = entry.count
			continue
		}
		missing = append(missing, id)
		gens[id] = c.gen[id]
	}
	return counts, missing, gens
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
