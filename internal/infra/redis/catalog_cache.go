package redis

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"cie-scoring-service/internal/app"
)

var (
	_ app.CatalogReader      = (*CatalogCache)(nil)
	_ app.CatalogInvalidator = (*CatalogCache)(nil)
)

// CatalogCache caches rubric counts in Redis and falls back to the wrapped reader on miss.
// Counts are stored as: SET cie:activity:{activityID}:rubrics {count}
// Each activity also has a generation key, INCR'd on invalidation; a load
// writes back only under WATCH of the generations it started from.
// Every other catalog read goes straight to the wrapped reader.
type CatalogCache struct {
	app.CatalogReader

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalogCache(client *redis.Client, next app.CatalogReader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		CatalogReader: next,
		client:        client,
		ttl:           ttl,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error) {
	if len(activityIDs) == 0 {
		return map[string]int{}, nil
	}
	counts, missing, gens := c.lookup(ctx, activityIDs)
	if len(missing) == 0 {
		return counts, nil
	}

	// callers that started after an invalidation never join an older load
	sort.Strings(missing)
	flight := make([]string, len(missing))
	for i, id := range missing {
		flight[i] = id + "@" + gens[id]
	}
	loaded, err, _ := c.sf.Do(strings.Join(flight, ","), func() (interface{}, error) {
		fresh, err := c.CatalogReader.CountRubrics(ctx, missing)
		if err != nil {
			return nil, err
		}
		// best-effort: a failed or aborted write only costs another miss
		_ = c.store(ctx, missing, gens, fresh)
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
// bumps its generation so loads still in flight are not written back.
func (c *CatalogCache) InvalidateActivity(ctx context.Context, activityID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(activityID))
		pipe.Del(ctx, c.key(activityID))
		return nil
	})
	return err
}

// lookup reads every cached count and generation in one MGET. A Redis error
// degrades to a full miss.
func (c *CatalogCache) lookup(ctx context.Context, activityIDs []string) (map[string]int, []string, map[string]string) {
	counts := make(map[string]int, len(activityIDs))
	gens := make(map[string]string)
	half := len(activityIDs)
	keys := make([]string, 0, 2*half)
	for _, id := range activityIDs {
		keys = append(keys, c.key(id))
	}
	for _, id := range activityIDs {
		keys = append(keys, c.genKey(id))
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return counts, append([]string(nil), activityIDs...), gens
	}
	var missing []string
	for i, id := range activityIDs {
		if n, ok := parseCount(values[i]); ok {
			counts[id] = n
			continue
		}
		missing = append(missing, id)
		gens[id], _ = values[half+i].(string)
	}
	return counts, missing, gens
}

// store writes fresh counts for the activities whose generation is still
// the one observed before loading. The SETs run in MULTI under WATCH, so an
// invalidation landing in between aborts them.
func (c *CatalogCache) store(ctx context.Context, ids []string, gens map[string]string, fresh map[string]int) error {
	genKeys := make([]string, len(ids))
	for i, id := range ids {
		genKeys[i] = c.genKey(id)
	}
	ttl := c.ttlWithJitter()

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.MGet(ctx, genKeys...).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				if g, _ := current[i].(string); g != gens[id] {
					continue
				}
				pipe.Set(ctx, c.key(id), fresh[id], ttl)
			}
			return nil
		})
		return err
	}, genKeys...)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func parseCount(v interface{}) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (c *CatalogCache) key(activityID string) string {
	return "cie:activity:" + activityID + ":rubrics"
}

func (c *CatalogCache) genKey(activityID string) string {
	return "cie:activity:" + activityID + ":rubrics:gen"
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
