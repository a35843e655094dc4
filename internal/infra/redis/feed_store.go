package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/app"
)

var _ app.FeedRepository = (*FeedStore)(nil)

// FeedStore is a Redis-aware implementation of app.FeedRepository.
// Feeds and their subscribers stay in process. Redis keeps, per subject,
// the set of instances with live watchers:
//
//	SADD cie:feed:{subjectID} {instanceID}
//
// Publisher skips subjects whose set does not exist. The set expires unless
// some instance refreshes it, so a crashed instance cannot keep a subject
// watched forever.
type FeedStore struct {
	client   *redis.Client
	ttl      time.Duration
	instance string

	mu    sync.RWMutex
	feeds map[string]*app.Feed
}

func NewFeedStore(client *redis.Client, ttl time.Duration) *FeedStore {
	return &FeedStore{
		client:   client,
		ttl:      ttl,
		instance: uuid.NewString(),
		feeds:    make(map[string]*app.Feed),
	}
}

func (s *FeedStore) GetOrCreate(subjectID string) *app.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[subjectID]; ok {
		return feed
	}
	feed := app.NewFeed(subjectID)
	s.feeds[subjectID] = feed
	if err := s.mark(context.Background(), subjectID); err != nil {
		logger.Error.Printf("mark feed %s watched: %v", subjectID, err)
	}
	return feed
}

func (s *FeedStore) Get(subjectID string) (*app.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[subjectID]
	return feed, ok
}

func (s *FeedStore) DeleteIfIdle(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[subjectID]
	if !ok {
		return
	}
	if feed.IsIdle() {
		delete(s.feeds, subjectID)
		_ = s.client.SRem(context.Background(), feedKey(subjectID), s.instance).Err()
	}
}

// Refresh re-marks every subject this instance still serves and extends
// the expiry of its set.
func (s *FeedStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	subjects := make([]string, 0, len(s.feeds))
	for id := range s.feeds {
		subjects = append(subjects, id)
	}
	s.mu.RUnlock()
	if len(subjects) == 0 {
		return nil
	}

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range subjects {
			pipe.SAdd(ctx, feedKey(id), s.instance)
			pipe.Expire(ctx, feedKey(id), s.ttl)
		}
		return nil
	})
	return err
}

// Run refreshes the watched subjects every interval until ctx is done.
func (s *FeedStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				logger.Error.Printf("refresh watched feeds: %v", err)
			}
		}
	}
}

func (s *FeedStore) mark(ctx context.Context, subjectID string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, feedKey(subjectID), s.instance)
		pipe.Expire(ctx, feedKey(subjectID), s.ttl)
		return nil
	})
	return err
}

func feedKey(subjectID string) string {
	return "cie:feed:" + subjectID
}
