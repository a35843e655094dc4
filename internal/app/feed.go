package app

import (
	"context"
	"sync"

	"cie-scoring-service/internal/domain"
)

// FeedRepository abstracts where per-subject result feeds live (in-memory, Redis, etc).
type FeedRepository interface {
	GetOrCreate(subjectID string) *Feed
	Get(subjectID string) (*Feed, bool)
	DeleteIfIdle(subjectID string)
}

// ResultFeed fans recomputation events out to live subscribers of a subject.
type ResultFeed struct {
	feeds FeedRepository
}

func NewResultFeed(feeds FeedRepository) *ResultFeed {
	return &ResultFeed{feeds: feeds}
}

// Notify implements Notifier. Subjects nobody watches are ignored.
func (f *ResultFeed) Notify(_ context.Context, event domain.ResultsRecomputed) error {
	feed, ok := f.feeds.Get(event.SubjectID)
	if !ok {
		return nil
	}
	feed.publish(event)
	return nil
}

// Subscribe returns a channel of recomputation events for a subject.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ResultFeed) Subscribe(_ context.Context, subjectID string) (<-chan domain.ResultsRecomputed, func()) {
	feed := f.feeds.GetOrCreate(subjectID)
	ch, cancel := feed.subscribe()
	return ch, func() {
		cancel()
		f.feeds.DeleteIfIdle(subjectID)
	}
}

// Feed holds the subscribers of one subject and the last event they missed.
type Feed struct {
	subjectID   string
	mu          sync.Mutex
	last        *domain.ResultsRecomputed
	subscribers map[chan domain.ResultsRecomputed]struct{}
}

// NewFeed is exported for infrastructure layers that keep feeds.
func NewFeed(subjectID string) *Feed {
	return &Feed{
		subjectID:   subjectID,
		subscribers: make(map[chan domain.ResultsRecomputed]struct{}),
	}
}

// IsIdle reports whether the feed has no subscribers.
func (f *Feed) IsIdle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) == 0
}

func (f *Feed) subscribe() (<-chan domain.ResultsRecomputed, func()) {
	ch := make(chan domain.ResultsRecomputed, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *Feed) publish(event domain.ResultsRecomputed) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = &event
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// slow subscriber: drop its oldest event
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
