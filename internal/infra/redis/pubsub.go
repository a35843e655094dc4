package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
)

const resultsChannelPrefix = "cie:results:"

var _ app.Notifier = (*Publisher)(nil)

// Publisher announces recomputations on PUBLISH cie:results:{subjectID}.
// Subjects no instance watches (see FeedStore) are not published.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Notify(ctx context.Context, event domain.ResultsRecomputed) error {
	watched, err := p.client.Exists(ctx, feedKey(event.SubjectID)).Result()
	if err != nil {
		return fmt.Errorf("check watchers: %w", err)
	}
	if watched == 0 {
		logger.Debug.Printf("No watchers for subject %s, skipping publish", event.SubjectID)
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, resultsChannelPrefix+event.SubjectID, payload).Err()
}

// Relay forwards every published recomputation to a local notifier, so
// subscribers on this instance see recomputations made by any instance.
type Relay struct {
	client *redis.Client
	next   app.Notifier
}

func NewRelay(client *redis.Client, next app.Notifier) *Relay {
	return &Relay{client: client, next: next}
}

// Run blocks until ctx is done. ready, when not nil, is closed once the
// subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.PSubscribe(ctx, resultsChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe results: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.ResultsRecomputed
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Error.Printf("Relay: bad payload on %s: %v", msg.Channel, err)
				continue
			}
			if event.SubjectID == "" {
				event.SubjectID = strings.TrimPrefix(msg.Channel, resultsChannelPrefix)
			}
			if err := r.next.Notify(ctx, event); err != nil {
				logger.Error.Printf("Relay: notify subject %s: %v", event.SubjectID, err)
			}
		}
	}
}
