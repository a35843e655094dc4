package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"cie-scoring-service/internal/domain"
)

type chanNotifier chan domain.ResultsRecomputed

func (c chanNotifier) Notify(_ context.Context, event domain.ResultsRecomputed) error {
	c <- event
	return nil
}

func TestPublisherReachesRelay(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chanNotifier, 1)
	relay := NewRelay(newClient(mr), received)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("relay stopped: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("relay never subscribed")
	}

	feeds := NewFeedStore(newClient(mr), time.Minute)
	feeds.GetOrCreate("subject-1")

	pub := NewPublisher(newClient(mr))
	// nobody watches subject-2, so its event never reaches the channel
	if err := pub.Notify(ctx, domain.ResultsRecomputed{SubjectID: "subject-2", Recomputed: 9}); err != nil {
		t.Fatalf("publish unwatched: %v", err)
	}
	sent := domain.ResultsRecomputed{
		SubjectID:  "subject-1",
		Reason:     domain.ReasonScoresSaved,
		StudentIDs: []string{"s1"},
		Recomputed: 1,
	}
	if err := pub.Notify(ctx, sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if got.SubjectID != "subject-1" || got.Recomputed != 1 || got.Reason != domain.ReasonScoresSaved {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for relayed event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("relay returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not stop")
	}
}
