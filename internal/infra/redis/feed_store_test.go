package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestFeedStoreMarksAndClearsWatchedSubject(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewFeedStore(newClient(mr), time.Minute)
	_ = store.GetOrCreate("subject-1")
	if ok, _ := mr.SIsMember("cie:feed:subject-1", store.instance); !ok {
		t.Fatalf("expected instance to be marked as watching")
	}

	store.DeleteIfIdle("subject-1")
	if mr.Exists("cie:feed:subject-1") {
		t.Fatalf("expected watcher set to be removed")
	}
}

func TestFeedStoreKeepsOtherInstancesWatching(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	a := NewFeedStore(newClient(mr), time.Minute)
	b := NewFeedStore(newClient(mr), time.Minute)
	a.GetOrCreate("subject-1")
	b.GetOrCreate("subject-1")

	a.DeleteIfIdle("subject-1")
	members, err := mr.Members("cie:feed:subject-1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0] != b.instance {
		t.Fatalf("expected only the second instance left, got %v", members)
	}
}

func TestFeedStoreRefreshExtendsExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewFeedStore(newClient(mr), time.Minute)
	store.GetOrCreate("subject-1")

	mr.FastForward(45 * time.Second)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(45 * time.Second)
	if !mr.Exists("cie:feed:subject-1") {
		t.Fatalf("expected refreshed watcher set to survive")
	}

	store.DeleteIfIdle("subject-1")
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if mr.Exists("cie:feed:subject-1") {
		t.Fatalf("idle subject must not be re-marked")
	}
}

func TestFeedStoreWatchExpiresWithoutRefresh(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewFeedStore(newClient(mr), time.Minute)
	store.GetOrCreate("subject-1")
	mr.FastForward(2 * time.Minute)
	if mr.Exists("cie:feed:subject-1") {
		t.Fatalf("expected watcher set to expire")
	}
}
