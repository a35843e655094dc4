package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
)

func TestCatalogCacheCachesRubricCounts(t *testing.T) {
	store := seededStore(t)
	counting := &countingCatalog{CatalogReader: store}
	cache := NewCatalogCache(counting, time.Minute)
	ctx := context.Background()

	counts, err := cache.CountRubrics(ctx, []string{"act-1"})
	if err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if counts["act-1"] != 2 {
		t.Fatalf("expected 2 rubrics, got %d", counts["act-1"])
	}
	if counting.calls != 1 {
		t.Fatalf("expected loader once, got %d", counting.calls)
	}

	if _, err := cache.CountRubrics(ctx, []string{"act-1"}); err != nil {
		t.Fatalf("count rubrics 2: %v", err)
	}
	if counting.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", counting.calls)
	}
}

func TestCatalogCacheInvalidateActivity(t *testing.T) {
	store := seededStore(t)
	counting := &countingCatalog{CatalogReader: store}
	cache := NewCatalogCache(counting, time.Minute)
	ctx := context.Background()

	if _, err := cache.CountRubrics(ctx, []string{"act-1"}); err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if err := store.CreateRubric(ctx, domain.Rubric{ID: "r3", ActivityID: "act-1", Order: 2}); err != nil {
		t.Fatalf("create rubric: %v", err)
	}
	if err := cache.InvalidateActivity(ctx, "act-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	counts, err := cache.CountRubrics(ctx, []string{"act-1"})
	if err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if counts["act-1"] != 3 {
		t.Fatalf("expected 3 rubrics after invalidation, got %d", counts["act-1"])
	}
	if counting.calls != 2 {
		t.Fatalf("expected reload after invalidation, loader calls %d", counting.calls)
	}
}

func TestCatalogCacheExpires(t *testing.T) {
	store := seededStore(t)
	counting := &countingCatalog{CatalogReader: store}
	cache := NewCatalogCache(counting, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	if _, err := cache.CountRubrics(ctx, []string{"act-1"}); err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.CountRubrics(ctx, []string{"act-1"}); err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if counting.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", counting.calls)
	}
}

func TestCatalogCacheDiscardsLoadRacingInvalidation(t *testing.T) {
	store := seededStore(t)
	slow := newStallingCatalog(store)
	cache := NewCatalogCache(slow, time.Minute)
	ctx := context.Background()

	stale := make(chan int, 1)
	go func() {
		counts, err := cache.CountRubrics(ctx, []string{"act-1"})
		if err != nil {
			t.Errorf("in-flight count: %v", err)
		}
		stale <- counts["act-1"]
	}()
	<-slow.loaded

	// a forced rubric delete lands while the first load is still in flight
	if _, err := store.DeleteRubric(ctx, "r2"); err != nil {
		t.Fatalf("delete rubric: %v", err)
	}
	if err := cache.InvalidateActivity(ctx, "act-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	counts, err := cache.CountRubrics(ctx, []string{"act-1"})
	if err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if counts["act-1"] != 1 {
		t.Fatalf("expected a fresh load of 1 rubric, got %d", counts["act-1"])
	}

	close(slow.release)
	if got := <-stale; got != 2 {
		t.Fatalf("expected the in-flight load to see 2 rubrics, got %d", got)
	}

	counts, err = cache.CountRubrics(ctx, []string{"act-1"})
	if err != nil {
		t.Fatalf("count rubrics: %v", err)
	}
	if counts["act-1"] != 1 {
		t.Fatalf("stale count cached after invalidation: got %d", counts["act-1"])
	}
}

// stallingCatalog holds its first CountRubrics after reading the store
// until release is closed.
type stallingCatalog struct {
	app.CatalogReader
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newStallingCatalog(next app.CatalogReader) *stallingCatalog {
	return &stallingCatalog{CatalogReader: next, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (c *stallingCatalog) CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error) {
	counts, err := c.CatalogReader.CountRubrics(ctx, activityIDs)
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.loaded)
		<-c.release
	}
	return counts, err
}

type countingCatalog struct {
	app.CatalogReader
	calls int
}

func (c *countingCatalog) CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error) {
	c.calls++
	return c.CatalogReader.CountRubrics(ctx, activityIDs)
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	store.AddSubject(domain.Subject{ID: "sub-1", Name: "Physics", ClassID: "class-1", AcademicYearID: "2024"})
	store.AddStudent(domain.Student{ID: "stu-2", RollNo: "02", Name: "Bea", ClassID: "class-1", AcademicYearID: "2024"})
	store.AddStudent(domain.Student{ID: "stu-1", RollNo: "01", Name: "Ann", ClassID: "class-1", AcademicYearID: "2024"})
	store.AddStudent(domain.Student{ID: "stu-9", RollNo: "01", Name: "Other", ClassID: "class-2", AcademicYearID: "2024"})

	if err := store.CreateActivity(ctx, domain.Activity{ID: "act-1", SubjectID: "sub-1", Name: "Lab", TotalMarks: 10, Status: domain.StatusDraft}); err != nil {
		t.Fatalf("create activity: %v", err)
	}
	for i, id := range []string{"r1", "r2"} {
		if err := store.CreateRubric(ctx, domain.Rubric{ID: id, ActivityID: "act-1", Name: id, Order: i, Scale: domain.DefaultScale}); err != nil {
			t.Fatalf("create rubric: %v", err)
		}
	}
	return store
}
