package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/infra/memory"
)

const testSubject = "sub-1"

type fixture struct {
	store      *memory.Store
	engine     *app.Engine
	recomputer *app.Recomputer
	listener   *app.InvalidationListener
	gradebook  *app.Gradebook
	notifier   *recordingNotifier
}

// newFixture seeds one subject and n students with roll numbers 001..n.
func newFixture(t *testing.T, students int) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddSubject(domain.Subject{ID: testSubject, Name: "Physics", Code: "PHY", ClassID: "class-1", AcademicYearID: "2024"})
	for i := 1; i <= students; i++ {
		store.AddStudent(studentN(i))
	}
	return wire(store, store)
}

func wire(store *memory.Store, scores app.ScoreReader) *fixture {
	engine := app.NewEngine(store, scores, store, store)
	recomputer := app.NewRecomputer(engine, store, app.DefaultBatchSize)
	notifier := &recordingNotifier{}
	listener := app.NewInvalidationListener(store, store, recomputer, notifier)
	return &fixture{
		store:      store,
		engine:     engine,
		recomputer: recomputer,
		listener:   listener,
		gradebook:  app.NewGradebook(store, store, listener, nil),
		notifier:   notifier,
	}
}

func studentN(i int) domain.Student {
	return domain.Student{
		ID:             studentID(i),
		RollNo:         fmt.Sprintf("%03d", i),
		Name:           fmt.Sprintf("Student %d", i),
		ClassID:        "class-1",
		AcademicYearID: "2024",
	}
}

func studentID(i int) string {
	return fmt.Sprintf("stu-%d", i)
}

// addActivity creates a draft activity with the given number of rubrics.
func (f *fixture) addActivity(t *testing.T, name string, totalMarks float64, rubrics int) (domain.Activity, []string) {
	t.Helper()
	ctx := context.Background()
	activity, err := f.gradebook.CreateActivity(ctx, app.NewActivity{
		SubjectID:    testSubject,
		Name:         name,
		ActivityType: "lab",
		TotalMarks:   totalMarks,
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	ids := make([]string, rubrics)
	for i := range ids {
		r, err := f.gradebook.AddRubric(ctx, activity.ID, fmt.Sprintf("%s rubric %d", name, i+1), domain.Scale{}, nil)
		if err != nil {
			t.Fatalf("add rubric: %v", err)
		}
		ids[i] = r.ID
	}
	return activity, ids
}

// grade saves one student's scores, one value per rubric in order.
func (f *fixture) grade(t *testing.T, activityID, studentID string, rubricIDs []string, values ...int) app.SaveReport {
	t.Helper()
	entries := make([]domain.ScoreEntry, len(values))
	for i, v := range values {
		entries[i] = domain.ScoreEntry{StudentID: studentID, RubricID: rubricIDs[i], Value: v}
	}
	report, err := f.gradebook.SaveScores(context.Background(), activityID, "faculty-1", entries)
	if err != nil {
		t.Fatalf("save scores: %v", err)
	}
	return report
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ResultsRecomputed
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.ResultsRecomputed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) all() []domain.ResultsRecomputed {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.ResultsRecomputed(nil), n.events...)
}
