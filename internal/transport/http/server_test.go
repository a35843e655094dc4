package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/infra/memory"
)

type testServer struct {
	*httptest.Server
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.AddSubject(domain.Subject{ID: "sub-1", Name: "Physics", ClassID: "class-1", AcademicYearID: "2024"})
	for i := 1; i <= 3; i++ {
		store.AddStudent(domain.Student{
			ID:             fmt.Sprintf("stu-%d", i),
			RollNo:         fmt.Sprintf("%02d", i),
			Name:           fmt.Sprintf("Student %d", i),
			ClassID:        "class-1",
			AcademicYearID: "2024",
		})
	}

	catalog := memory.NewCatalogCache(store, time.Minute)
	engine := app.NewEngine(catalog, store, store, store)
	recomputer := app.NewRecomputer(engine, store, app.DefaultBatchSize)
	feed := app.NewResultFeed(memory.NewFeedStore())
	listener := app.NewInvalidationListener(catalog, store, recomputer, feed)
	gradebook := app.NewGradebook(store, catalog, listener, catalog)

	mux := http.NewServeMux()
	NewAPI(engine, gradebook).Register(mux)
	mux.HandleFunc("/ws/results", NewFeedHandler(engine, feed).ServeWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store}
}

// call sends a JSON request and decodes the response into out when not nil.
func (s *testServer) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// setupActivity creates an activity with rubrics through the API.
func (s *testServer) setupActivity(t *testing.T, totalMarks float64, rubrics ...string) (domain.Activity, []domain.Rubric) {
	t.Helper()
	var activity domain.Activity
	status := s.call(t, http.MethodPost, "/api/activities", app.NewActivity{
		SubjectID: "sub-1", Name: "Lab", ActivityType: "lab", TotalMarks: totalMarks,
	}, &activity)
	if status != http.StatusCreated {
		t.Fatalf("create activity: status %d", status)
	}
	out := make([]domain.Rubric, 0, len(rubrics))
	for _, name := range rubrics {
		var rubric domain.Rubric
		status := s.call(t, http.MethodPost, "/api/activities/"+activity.ID+"/rubrics", map[string]any{"name": name}, &rubric)
		if status != http.StatusCreated {
			t.Fatalf("add rubric: status %d", status)
		}
		out = append(out, rubric)
	}
	return activity, out
}
