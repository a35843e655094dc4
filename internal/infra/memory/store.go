package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
)

var _ app.Store = (*Store)(nil)

type scoreKey struct {
	activityID, studentID, rubricID string
}

type resultKey struct {
	subjectID, studentID string
}

// Store is an in-memory implementation of app.Store (useful for tests/demos).
type Store struct {
	mu sync.RWMutex

	subjects   map[string]domain.Subject
	students   map[string]domain.Student
	activities map[string]domain.Activity
	// subjectActivities keeps activity ids in creation order per subject.
	subjectActivities map[string][]string
	rubrics           map[string]domain.Rubric
	scores            map[scoreKey]domain.Score
	results           map[resultKey]domain.FinalSubjectResult
}

func NewStore() *Store {
	return &Store{
		subjects:          make(map[string]domain.Subject),
		students:          make(map[string]domain.Student),
		activities:        make(map[string]domain.Activity),
		subjectActivities: make(map[string][]string),
		rubrics:           make(map[string]domain.Rubric),
		scores:            make(map[scoreKey]domain.Score),
		results:           make(map[resultKey]domain.FinalSubjectResult),
	}
}

// AddSubject seeds a subject.
func (s *Store) AddSubject(subject domain.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
}

// AddStudent seeds a student.
func (s *Store) AddStudent(student domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
}

func (s *Store) GetSubject(_ context.Context, subjectID string) (domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return domain.Subject{}, fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, subjectID)
	}
	return subject, nil
}

func (s *Store) GetActivity(_ context.Context, activityID string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[activityID]
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, activityID)
	}
	return activity, nil
}

func (s *Store) ListActivities(_ context.Context, subjectID string) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.subjectActivities[subjectID]
	out := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.activities[id])
	}
	return out, nil
}

func (s *Store) ListRubrics(_ context.Context, activityID string) ([]domain.Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rubric, 0)
	for _, r := range s.rubrics {
		if r.ActivityID == activityID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetRubric(_ context.Context, rubricID string) (domain.Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rubric, ok := s.rubrics[rubricID]
	if !ok {
		return domain.Rubric{}, fmt.Errorf("%w: %s", domain.ErrRubricNotFound, rubricID)
	}
	return rubric, nil
}

func (s *Store) CountRubrics(_ context.Context, activityIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(activityIDs)
	counts := make(map[string]int, len(activityIDs))
	for _, r := range s.rubrics {
		if _, ok := wanted[r.ActivityID]; ok {
			counts[r.ActivityID]++
		}
	}
	return counts, nil
}

func (s *Store) SumScores(_ context.Context, studentID string, activityIDs []string) (map[string]domain.ScoreSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(activityIDs)
	sums := make(map[string]domain.ScoreSum, len(activityIDs))
	for k, score := range s.scores {
		if k.studentID != studentID {
			continue
		}
		if _, ok := wanted[k.activityID]; !ok {
			continue
		}
		sum := sums[k.activityID]
		sum.Sum += score.Value
		sum.Count++
		sums[k.activityID] = sum
	}
	return sums, nil
}

func (s *Store) RubricStats(_ context.Context, activityID string) (map[string]domain.RubricStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := make(map[string]domain.RubricStat)
	for k, score := range s.scores {
		if k.activityID != activityID {
			continue
		}
		stat := stats[k.rubricID]
		stat.Sum += score.Value
		stat.Count++
		stats[k.rubricID] = stat
	}
	return stats, nil
}

func (s *Store) ListScores(_ context.Context, activityID string) ([]domain.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Score, 0)
	for k, score := range s.scores {
		if k.activityID == activityID {
			out = append(out, score)
		}
	}
	return out, nil
}

func (s *Store) CountRubricScores(_ context.Context, rubricID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.scores {
		if k.rubricID == rubricID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetStudent(_ context.Context, studentID string) (domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[studentID]
	if !ok {
		return domain.Student{}, fmt.Errorf("%w: %s", domain.ErrStudentNotFound, studentID)
	}
	return student, nil
}

func (s *Store) ListStudents(_ context.Context, classID, academicYearID string) ([]domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Student, 0)
	for _, st := range s.students {
		if st.ClassID == classID && st.AcademicYearID == academicYearID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RollNo != out[j].RollNo {
			return out[i].RollNo < out[j].RollNo
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) FinalScores(_ context.Context, subjectID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, 0)
	for k, r := range s.results {
		if k.subjectID == subjectID {
			out = append(out, r.FinalOutOf15)
		}
	}
	return out, nil
}

func (s *Store) ListResults(_ context.Context, subjectID string) ([]domain.FinalSubjectResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FinalSubjectResult, 0)
	for k, r := range s.results {
		if k.subjectID == subjectID {
			out = append(out, cloneResult(r))
		}
	}
	// roll number, then student id, as the Postgres store orders them
	sort.Slice(out, func(i, j int) bool {
		ri, rj := s.students[out[i].StudentID].RollNo, s.students[out[j].StudentID].RollNo
		if ri != rj {
			return ri < rj
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

// Result returns a copy of one cached result.
func (s *Store) Result(subjectID, studentID string) (domain.FinalSubjectResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultKey{subjectID, studentID}]
	return cloneResult(r), ok
}

func (s *Store) UpsertResults(_ context.Context, results []domain.FinalSubjectResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.results[resultKey{r.SubjectID, r.StudentID}] = cloneResult(r)
	}
	return len(results), nil
}

func (s *Store) CreateActivity(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[activity.SubjectID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, activity.SubjectID)
	}
	if _, exists := s.activities[activity.ID]; exists {
		return fmt.Errorf("activity %s already exists", activity.ID)
	}
	s.activities[activity.ID] = activity
	s.subjectActivities[activity.SubjectID] = append(s.subjectActivities[activity.SubjectID], activity.ID)
	return nil
}

func (s *Store) UpdateActivity(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.activities[activity.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrActivityNotFound, activity.ID)
	}
	activity.SubjectID = current.SubjectID
	s.activities[activity.ID] = activity
	return nil
}

func (s *Store) DeleteActivity(_ context.Context, activityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[activityID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, activityID)
	}

	removed := 0
	for k := range s.scores {
		if k.activityID == activityID {
			delete(s.scores, k)
			removed++
		}
	}
	for id, r := range s.rubrics {
		if r.ActivityID == activityID {
			delete(s.rubrics, id)
		}
	}
	delete(s.activities, activityID)

	ids := s.subjectActivities[activity.SubjectID]
	kept := ids[:0]
	for _, id := range ids {
		if id != activityID {
			kept = append(kept, id)
		}
	}
	s.subjectActivities[activity.SubjectID] = kept
	return removed, nil
}

func (s *Store) CreateRubric(_ context.Context, rubric domain.Rubric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[rubric.ActivityID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrActivityNotFound, rubric.ActivityID)
	}
	s.rubrics[rubric.ID] = rubric
	return nil
}

func (s *Store) SetRubricsLocked(_ context.Context, activityID string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rubrics {
		if r.ActivityID == activityID {
			r.Locked = locked
			s.rubrics[id] = r
		}
	}
	return nil
}

func (s *Store) DeleteRubric(_ context.Context, rubricID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rubrics[rubricID]; !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrRubricNotFound, rubricID)
	}
	removed := 0
	for k := range s.scores {
		if k.rubricID == rubricID {
			delete(s.scores, k)
			removed++
		}
	}
	delete(s.rubrics, rubricID)
	return removed, nil
}

func (s *Store) UpsertScores(_ context.Context, scores []domain.Score) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, score := range scores {
		s.scores[scoreKey{score.ActivityID, score.StudentID, score.RubricID}] = score
	}
	return len(scores), nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func cloneResult(r domain.FinalSubjectResult) domain.FinalSubjectResult {
	if r.Breakdown != nil {
		r.Breakdown = append([]domain.BreakdownEntry(nil), r.Breakdown...)
	}
	return r
}
