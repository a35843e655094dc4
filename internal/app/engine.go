package app

import (
	"context"
	"fmt"

	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/scoring"
)

// Engine computes activity and subject scores and the read-only analytics.
type Engine struct {
	catalog CatalogReader
	scores  ScoreReader
	roster  RosterReader
	results ResultReader
}

func NewEngine(catalog CatalogReader, scores ScoreReader, roster RosterReader, results ResultReader) *Engine {
	return &Engine{catalog: catalog, scores: scores, roster: roster, results: results}
}

// subjectCatalog is the student-independent input of a subject aggregation.
type subjectCatalog struct {
	activities   []domain.Activity
	activityIDs  []string
	rubricCounts map[string]int
}

// ComputeActivityScore normalizes one student's rubric scores on one activity.
func (e *Engine) ComputeActivityScore(ctx context.Context, activityID, studentID string) (domain.ActivityScore, error) {
	activity, err := e.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return domain.ActivityScore{}, err
	}
	if _, err := e.roster.GetStudent(ctx, studentID); err != nil {
		return domain.ActivityScore{}, err
	}

	counts, err := e.catalog.CountRubrics(ctx, []string{activityID})
	if err != nil {
		return domain.ActivityScore{}, fmt.Errorf("count rubrics: %w", err)
	}
	rubricCount := counts[activityID]
	if rubricCount == 0 {
		return scoring.ActivityScore(activity.TotalMarks, 0, domain.ScoreSum{}), nil
	}

	sums, err := e.scores.SumScores(ctx, studentID, []string{activityID})
	if err != nil {
		return domain.ActivityScore{}, fmt.Errorf("sum scores: %w", err)
	}
	return scoring.ActivityScore(activity.TotalMarks, rubricCount, sums[activityID]), nil
}

// ComputeSubjectFinal aggregates one student's result across every activity of a subject.
func (e *Engine) ComputeSubjectFinal(ctx context.Context, subjectID, studentID string) (domain.SubjectFinal, error) {
	if _, err := e.roster.GetStudent(ctx, studentID); err != nil {
		return domain.SubjectFinal{}, err
	}
	catalog, err := e.loadSubjectCatalog(ctx, subjectID)
	if err != nil {
		return domain.SubjectFinal{}, err
	}
	return e.finalFor(ctx, catalog, studentID)
}

// loadSubjectCatalog performs the two student-independent lookups of an aggregation.
func (e *Engine) loadSubjectCatalog(ctx context.Context, subjectID string) (subjectCatalog, error) {
	if _, err := e.catalog.GetSubject(ctx, subjectID); err != nil {
		return subjectCatalog{}, err
	}
	activities, err := e.catalog.ListActivities(ctx, subjectID)
	if err != nil {
		return subjectCatalog{}, fmt.Errorf("list activities: %w", err)
	}
	catalog := subjectCatalog{activities: activities, rubricCounts: map[string]int{}}
	if len(activities) == 0 {
		return catalog, nil
	}

	catalog.activityIDs = make([]string, len(activities))
	for i, a := range activities {
		catalog.activityIDs[i] = a.ID
	}
	catalog.rubricCounts, err = e.catalog.CountRubrics(ctx, catalog.activityIDs)
	if err != nil {
		return subjectCatalog{}, fmt.Errorf("count rubrics: %w", err)
	}
	return catalog, nil
}

// finalFor is the per-student part of an aggregation: a single batched score lookup.
func (e *Engine) finalFor(ctx context.Context, catalog subjectCatalog, studentID string) (domain.SubjectFinal, error) {
	if len(catalog.activityIDs) == 0 {
		return scoring.SubjectFinal(nil, nil, nil), nil
	}
	sums, err := e.scores.SumScores(ctx, studentID, catalog.activityIDs)
	if err != nil {
		return domain.SubjectFinal{}, fmt.Errorf("sum scores for student %s: %w", studentID, err)
	}
	return scoring.SubjectFinal(catalog.activities, catalog.rubricCounts, sums), nil
}

// GetRubricAverages reports the class mean of every rubric of an activity, in rubric order.
func (e *Engine) GetRubricAverages(ctx context.Context, activityID string) ([]domain.RubricAverage, error) {
	if _, err := e.catalog.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	rubrics, err := e.catalog.ListRubrics(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list rubrics: %w", err)
	}
	if len(rubrics) == 0 {
		return []domain.RubricAverage{}, nil
	}
	stats, err := e.scores.RubricStats(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("rubric stats: %w", err)
	}
	return scoring.RubricAverages(rubrics, stats), nil
}

// GetScoreDistribution buckets the cached results of a subject. It never recomputes.
func (e *Engine) GetScoreDistribution(ctx context.Context, subjectID string) (domain.Distribution, error) {
	if _, err := e.catalog.GetSubject(ctx, subjectID); err != nil {
		return domain.Distribution{}, err
	}
	finals, err := e.results.FinalScores(ctx, subjectID)
	if err != nil {
		return domain.Distribution{}, fmt.Errorf("final scores: %w", err)
	}
	return scoring.Distribute(finals), nil
}

// ListFinalResults returns the cached results of a subject by roll number.
func (e *Engine) ListFinalResults(ctx context.Context, subjectID string) ([]domain.FinalSubjectResult, error) {
	if _, err := e.catalog.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return e.results.ListResults(ctx, subjectID)
}

// ActivityGrid builds the grading grid: every roster student with their rubric
// scores (nil when ungraded) and current activity score.
func (e *Engine) ActivityGrid(ctx context.Context, activityID string) (domain.ActivityGrid, error) {
	activity, err := e.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return domain.ActivityGrid{}, err
	}
	subject, err := e.catalog.GetSubject(ctx, activity.SubjectID)
	if err != nil {
		return domain.ActivityGrid{}, err
	}
	rubrics, err := e.catalog.ListRubrics(ctx, activityID)
	if err != nil {
		return domain.ActivityGrid{}, fmt.Errorf("list rubrics: %w", err)
	}
	students, err := e.roster.ListStudents(ctx, subject.ClassID, subject.AcademicYearID)
	if err != nil {
		return domain.ActivityGrid{}, fmt.Errorf("list students: %w", err)
	}
	scores, err := e.scores.ListScores(ctx, activityID)
	if err != nil {
		return domain.ActivityGrid{}, fmt.Errorf("list scores: %w", err)
	}

	byStudent := make(map[string]map[string]int, len(students))
	for _, s := range scores {
		if byStudent[s.StudentID] == nil {
			byStudent[s.StudentID] = make(map[string]int)
		}
		byStudent[s.StudentID][s.RubricID] = s.Value
	}

	rows := make([]domain.GridRow, 0, len(students))
	for _, student := range students {
		cells := make([]domain.GridCell, 0, len(rubrics))
		var filled domain.ScoreSum
		for _, rubric := range rubrics {
			cell := domain.GridCell{RubricID: rubric.ID, RubricName: rubric.Name}
			if v, ok := byStudent[student.ID][rubric.ID]; ok {
				cell.Score = &v
				filled.Sum += v
				filled.Count++
			}
			cells = append(cells, cell)
		}
		rows = append(rows, domain.GridRow{
			Student:       student,
			RubricScores:  cells,
			ActivityScore: scoring.ActivityScore(activity.TotalMarks, len(rubrics), filled).Score,
		})
	}

	return domain.ActivityGrid{Activity: activity, Rubrics: rubrics, Rows: rows}, nil
}
