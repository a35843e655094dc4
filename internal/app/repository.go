package app

import (
	"context"

	"cie-scoring-service/internal/domain"
)

// CatalogReader reads subjects, activities and their rubrics.
type CatalogReader interface {
	GetSubject(ctx context.Context, subjectID string) (domain.Subject, error)
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
	// ListActivities returns the subject's activities in subject order.
	ListActivities(ctx context.Context, subjectID string) ([]domain.Activity, error)
	// ListRubrics returns the activity's rubrics by ascending order.
	ListRubrics(ctx context.Context, activityID string) ([]domain.Rubric, error)
	GetRubric(ctx context.Context, rubricID string) (domain.Rubric, error)
	// CountRubrics returns rubric counts for many activities in one lookup.
	// Activities without rubrics may be absent from the map.
	CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error)
}

// ScoreReader reads graded rubric scores.
type ScoreReader interface {
	// SumScores returns the student's filled-score sum per activity in one lookup.
	SumScores(ctx context.Context, studentID string, activityIDs []string) (map[string]domain.ScoreSum, error)
	// RubricStats returns class-wide sum and count per rubric of an activity.
	RubricStats(ctx context.Context, activityID string) (map[string]domain.RubricStat, error)
	ListScores(ctx context.Context, activityID string) ([]domain.Score, error)
	CountRubricScores(ctx context.Context, rubricID string) (int, error)
}

// RosterReader reads class rosters.
type RosterReader interface {
	GetStudent(ctx context.Context, studentID string) (domain.Student, error)
	// ListStudents returns the class+year roster ordered by roll number.
	ListStudents(ctx context.Context, classID, academicYearID string) ([]domain.Student, error)
}

// ResultReader reads cached subject results as they are.
type ResultReader interface {
	FinalScores(ctx context.Context, subjectID string) ([]float64, error)
	// ListResults returns the subject's results ordered by student roll number.
	ListResults(ctx context.Context, subjectID string) ([]domain.FinalSubjectResult, error)
}

// ResultWriter persists subject results. Only Recomputer calls it.
type ResultWriter interface {
	// UpsertResults writes every row keyed by (subject, student) without ordering:
	// a failing row must not prevent the others. It returns the rows written and
	// a joined error describing the rows that were not.
	UpsertResults(ctx context.Context, results []domain.FinalSubjectResult) (int, error)
}

// GradebookWriter mutates activities, rubrics and scores.
type GradebookWriter interface {
	CreateActivity(ctx context.Context, activity domain.Activity) error
	UpdateActivity(ctx context.Context, activity domain.Activity) error
	// DeleteActivity removes the activity with its rubrics and scores and
	// reports how many scores were removed.
	DeleteActivity(ctx context.Context, activityID string) (int, error)
	CreateRubric(ctx context.Context, rubric domain.Rubric) error
	SetRubricsLocked(ctx context.Context, activityID string, locked bool) error
	// DeleteRubric removes the rubric with its scores and reports how many scores were removed.
	DeleteRubric(ctx context.Context, rubricID string) (int, error)
	// UpsertScores writes scores keyed by (activity, student, rubric).
	UpsertScores(ctx context.Context, scores []domain.Score) (int, error)
}

// Store is the full persistence surface a backend provides.
type Store interface {
	CatalogReader
	ScoreReader
	RosterReader
	ResultReader
	ResultWriter
	GradebookWriter
}

// CatalogInvalidator drops cached catalog data for an activity after a rubric change.
type CatalogInvalidator interface {
	InvalidateActivity(ctx context.Context, activityID string) error
}

// Notifier is told about every completed recomputation.
type Notifier interface {
	Notify(ctx context.Context, event domain.ResultsRecomputed) error
}
