package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/domain"
)

// Gradebook contains the mutations that affect scoring validity. Each one
// reports what it changed as an Invalidation; the listener decides the rest.
type Gradebook struct {
	catalog  CatalogReader
	scores   ScoreReader
	writer   GradebookWriter
	listener *InvalidationListener
	cache    CatalogInvalidator
	now      func() time.Time
}

func NewGradebook(store Store, catalog CatalogReader, listener *InvalidationListener, cache CatalogInvalidator) *Gradebook {
	return &Gradebook{
		catalog:  catalog,
		scores:   store,
		writer:   store,
		listener: listener,
		cache:    cache,
		now:      time.Now,
	}
}

// NewActivity is the input of CreateActivity.
type NewActivity struct {
	SubjectID    string  `json:"subjectId"`
	Name         string  `json:"name"`
	ActivityType string  `json:"activityType"`
	TotalMarks   float64 `json:"totalMarks"`
}

// SaveReport is the outcome of a bulk score save.
type SaveReport struct {
	Saved     int             `json:"saved"`
	Recompute RecomputeReport `json:"recompute"`
}

// CreateActivity registers a draft activity under a subject.
func (g *Gradebook) CreateActivity(ctx context.Context, in NewActivity) (domain.Activity, error) {
	if in.TotalMarks <= 0 {
		return domain.Activity{}, domain.ErrInvalidTotalMarks
	}
	if _, err := g.catalog.GetSubject(ctx, in.SubjectID); err != nil {
		return domain.Activity{}, err
	}
	activity := domain.Activity{
		ID:           uuid.NewString(),
		SubjectID:    in.SubjectID,
		Name:         in.Name,
		ActivityType: in.ActivityType,
		TotalMarks:   in.TotalMarks,
		Status:       domain.StatusDraft,
	}
	if err := g.writer.CreateActivity(ctx, activity); err != nil {
		return domain.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	return activity, nil
}

// AddRubric appends a rubric to a draft activity. A nil order appends at the end;
// a zero scale gets the default descriptions.
func (g *Gradebook) AddRubric(ctx context.Context, activityID, name string, scale domain.Scale, order *int) (domain.Rubric, error) {
	activity, err := g.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Rubric{}, err
	}
	if activity.Status != domain.StatusDraft {
		return domain.Rubric{}, domain.ErrActivityNotDraft
	}

	rubric := domain.Rubric{
		ID:         uuid.NewString(),
		ActivityID: activityID,
		Name:       name,
		Scale:      scale,
	}
	if rubric.Scale == (domain.Scale{}) {
		rubric.Scale = domain.DefaultScale
	}
	if order != nil {
		rubric.Order = *order
	} else {
		existing, err := g.catalog.ListRubrics(ctx, activityID)
		if err != nil {
			return domain.Rubric{}, fmt.Errorf("list rubrics: %w", err)
		}
		rubric.Order = len(existing)
	}

	if err := g.writer.CreateRubric(ctx, rubric); err != nil {
		return domain.Rubric{}, fmt.Errorf("create rubric: %w", err)
	}
	g.invalidateCatalog(ctx, activityID)
	return rubric, nil
}

// SaveScores upserts a grading submission and recomputes the students it touched.
func (g *Gradebook) SaveScores(ctx context.Context, activityID, gradedBy string, entries []domain.ScoreEntry) (SaveReport, error) {
	if err := domain.ValidateScores(entries); err != nil {
		return SaveReport{}, err
	}
	activity, err := g.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return SaveReport{}, err
	}
	if activity.IsLocked() {
		return SaveReport{}, domain.ErrActivityLocked
	}

	rubrics, err := g.catalog.ListRubrics(ctx, activityID)
	if err != nil {
		return SaveReport{}, fmt.Errorf("list rubrics: %w", err)
	}
	known := make(map[string]struct{}, len(rubrics))
	for _, r := range rubrics {
		known[r.ID] = struct{}{}
	}

	now := g.now().UTC()
	// a repeated (student, rubric) cell keeps its last value
	type cell struct{ student, rubric string }
	slot := make(map[cell]int, len(entries))
	scores := make([]domain.Score, 0, len(entries))
	studentIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := known[e.RubricID]; !ok {
			return SaveReport{}, fmt.Errorf("rubric %s on activity %s: %w", e.RubricID, activityID, domain.ErrRubricNotFound)
		}
		score := domain.Score{
			ActivityID: activityID,
			StudentID:  e.StudentID,
			RubricID:   e.RubricID,
			Value:      e.Value,
			GradedBy:   gradedBy,
			UpdatedAt:  now,
		}
		key := cell{e.StudentID, e.RubricID}
		if i, ok := slot[key]; ok {
			scores[i] = score
			continue
		}
		slot[key] = len(scores)
		scores = append(scores, score)
		studentIDs = append(studentIDs, e.StudentID)
	}

	saved, err := g.writer.UpsertScores(ctx, scores)
	if err != nil {
		return SaveReport{}, fmt.Errorf("upsert scores: %w", err)
	}
	logger.Info.Printf("Bulk scores saved: %d entries for activity %s", saved, activity.Name)

	report, err := g.listener.Handle(ctx, domain.Invalidation{
		SubjectID:  activity.SubjectID,
		StudentIDs: studentIDs,
		Reason:     domain.ReasonScoresSaved,
	})
	return SaveReport{Saved: saved, Recompute: report}, err
}

// UpdateTotalMarks changes an unlocked activity's ceiling and recomputes the roster.
func (g *Gradebook) UpdateTotalMarks(ctx context.Context, activityID string, totalMarks float64) (RecomputeReport, error) {
	if totalMarks <= 0 {
		return RecomputeReport{}, domain.ErrInvalidTotalMarks
	}
	activity, err := g.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return RecomputeReport{}, err
	}
	if activity.IsLocked() {
		return RecomputeReport{}, domain.ErrActivityLocked
	}
	if activity.TotalMarks == totalMarks {
		return RecomputeReport{SubjectID: activity.SubjectID}, nil
	}

	previous := activity.TotalMarks
	activity.TotalMarks = totalMarks
	if err := g.writer.UpdateActivity(ctx, activity); err != nil {
		return RecomputeReport{}, fmt.Errorf("update activity: %w", err)
	}
	logger.Info.Printf("TotalMarks of activity %s changed %v -> %v", activityID, previous, totalMarks)

	return g.listener.Handle(ctx, domain.Invalidation{
		SubjectID: activity.SubjectID,
		Reason:    domain.ReasonTotalMarksChanged,
	})
}

// DeleteActivity removes an unlocked activity with its rubrics and scores.
func (g *Gradebook) DeleteActivity(ctx context.Context, activityID string) (RecomputeReport, error) {
	activity, err := g.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return RecomputeReport{}, err
	}
	if activity.IsLocked() {
		return RecomputeReport{}, domain.ErrActivityLocked
	}

	removed, err := g.writer.DeleteActivity(ctx, activityID)
	if err != nil {
		return RecomputeReport{}, fmt.Errorf("delete activity: %w", err)
	}
	g.invalidateCatalog(ctx, activityID)
	logger.Info.Printf("Activity deleted: %s (%d scores cleaned)", activity.Name, removed)

	return g.listener.Handle(ctx, domain.Invalidation{
		SubjectID:      activity.SubjectID,
		Reason:         domain.ReasonActivityDeleted,
		ScoresAffected: removed,
	})
}

// DeleteRubric removes an unlocked rubric. When scores reference it the
// deletion needs force and returns *domain.ScoresExistError otherwise.
func (g *Gradebook) DeleteRubric(ctx context.Context, rubricID string, force bool) (RecomputeReport, error) {
	rubric, err := g.catalog.GetRubric(ctx, rubricID)
	if err != nil {
		return RecomputeReport{}, err
	}
	if rubric.Locked {
		return RecomputeReport{}, domain.ErrRubricLocked
	}
	activity, err := g.catalog.GetActivity(ctx, rubric.ActivityID)
	if err != nil {
		return RecomputeReport{}, err
	}

	count, err := g.scores.CountRubricScores(ctx, rubricID)
	if err != nil {
		return RecomputeReport{}, fmt.Errorf("count rubric scores: %w", err)
	}
	if count > 0 && !force {
		return RecomputeReport{}, &domain.ScoresExistError{RubricID: rubricID, Count: count}
	}

	removed, err := g.writer.DeleteRubric(ctx, rubricID)
	if err != nil {
		return RecomputeReport{}, fmt.Errorf("delete rubric: %w", err)
	}
	g.invalidateCatalog(ctx, rubric.ActivityID)
	if removed > 0 {
		logger.Info.Printf("Scores deleted during rubric removal: rubric=%s scores=%d", rubricID, removed)
	}

	return g.listener.Handle(ctx, domain.Invalidation{
		SubjectID:      activity.SubjectID,
		Reason:         domain.ReasonRubricDeleted,
		ScoresAffected: removed,
	})
}

// SubmitActivity marks an activity submitted and locks its rubrics.
func (g *Gradebook) SubmitActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return g.transition(ctx, activityID, domain.StatusSubmitted, true)
}

// LockActivity freezes an activity's marks and scores.
func (g *Gradebook) LockActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return g.transition(ctx, activityID, domain.StatusLocked, true)
}

// UnlockActivity returns an activity to draft and unlocks its rubrics.
func (g *Gradebook) UnlockActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return g.transition(ctx, activityID, domain.StatusDraft, false)
}

func (g *Gradebook) transition(ctx context.Context, activityID string, status domain.ActivityStatus, lockRubrics bool) (domain.Activity, error) {
	activity, err := g.catalog.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, err
	}
	activity.Status = status
	if err := g.writer.UpdateActivity(ctx, activity); err != nil {
		return domain.Activity{}, fmt.Errorf("update activity: %w", err)
	}
	if err := g.writer.SetRubricsLocked(ctx, activityID, lockRubrics); err != nil {
		return domain.Activity{}, fmt.Errorf("set rubric locks: %w", err)
	}
	logger.Info.Printf("Activity %s is now %s", activity.Name, status)
	return activity, nil
}

// RecomputeSubject forces a recomputation of the subject's whole roster.
func (g *Gradebook) RecomputeSubject(ctx context.Context, subjectID string) (RecomputeReport, error) {
	if _, err := g.catalog.GetSubject(ctx, subjectID); err != nil {
		return RecomputeReport{}, err
	}
	return g.listener.Handle(ctx, domain.Invalidation{
		SubjectID: subjectID,
		Reason:    domain.ReasonExplicit,
	})
}

func (g *Gradebook) invalidateCatalog(ctx context.Context, activityID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.InvalidateActivity(ctx, activityID); err != nil {
		logger.Error.Printf("Invalidate catalog cache for activity %s: %v", activityID, err)
	}
}
