package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/metrics"
)

// InvalidationListener owns the policy of when and for whom results are recomputed.
// Mutation paths only describe what changed.
type InvalidationListener struct {
	catalog    CatalogReader
	roster     RosterReader
	recomputer *Recomputer
	notifiers  []Notifier
	now        func() time.Time
}

func NewInvalidationListener(catalog CatalogReader, roster RosterReader, recomputer *Recomputer, notifiers ...Notifier) *InvalidationListener {
	return &InvalidationListener{
		catalog:    catalog,
		roster:     roster,
		recomputer: recomputer,
		notifiers:  notifiers,
		now:        time.Now,
	}
}

// ShouldRecompute decides whether an invalidation can change any cached result.
func ShouldRecompute(inv domain.Invalidation) bool {
	switch inv.Reason {
	case domain.ReasonScoresSaved:
		return len(inv.StudentIDs) > 0
	case domain.ReasonActivityDeleted, domain.ReasonRubricDeleted:
		return inv.ScoresAffected > 0
	case domain.ReasonTotalMarksChanged, domain.ReasonExplicit:
		return true
	default:
		return false
	}
}

// Handle recomputes synchronously when the invalidation requires it and
// notifies subscribers. The returned report is zero-valued when skipped.
func (l *InvalidationListener) Handle(ctx context.Context, inv domain.Invalidation) (RecomputeReport, error) {
	if !ShouldRecompute(inv) {
		metrics.InvalidationsTotal.WithLabelValues(string(inv.Reason), "skipped").Inc()
		logger.Debug.Printf("Invalidation %s for subject %s needs no recompute", inv.Reason, inv.SubjectID)
		return RecomputeReport{SubjectID: inv.SubjectID}, nil
	}
	metrics.InvalidationsTotal.WithLabelValues(string(inv.Reason), "recompute").Inc()

	studentIDs, err := l.scope(ctx, inv)
	if err != nil {
		return RecomputeReport{SubjectID: inv.SubjectID}, err
	}
	logger.Info.Printf("Invalidation %s for subject %s: recomputing %d students", inv.Reason, inv.SubjectID, len(studentIDs))

	report, err := l.recomputer.RecomputeSubjectResults(ctx, inv.SubjectID, studentIDs)
	if err != nil {
		return report, err
	}

	event := domain.ResultsRecomputed{
		SubjectID:  inv.SubjectID,
		Reason:     inv.Reason,
		StudentIDs: studentIDs,
		Recomputed: report.Recomputed,
		Failed:     report.Failed,
		At:         l.now().UTC(),
	}
	for _, n := range l.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			logger.Error.Printf("Notify results recomputed for subject %s: %v", inv.SubjectID, err)
		}
	}
	return report, nil
}

// scope resolves the students an invalidation covers: the submitted students
// for a score save, the subject's class+year roster otherwise.
func (l *InvalidationListener) scope(ctx context.Context, inv domain.Invalidation) ([]string, error) {
	if inv.StudentIDs != nil {
		return dedupe(inv.StudentIDs), nil
	}
	subject, err := l.catalog.GetSubject(ctx, inv.SubjectID)
	if err != nil {
		return nil, err
	}
	students, err := l.roster.ListStudents(ctx, subject.ClassID, subject.AcademicYearID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids, nil
}

// dedupe keeps the first occurrence of every id, preserving order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
