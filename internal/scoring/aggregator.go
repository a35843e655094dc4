package scoring

import "cie-scoring-service/internal/domain"

// SubjectFinal folds a student's activity scores into a result out of FinalCeiling.
// activities must be in subject order; rubricCounts and sums are keyed by activity id.
// Activities without rubrics are skipped so they do not deflate MaxPossible.
func SubjectFinal(activities []domain.Activity, rubricCounts map[string]int, sums map[string]domain.ScoreSum) domain.SubjectFinal {
	out := domain.SubjectFinal{Breakdown: []domain.BreakdownEntry{}}

	for _, activity := range activities {
		rubricCount := rubricCounts[activity.ID]
		if rubricCount == 0 {
			continue
		}

		actScore := normalize(sums[activity.ID].Sum, rubricCount, activity.TotalMarks)
		out.RawTotal += actScore
		out.MaxPossible += activity.TotalMarks
		out.Breakdown = append(out.Breakdown, domain.BreakdownEntry{
			ActivityID:   activity.ID,
			ActivityName: activity.Name,
			Score:        actScore,
			TotalMarks:   activity.TotalMarks,
		})
	}

	if out.MaxPossible > 0 {
		out.FinalOutOf15 = Round2(out.RawTotal / out.MaxPossible * FinalCeiling)
	}
	return out
}
