package scoring

import "cie-scoring-service/internal/domain"

// ActivityScore normalizes a student's filled rubric scores to the activity's total marks.
// Ungraded rubrics contribute nothing to the sum but keep their 5 points in the denominator.
func ActivityScore(totalMarks float64, rubricCount int, filled domain.ScoreSum) domain.ActivityScore {
	if rubricCount == 0 {
		return domain.ActivityScore{TotalMarks: totalMarks}
	}
	return domain.ActivityScore{
		Score:         normalize(filled.Sum, rubricCount, totalMarks),
		TotalMarks:    totalMarks,
		RubricsFilled: filled.Count,
		TotalRubrics:  rubricCount,
	}
}

func normalize(sum, rubricCount int, totalMarks float64) float64 {
	maxRubricScore := float64(rubricCount * MaxRubricPoints)
	return Round2(float64(sum) / maxRubricScore * totalMarks)
}
