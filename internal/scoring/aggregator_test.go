package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cie-scoring-service/internal/domain"
)

func TestSubjectFinalSkipsActivitiesWithoutRubrics(t *testing.T) {
	activities := []domain.Activity{
		{ID: "a", Name: "CIE-1", TotalMarks: 10},
		{ID: "b", Name: "CIE-2", TotalMarks: 10},
	}
	counts := map[string]int{"a": 2}
	sums := map[string]domain.ScoreSum{"a": {Sum: 10, Count: 2}}

	got := SubjectFinal(activities, counts, sums)

	assert.Equal(t, 10.0, got.RawTotal)
	assert.Equal(t, 10.0, got.MaxPossible)
	assert.Equal(t, 15.0, got.FinalOutOf15)
	require.Len(t, got.Breakdown, 1)
	assert.Equal(t, domain.BreakdownEntry{ActivityID: "a", ActivityName: "CIE-1", Score: 10, TotalMarks: 10}, got.Breakdown[0])
}

func TestSubjectFinalEmptySubject(t *testing.T) {
	got := SubjectFinal(nil, nil, nil)

	assert.Equal(t, 0.0, got.RawTotal)
	assert.Equal(t, 0.0, got.MaxPossible)
	assert.Equal(t, 0.0, got.FinalOutOf15)
	assert.NotNil(t, got.Breakdown)
	assert.Empty(t, got.Breakdown)

	onlyEmpty := SubjectFinal([]domain.Activity{{ID: "x", TotalMarks: 20}}, map[string]int{}, nil)
	assert.Equal(t, domain.SubjectFinal{Breakdown: []domain.BreakdownEntry{}}, onlyEmpty)
}

func TestSubjectFinalKeepsActivityOrderAndWeights(t *testing.T) {
	activities := []domain.Activity{
		{ID: "viva", Name: "Viva", TotalMarks: 5},
		{ID: "ppt", Name: "PPT", TotalMarks: 10},
		{ID: "lab", Name: "Lab", TotalMarks: 20},
	}
	counts := map[string]int{"viva": 1, "ppt": 3, "lab": 4}
	sums := map[string]domain.ScoreSum{
		"viva": {Sum: 5, Count: 1},
		"ppt":  {Sum: 7, Count: 3},
		// lab ungraded
	}

	got := SubjectFinal(activities, counts, sums)

	require.Len(t, got.Breakdown, 3)
	assert.Equal(t, "viva", got.Breakdown[0].ActivityID)
	assert.Equal(t, "ppt", got.Breakdown[1].ActivityID)
	assert.Equal(t, "lab", got.Breakdown[2].ActivityID)
	assert.Equal(t, 4.67, got.Breakdown[1].Score)
	assert.Equal(t, 0.0, got.Breakdown[2].Score)
	assert.Equal(t, 35.0, got.MaxPossible)
	assert.InDelta(t, 9.67, got.RawTotal, 1e-9)
	// 9.67 / 35 * 15 = 4.1442...
	assert.Equal(t, 4.14, got.FinalOutOf15)
}

func TestSubjectFinalIsDeterministic(t *testing.T) {
	activities := []domain.Activity{{ID: "a", TotalMarks: 7}, {ID: "b", TotalMarks: 13}}
	counts := map[string]int{"a": 3, "b": 6}
	sums := map[string]domain.ScoreSum{"a": {Sum: 11, Count: 3}, "b": {Sum: 17, Count: 5}}

	first := SubjectFinal(activities, counts, sums)
	second := SubjectFinal(activities, counts, sums)
	assert.Equal(t, first, second)
}
