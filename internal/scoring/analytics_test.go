package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cie-scoring-service/internal/domain"
)

func TestRubricAverages(t *testing.T) {
	rubrics := []domain.Rubric{
		{ID: "r1", Name: "Content", Order: 0},
		{ID: "r2", Name: "Delivery", Order: 1},
		{ID: "r3", Name: "Q&A", Order: 2},
	}
	stats := map[string]domain.RubricStat{
		"r1": {Sum: 9, Count: 2},
		"r3": {Sum: 5, Count: 3},
	}

	got := RubricAverages(rubrics, stats)

	assert.Equal(t, []domain.RubricAverage{
		{RubricID: "r1", RubricName: "Content", AvgScore: 4.5, TotalResponses: 2},
		{RubricID: "r2", RubricName: "Delivery", AvgScore: 0, TotalResponses: 0},
		{RubricID: "r3", RubricName: "Q&A", AvgScore: 1.67, TotalResponses: 3},
	}, got)
}

func TestRubricAveragesNoRubrics(t *testing.T) {
	got := RubricAverages(nil, map[string]domain.RubricStat{"stray": {Sum: 3, Count: 1}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDistributeBoundaries(t *testing.T) {
	got := Distribute([]float64{0, 2.99, 3, 5.5, 6, 8.99, 9, 11.99, 12, 14.5, 15, 15.5, -1})

	assert.Equal(t, domain.Distribution{
		Band0to3:   2,
		Band3to6:   2,
		Band6to9:   2,
		Band9to12:  2,
		Band12to15: 3,
	}, got)
}

func TestDistributeEmpty(t *testing.T) {
	assert.Equal(t, domain.Distribution{}, Distribute(nil))
}
