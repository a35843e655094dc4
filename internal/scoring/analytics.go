package scoring

import "cie-scoring-service/internal/domain"

// RubricAverages reports the class mean per rubric, keeping rubric order.
// A rubric nobody was graded on reports 0 with 0 responses.
func RubricAverages(rubrics []domain.Rubric, stats map[string]domain.RubricStat) []domain.RubricAverage {
	out := make([]domain.RubricAverage, 0, len(rubrics))
	for _, rubric := range rubrics {
		avg := domain.RubricAverage{RubricID: rubric.ID, RubricName: rubric.Name}
		if stat, ok := stats[rubric.ID]; ok && stat.Count > 0 {
			avg.AvgScore = Round2(float64(stat.Sum) / float64(stat.Count))
			avg.TotalResponses = stat.Count
		}
		out = append(out, avg)
	}
	return out
}

// distributionUpperBound closes the last band so a perfect 15 is counted.
const distributionUpperBound = 15.01

// Distribute buckets final results into [0,3) [3,6) [6,9) [9,12) [12,15].
// Values outside the scale are ignored.
func Distribute(finals []float64) domain.Distribution {
	var d domain.Distribution
	for _, v := range finals {
		switch {
		case v < 0 || v >= distributionUpperBound:
			continue
		case v < 3:
			d.Band0to3++
		case v < 6:
			d.Band3to6++
		case v < 9:
			d.Band6to9++
		case v < 12:
			d.Band9to12++
		default:
			d.Band12to15++
		}
	}
	return d
}
