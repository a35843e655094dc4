package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/sync/errgroup"

	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/metrics"
)

// DefaultBatchSize bounds how many students are aggregated concurrently.
const DefaultBatchSize = 50

// RecomputeReport summarizes one recomputation for callers and logs.
type RecomputeReport struct {
	SubjectID  string        `json:"subjectId"`
	Requested  int           `json:"requested"`
	Recomputed int           `json:"recomputed"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"durationNs"`
}

// studentOutcome is the per-task result of a batch: either result or err is set.
type studentOutcome struct {
	studentID string
	result    domain.SubjectFinal
	err       error
}

// Recomputer is the single writer of FinalSubjectResult rows.
type Recomputer struct {
	engine    *Engine
	results   ResultWriter
	batchSize int
	now       func() time.Time
}

func NewRecomputer(engine *Engine, results ResultWriter, batchSize int) *Recomputer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recomputer{engine: engine, results: results, batchSize: batchSize, now: time.Now}
}

// RecomputeSubjectResults re-derives and persists the subject results of the given students.
// Students are aggregated concurrently in fixed-size batches; a student whose
// aggregation fails is logged and left out, the others are still persisted in
// one unordered bulk upsert. Concurrent calls for the same subject are not
// serialized: the last upsert to land wins.
func (r *Recomputer) RecomputeSubjectResults(ctx context.Context, subjectID string, studentIDs []string) (RecomputeReport, error) {
	start := r.now()
	report := RecomputeReport{SubjectID: subjectID, Requested: len(studentIDs)}
	if len(studentIDs) == 0 {
		return report, nil
	}

	catalog, err := r.engine.loadSubjectCatalog(ctx, subjectID)
	if err != nil {
		return report, err
	}

	upserts := make([]domain.FinalSubjectResult, 0, len(studentIDs))
	for lo := 0; lo < len(studentIDs); lo += r.batchSize {
		hi := min(lo+r.batchSize, len(studentIDs))
		for _, outcome := range r.runBatch(ctx, catalog, studentIDs[lo:hi]) {
			if outcome.err != nil {
				report.Failed++
				metrics.RecomputeFailuresTotal.WithLabelValues("compute").Inc()
				logger.Error.Printf("Recompute subject %s student %s failed: %v", subjectID, outcome.studentID, outcome.err)
				continue
			}
			upserts = append(upserts, domain.FinalSubjectResult{
				SubjectID:    subjectID,
				StudentID:    outcome.studentID,
				RawTotal:     outcome.result.RawTotal,
				MaxPossible:  outcome.result.MaxPossible,
				FinalOutOf15: outcome.result.FinalOutOf15,
				Breakdown:    outcome.result.Breakdown,
			})
		}
	}

	if len(upserts) > 0 {
		written, err := r.results.UpsertResults(ctx, upserts)
		report.Recomputed = written
		if failed := len(upserts) - written; failed > 0 {
			report.Failed += failed
			metrics.RecomputeFailuresTotal.WithLabelValues("persist").Add(float64(failed))
		}
		if err != nil {
			logger.Error.Printf("Persisting results for subject %s: %d of %d rows failed: %v",
				subjectID, len(upserts)-written, len(upserts), err)
		}
		for _, u := range upserts {
			metrics.FinalScoreHistogram.Observe(u.FinalOutOf15)
		}
	}

	report.Duration = r.now().Sub(start)
	metrics.RecomputedResultsTotal.Add(float64(report.Recomputed))
	metrics.RecomputeDuration.Observe(report.Duration.Seconds())
	logger.Info.Printf("Subject results recomputed: subject=%s requested=%d recomputed=%d failed=%d duration=%s",
		subjectID, report.Requested, report.Recomputed, report.Failed, report.Duration)

	return report, nil
}

// runBatch aggregates every student of a batch concurrently and returns the
// outcomes in batch order. Task failures are captured, never propagated, so
// one student cannot cancel its siblings.
func (r *Recomputer) runBatch(ctx context.Context, catalog subjectCatalog, batch []string) []studentOutcome {
	outcomes := make([]studentOutcome, len(batch))
	var g errgroup.Group
	g.SetLimit(r.batchSize)
	for i, studentID := range batch {
		g.Go(func() error {
			outcomes[i] = r.computeOne(ctx, catalog, studentID)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Recomputer) computeOne(ctx context.Context, catalog subjectCatalog, studentID string) (out studentOutcome) {
	out.studentID = studentID
	defer func() {
		if p := recover(); p != nil {
			out.err = fmt.Errorf("panic: %v", p)
		}
	}()
	out.result, out.err = r.engine.finalFor(ctx, catalog, studentID)
	return out
}
