package domain

import "time"

// InvalidationReason names the mutation that made cached results stale.
type InvalidationReason string

const (
	ReasonScoresSaved       InvalidationReason = "scores_saved"
	ReasonTotalMarksChanged InvalidationReason = "total_marks_changed"
	ReasonActivityDeleted   InvalidationReason = "activity_deleted"
	ReasonRubricDeleted     InvalidationReason = "rubric_deleted"
	ReasonExplicit          InvalidationReason = "explicit"
)

// Invalidation is emitted by every mutation that can change subject results.
// A nil StudentIDs means the whole class roster of the subject.
type Invalidation struct {
	SubjectID      string
	StudentIDs     []string
	Reason         InvalidationReason
	ScoresAffected int
}

// ResultsRecomputed is published after a recomputation persisted rows.
type ResultsRecomputed struct {
	SubjectID  string             `json:"subjectId"`
	Reason     InvalidationReason `json:"reason"`
	StudentIDs []string           `json:"studentIds"`
	Recomputed int                `json:"recomputed"`
	Failed     int                `json:"failed"`
	At         time.Time          `json:"at"`
}
