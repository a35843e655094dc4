package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrSubjectNotFound is returned when a subject id does not resolve.
	ErrSubjectNotFound = fmt.Errorf("subject %w", ErrNotFound)
	// ErrActivityNotFound is returned when an activity id does not resolve.
	ErrActivityNotFound = fmt.Errorf("activity %w", ErrNotFound)
	// ErrRubricNotFound is returned when a rubric id does not resolve or belongs to another activity.
	ErrRubricNotFound = fmt.Errorf("rubric %w", ErrNotFound)
	// ErrStudentNotFound is returned when a student id does not resolve.
	ErrStudentNotFound = fmt.Errorf("student %w", ErrNotFound)

	// ErrInvalidScoreValue rejects scores outside 1..5 at the write boundary.
	ErrInvalidScoreValue = errors.New("score must be an integer between 1 and 5")
	// ErrInvalidTotalMarks rejects non-positive activity totals.
	ErrInvalidTotalMarks = errors.New("total marks must be positive")
	// ErrActivityLocked is returned for edits to a locked activity.
	ErrActivityLocked = errors.New("activity is locked")
	// ErrActivityNotDraft is returned when rubrics are added outside draft.
	ErrActivityNotDraft = errors.New("rubrics can only be added to draft activities")
	// ErrRubricLocked is returned for edits to a locked rubric.
	ErrRubricLocked = errors.New("rubric is locked")
)

// ScoresExistError refuses an unforced rubric deletion that would drop scores.
type ScoresExistError struct {
	RubricID string
	Count    int
}

func (e *ScoresExistError) Error() string {
	return fmt.Sprintf("%d scores exist for rubric %s; force deletion to confirm", e.Count, e.RubricID)
}
