package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateScores checks a grading submission before it reaches the store.
func ValidateScores(entries []ScoreEntry) error {
	for i := range entries {
		if err := validate.Struct(entries[i]); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && verrs[0].Field() == "Value" {
				return fmt.Errorf("entry %d (student %s, rubric %s): %w",
					i, entries[i].StudentID, entries[i].RubricID, ErrInvalidScoreValue)
			}
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}
