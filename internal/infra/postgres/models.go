package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"cie-scoring-service/internal/domain"
)

type subjectModel struct {
	bun.BaseModel `bun:"table:subjects"`

	ID             string `bun:"id,pk"`
	Name           string `bun:"name"`
	Code           string `bun:"code"`
	ClassID        string `bun:"class_id"`
	AcademicYearID string `bun:"academic_year_id"`
}

type studentModel struct {
	bun.BaseModel `bun:"table:students"`

	ID             string `bun:"id,pk"`
	RollNo         string `bun:"roll_no"`
	Name           string `bun:"name"`
	ClassID        string `bun:"class_id"`
	AcademicYearID string `bun:"academic_year_id"`
}

type activityModel struct {
	bun.BaseModel `bun:"table:activities"`

	ID           string    `bun:"id,pk"`
	SubjectID    string    `bun:"subject_id"`
	Name         string    `bun:"name"`
	ActivityType string    `bun:"activity_type"`
	TotalMarks   float64   `bun:"total_marks"`
	Status       string    `bun:"status"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rubricModel struct {
	bun.BaseModel `bun:"table:rubrics"`

	ID         string   `bun:"id,pk"`
	ActivityID string   `bun:"activity_id"`
	Name       string   `bun:"name"`
	Order      int      `bun:"sort_order"`
	Scale      []string `bun:"scale,array"`
	Locked     bool     `bun:"locked"`
}

type scoreModel struct {
	bun.BaseModel `bun:"table:rubric_scores"`

	ActivityID string    `bun:"activity_id,pk"`
	StudentID  string    `bun:"student_id,pk"`
	RubricID   string    `bun:"rubric_id,pk"`
	Score      int       `bun:"score"`
	GradedBy   string    `bun:"graded_by"`
	UpdatedAt  time.Time `bun:"updated_at"`
}

type resultModel struct {
	bun.BaseModel `bun:"table:final_subject_results"`

	SubjectID    string                  `bun:"subject_id,pk"`
	StudentID    string                  `bun:"student_id,pk"`
	RawTotal     float64                 `bun:"raw_total"`
	MaxPossible  float64                 `bun:"max_possible"`
	FinalOutOf15 float64                 `bun:"final_out_of_15"`
	Breakdown    []domain.BreakdownEntry `bun:"breakdown,type:jsonb"`
	UpdatedAt    time.Time               `bun:"updated_at"`
}

func toActivityModel(a domain.Activity) activityModel {
	return activityModel{
		ID:           a.ID,
		SubjectID:    a.SubjectID,
		Name:         a.Name,
		ActivityType: a.ActivityType,
		TotalMarks:   a.TotalMarks,
		Status:       string(a.Status),
	}
}

func toRubricModel(r domain.Rubric) rubricModel {
	return rubricModel{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		Name:       r.Name,
		Order:      r.Order,
		Scale:      r.Scale[:],
		Locked:     r.Locked,
	}
}

func toScale(levels []string) domain.Scale {
	var s domain.Scale
	copy(s[:], levels)
	return s
}

func toResultModel(r domain.FinalSubjectResult, now time.Time) resultModel {
	breakdown := r.Breakdown
	if breakdown == nil {
		breakdown = []domain.BreakdownEntry{}
	}
	return resultModel{
		SubjectID:    r.SubjectID,
		StudentID:    r.StudentID,
		RawTotal:     r.RawTotal,
		MaxPossible:  r.MaxPossible,
		FinalOutOf15: r.FinalOutOf15,
		Breakdown:    breakdown,
		UpdatedAt:    now,
	}
}
