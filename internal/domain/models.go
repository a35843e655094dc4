package domain

import "time"

// ActivityStatus is the grading lifecycle of an activity.
type ActivityStatus string

const (
	StatusDraft     ActivityStatus = "draft"
	StatusSubmitted ActivityStatus = "submitted"
	StatusLocked    ActivityStatus = "locked"
)

// Subject groups activities for one class in one academic year.
type Subject struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	ClassID        string `json:"classId"`
	AcademicYearID string `json:"academicYearId"`
}

// Student belongs to exactly one class roster per academic year.
type Student struct {
	ID             string `json:"id"`
	RollNo         string `json:"rollNo"`
	Name           string `json:"name"`
	ClassID        string `json:"classId"`
	AcademicYearID string `json:"academicYearId"`
}

// Activity is a gradable event (presentation, viva, lab) worth TotalMarks.
type Activity struct {
	ID           string         `json:"id"`
	SubjectID    string         `json:"subjectId"`
	Name         string         `json:"name"`
	ActivityType string         `json:"activityType"`
	TotalMarks   float64        `json:"totalMarks"`
	Status       ActivityStatus `json:"status"`
}

// IsLocked reports whether marks and scores are frozen.
func (a Activity) IsLocked() bool {
	return a.Status == StatusLocked
}

// ScaleLevels is the number of descriptive levels on every rubric.
const ScaleLevels = 5

// Scale holds the descriptions for levels 1..5; index 0 is level 1.
type Scale [ScaleLevels]string

// DefaultScale is applied when a rubric is created without descriptions.
var DefaultScale = Scale{"Poor", "Below Average", "Average", "Good", "Excellent"}

// Rubric is one graded criterion of an activity.
type Rubric struct {
	ID         string `json:"id"`
	ActivityID string `json:"activityId"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
	Scale      Scale  `json:"scale"`
	Locked     bool   `json:"locked"`
}

// Score is one student's 1..5 grade on one rubric of one activity.
type Score struct {
	ActivityID string    `json:"activityId"`
	StudentID  string    `json:"studentId"`
	RubricID   string    `json:"rubricId"`
	Value      int       `json:"score"`
	GradedBy   string    `json:"gradedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ScoreEntry is a single cell of a bulk grading submission.
type ScoreEntry struct {
	StudentID string `json:"studentId" validate:"required"`
	RubricID  string `json:"rubricId" validate:"required"`
	Value     int    `json:"score" validate:"min=1,max=5"`
}

// ScoreSum is the filled-score aggregate of one student on one activity.
type ScoreSum struct {
	Sum   int
	Count int
}

// RubricStat is the class-wide aggregate of one rubric.
type RubricStat struct {
	Sum   int
	Count int
}

// ActivityScore is the normalized result of one student on one activity.
type ActivityScore struct {
	Score         float64 `json:"score"`
	TotalMarks    float64 `json:"totalMarks"`
	RubricsFilled int     `json:"rubricsFilled"`
	TotalRubrics  int     `json:"totalRubrics"`
}

// BreakdownEntry snapshots one activity's contribution to a subject result.
type BreakdownEntry struct {
	ActivityID   string  `json:"activity"`
	ActivityName string  `json:"activityName"`
	Score        float64 `json:"score"`
	TotalMarks   float64 `json:"totalMarks"`
}

// SubjectFinal is the computed (not yet persisted) subject result.
type SubjectFinal struct {
	RawTotal     float64          `json:"rawTotal"`
	MaxPossible  float64          `json:"maxPossible"`
	FinalOutOf15 float64          `json:"finalOutOf15"`
	Breakdown    []BreakdownEntry `json:"breakdown"`
}

// FinalSubjectResult is the cached subject result of one student.
// It is fully derivable from activities, rubrics and scores.
type FinalSubjectResult struct {
	SubjectID    string           `json:"subject"`
	StudentID    string           `json:"student"`
	RawTotal     float64          `json:"rawTotal"`
	MaxPossible  float64          `json:"maxPossible"`
	FinalOutOf15 float64          `json:"finalOutOf15"`
	Breakdown    []BreakdownEntry `json:"activityBreakdown"`
}

// RubricAverage is the class mean of one rubric.
type RubricAverage struct {
	RubricID       string  `json:"rubricId"`
	RubricName     string  `json:"rubricName"`
	AvgScore       float64 `json:"avgScore"`
	TotalResponses int     `json:"totalResponses"`
}

// Distribution counts final results per 3-point band of the 15 scale.
type Distribution struct {
	Band0to3   int `json:"0-3"`
	Band3to6   int `json:"3-6"`
	Band6to9   int `json:"6-9"`
	Band9to12  int `json:"9-12"`
	Band12to15 int `json:"12-15"`
}

// GridCell is one rubric column of a grading grid row; Score is nil when ungraded.
type GridCell struct {
	RubricID   string `json:"rubricId"`
	RubricName string `json:"rubricName"`
	Score      *int   `json:"score"`
}

// GridRow is one student row of a grading grid.
type GridRow struct {
	Student       Student    `json:"student"`
	RubricScores  []GridCell `json:"rubricScores"`
	ActivityScore float64    `json:"activityScore"`
}

// ActivityGrid is the full grading view of an activity.
type ActivityGrid struct {
	Activity Activity  `json:"activity"`
	Rubrics  []Rubric  `json:"rubrics"`
	Rows     []GridRow `json:"grid"`
}
