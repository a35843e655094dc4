package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/domain"
)

var _ app.Store = (*Store)(nil)

// resultChunkSize bounds the rows of one bulk result upsert.
const resultChunkSize = 500

// Store reads through a pgx pool and writes through bun.
type Store struct {
	pool *pgxpool.Pool
	db   *bun.DB
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool, db *bun.DB) *Store {
	return &Store{pool: pool, db: db, now: time.Now}
}

// AddSubject upserts a subject. Subjects and rosters are owned upstream.
func (s *Store) AddSubject(ctx context.Context, subject domain.Subject) error {
	m := subjectModel{
		ID:             subject.ID,
		Name:           subject.Name,
		Code:           subject.Code,
		ClassID:        subject.ClassID,
		AcademicYearID: subject.AcademicYearID,
	}
	_, err := s.db.NewInsert().Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("code = EXCLUDED.code").
		Set("class_id = EXCLUDED.class_id").
		Set("academic_year_id = EXCLUDED.academic_year_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}

// AddStudent upserts a roster entry.
func (s *Store) AddStudent(ctx context.Context, student domain.Student) error {
	m := studentModel{
		ID:             student.ID,
		RollNo:         student.RollNo,
		Name:           student.Name,
		ClassID:        student.ClassID,
		AcademicYearID: student.AcademicYearID,
	}
	_, err := s.db.NewInsert().Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("roll_no = EXCLUDED.roll_no").
		Set("name = EXCLUDED.name").
		Set("class_id = EXCLUDED.class_id").
		Set("academic_year_id = EXCLUDED.academic_year_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

func (s *Store) GetSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	var sub domain.Subject
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, code, class_id, academic_year_id FROM subjects WHERE id=$1`, subjectID,
	).Scan(&sub.ID, &sub.Name, &sub.Code, &sub.ClassID, &sub.AcademicYearID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subject{}, fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, subjectID)
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("load subject: %w", err)
	}
	return sub, nil
}

func (s *Store) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	var a domain.Activity
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, name, activity_type, total_marks, status FROM activities WHERE id=$1`, activityID,
	).Scan(&a.ID, &a.SubjectID, &a.Name, &a.ActivityType, &a.TotalMarks, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Activity{}, fmt.Errorf("%w: %s", domain.ErrActivityNotFound, activityID)
	}
	if err != nil {
		return domain.Activity{}, fmt.Errorf("load activity: %w", err)
	}
	a.Status = domain.ActivityStatus(status)
	return a, nil
}

func (s *Store) ListActivities(ctx context.Context, subjectID string) ([]domain.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, name, activity_type, total_marks, status
		   FROM activities WHERE subject_id=$1 ORDER BY created_at, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		var status string
		if err := rows.Scan(&a.ID, &a.SubjectID, &a.Name, &a.ActivityType, &a.TotalMarks, &status); err != nil {
			return nil, err
		}
		a.Status = domain.ActivityStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListRubrics(ctx context.Context, activityID string) ([]domain.Rubric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, activity_id, name, sort_order, scale, locked
		   FROM rubrics WHERE activity_id=$1 ORDER BY sort_order, id`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Rubric, 0)
	for rows.Next() {
		r, err := scanRubric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRubric(ctx context.Context, rubricID string) (domain.Rubric, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, activity_id, name, sort_order, scale, locked FROM rubrics WHERE id=$1`, rubricID)
	r, err := scanRubric(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rubric{}, fmt.Errorf("%w: %s", domain.ErrRubricNotFound, rubricID)
	}
	if err != nil {
		return domain.Rubric{}, fmt.Errorf("load rubric: %w", err)
	}
	return r, nil
}

func scanRubric(row pgx.Row) (domain.Rubric, error) {
	var r domain.Rubric
	var scale []string
	if err := row.Scan(&r.ID, &r.ActivityID, &r.Name, &r.Order, &scale, &r.Locked); err != nil {
		return domain.Rubric{}, err
	}
	r.Scale = toScale(scale)
	return r, nil
}

func (s *Store) CountRubrics(ctx context.Context, activityIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(activityIDs))
	if len(activityIDs) == 0 {
		return counts, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT activity_id, count(*) FROM rubrics WHERE activity_id = ANY($1) GROUP BY activity_id`, activityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *Store) SumScores(ctx context.Context, studentID string, activityIDs []string) (map[string]domain.ScoreSum, error) {
	sums := make(map[string]domain.ScoreSum, len(activityIDs))
	if len(activityIDs) == 0 {
		return sums, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT activity_id, sum(score), count(*)
		   FROM rubric_scores
		  WHERE student_id=$1 AND activity_id = ANY($2)
		  GROUP BY activity_id`, studentID, activityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var sum domain.ScoreSum
		if err := rows.Scan(&id, &sum.Sum, &sum.Count); err != nil {
			return nil, err
		}
		sums[id] = sum
	}
	return sums, rows.Err()
}

func (s *Store) RubricStats(ctx context.Context, activityID string) (map[string]domain.RubricStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rubric_id, sum(score), count(*)
		   FROM rubric_scores WHERE activity_id=$1 GROUP BY rubric_id`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]domain.RubricStat)
	for rows.Next() {
		var id string
		var stat domain.RubricStat
		if err := rows.Scan(&id, &stat.Sum, &stat.Count); err != nil {
			return nil, err
		}
		stats[id] = stat
	}
	return stats, rows.Err()
}

func (s *Store) ListScores(ctx context.Context, activityID string) ([]domain.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT activity_id, student_id, rubric_id, score, graded_by, updated_at
		   FROM rubric_scores WHERE activity_id=$1`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Score, 0)
	for rows.Next() {
		var sc domain.Score
		if err := rows.Scan(&sc.ActivityID, &sc.StudentID, &sc.RubricID, &sc.Value, &sc.GradedBy, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) CountRubricScores(ctx context.Context, rubricID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM rubric_scores WHERE rubric_id=$1`, rubricID).Scan(&n)
	return n, err
}

func (s *Store) GetStudent(ctx context.Context, studentID string) (domain.Student, error) {
	var st domain.Student
	err := s.pool.QueryRow(ctx,
		`SELECT id, roll_no, name, class_id, academic_year_id FROM students WHERE id=$1`, studentID,
	).Scan(&st.ID, &st.RollNo, &st.Name, &st.ClassID, &st.AcademicYearID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Student{}, fmt.Errorf("%w: %s", domain.ErrStudentNotFound, studentID)
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("load student: %w", err)
	}
	return st, nil
}

func (s *Store) ListStudents(ctx context.Context, classID, academicYearID string) ([]domain.Student, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, roll_no, name, class_id, academic_year_id
		   FROM students WHERE class_id=$1 AND academic_year_id=$2 ORDER BY roll_no, id`,
		classID, academicYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Student, 0)
	for rows.Next() {
		var st domain.Student
		if err := rows.Scan(&st.ID, &st.RollNo, &st.Name, &st.ClassID, &st.AcademicYearID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) FinalScores(ctx context.Context, subjectID string) ([]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT final_out_of_15 FROM final_subject_results WHERE subject_id=$1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ListResults(ctx context.Context, subjectID string) ([]domain.FinalSubjectResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.subject_id, r.student_id, r.raw_total, r.max_possible, r.final_out_of_15, r.breakdown
		   FROM final_subject_results r
		   JOIN students s ON s.id = r.student_id
		  WHERE r.subject_id=$1
		  ORDER BY s.roll_no, s.id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.FinalSubjectResult, 0)
	for rows.Next() {
		var r domain.FinalSubjectResult
		var raw []byte
		if err := rows.Scan(&r.SubjectID, &r.StudentID, &r.RawTotal, &r.MaxPossible, &r.FinalOutOf15, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &r.Breakdown); err != nil {
			return nil, fmt.Errorf("unmarshal breakdown: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertResults writes results in unordered chunks. A failing chunk is
// retried row by row so one bad row never blocks the others; the failures
// are returned joined next to the number of rows written.
func (s *Store) UpsertResults(ctx context.Context, results []domain.FinalSubjectResult) (int, error) {
	now := s.now().UTC()
	written := 0
	var errs []error
	for lo := 0; lo < len(results); lo += resultChunkSize {
		hi := min(lo+resultChunkSize, len(results))
		chunk := make([]resultModel, 0, hi-lo)
		for _, r := range results[lo:hi] {
			chunk = append(chunk, toResultModel(r, now))
		}

		if err := s.upsertResultModels(ctx, chunk); err == nil {
			written += len(chunk)
			continue
		}
		for i := range chunk {
			if err := s.upsertResultModels(ctx, chunk[i:i+1]); err != nil {
				errs = append(errs, fmt.Errorf("student %s: %w", chunk[i].StudentID, err))
				continue
			}
			written++
		}
	}
	return written, errors.Join(errs...)
}

func (s *Store) upsertResultModels(ctx context.Context, models []resultModel) error {
	_, err := s.db.NewInsert().Model(&models).
		On("CONFLICT (subject_id, student_id) DO UPDATE").
		Set("raw_total = EXCLUDED.raw_total").
		Set("max_possible = EXCLUDED.max_possible").
		Set("final_out_of_15 = EXCLUDED.final_out_of_15").
		Set("breakdown = EXCLUDED.breakdown").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity) error {
	m := toActivityModel(activity)
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *Store) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	m := toActivityModel(activity)
	res, err := s.db.NewUpdate().Model(&m).
		Column("name", "activity_type", "total_marks", "status").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return expectRow(res, domain.ErrActivityNotFound, activity.ID)
}

// DeleteActivity removes the activity; rubrics and scores go with it by cascade.
func (s *Store) DeleteActivity(ctx context.Context, activityID string) (int, error) {
	var removed int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		removed, err = tx.NewSelect().Model((*scoreModel)(nil)).Where("activity_id = ?", activityID).Count(ctx)
		if err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*activityModel)(nil)).Where("id = ?", activityID).Exec(ctx)
		if err != nil {
			return err
		}
		return expectRow(res, domain.ErrActivityNotFound, activityID)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) CreateRubric(ctx context.Context, rubric domain.Rubric) error {
	m := toRubricModel(rubric)
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return fmt.Errorf("insert rubric: %w", err)
	}
	return nil
}

func (s *Store) SetRubricsLocked(ctx context.Context, activityID string, locked bool) error {
	_, err := s.db.NewUpdate().Model((*rubricModel)(nil)).
		Set("locked = ?", locked).
		Where("activity_id = ?", activityID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteRubric(ctx context.Context, rubricID string) (int, error) {
	var removed int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		removed, err = tx.NewSelect().Model((*scoreModel)(nil)).Where("rubric_id = ?", rubricID).Count(ctx)
		if err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*rubricModel)(nil)).Where("id = ?", rubricID).Exec(ctx)
		if err != nil {
			return err
		}
		return expectRow(res, domain.ErrRubricNotFound, rubricID)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) UpsertScores(ctx context.Context, scores []domain.Score) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	models := make([]scoreModel, len(scores))
	for i, sc := range scores {
		models[i] = scoreModel{
			ActivityID: sc.ActivityID,
			StudentID:  sc.StudentID,
			RubricID:   sc.RubricID,
			Score:      sc.Value,
			GradedBy:   sc.GradedBy,
			UpdatedAt:  sc.UpdatedAt,
		}
	}
	_, err := s.db.NewInsert().Model(&models).
		On("CONFLICT (activity_id, student_id, rubric_id) DO UPDATE").
		Set("score = EXCLUDED.score").
		Set("graded_by = EXCLUDED.graded_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("upsert scores: %w", err)
	}
	return len(models), nil
}

func expectRow(res sql.Result, notFound error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
