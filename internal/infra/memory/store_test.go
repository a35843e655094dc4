package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cie-scoring-service/internal/domain"
)

func TestStoreSumScoresScopesByStudentAndActivity(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	_, err := store.UpsertScores(ctx, []domain.Score{
		{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r1", Value: 4},
		{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r2", Value: 3},
		{ActivityID: "act-1", StudentID: "stu-2", RubricID: "r1", Value: 5},
	})
	require.NoError(t, err)

	sums, err := store.SumScores(ctx, "stu-1", []string{"act-1", "act-missing"})
	require.NoError(t, err)
	assert.Equal(t, domain.ScoreSum{Sum: 7, Count: 2}, sums["act-1"])
	_, ok := sums["act-missing"]
	assert.False(t, ok)
}

func TestStoreUpsertScoresReplacesValue(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	_, err := store.UpsertScores(ctx, []domain.Score{{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r1", Value: 2}})
	require.NoError(t, err)
	_, err = store.UpsertScores(ctx, []domain.Score{{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r1", Value: 5}})
	require.NoError(t, err)

	scores, err := store.ListScores(ctx, "act-1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 5, scores[0].Value)
}

func TestStoreListStudentsOrdersByRollNo(t *testing.T) {
	store := seededStore(t)

	students, err := store.ListStudents(context.Background(), "class-1", "2024")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "stu-1", students[0].ID)
	assert.Equal(t, "stu-2", students[1].ID)
}

func TestStoreBreaksRollNoTiesByID(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	// same roll number as stu-1; ids decide the order
	for _, id := range []string{"stu-1b", "stu-0"} {
		store.AddStudent(domain.Student{ID: id, RollNo: "01", Name: id, ClassID: "class-1", AcademicYearID: "2024"})
	}

	for i := 0; i < 10; i++ {
		students, err := store.ListStudents(ctx, "class-1", "2024")
		require.NoError(t, err)
		ids := make([]string, len(students))
		for j, st := range students {
			ids[j] = st.ID
		}
		require.Equal(t, []string{"stu-0", "stu-1", "stu-1b", "stu-2"}, ids)
	}

	_, err := store.UpsertResults(ctx, []domain.FinalSubjectResult{
		{SubjectID: "sub-1", StudentID: "stu-2"},
		{SubjectID: "sub-1", StudentID: "stu-1b"},
		{SubjectID: "sub-1", StudentID: "stu-1"},
		{SubjectID: "sub-1", StudentID: "stu-0"},
	})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		results, err := store.ListResults(ctx, "sub-1")
		require.NoError(t, err)
		ids := make([]string, len(results))
		for j, r := range results {
			ids[j] = r.StudentID
		}
		require.Equal(t, []string{"stu-0", "stu-1", "stu-1b", "stu-2"}, ids)
	}
}

func TestStoreDeleteActivityCascades(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	_, err := store.UpsertScores(ctx, []domain.Score{
		{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r1", Value: 4},
		{ActivityID: "act-1", StudentID: "stu-2", RubricID: "r2", Value: 1},
	})
	require.NoError(t, err)

	removed, err := store.DeleteActivity(ctx, "act-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	activities, err := store.ListActivities(ctx, "sub-1")
	require.NoError(t, err)
	assert.Empty(t, activities)
	_, err = store.GetRubric(ctx, "r1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStoreDeleteRubricRemovesItsScores(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	_, err := store.UpsertScores(ctx, []domain.Score{
		{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r1", Value: 4},
		{ActivityID: "act-1", StudentID: "stu-1", RubricID: "r2", Value: 2},
	})
	require.NoError(t, err)

	n, err := store.CountRubricScores(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := store.DeleteRubric(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	counts, err := store.CountRubrics(ctx, []string{"act-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["act-1"])
}

func TestStoreResultsKeyedBySubjectAndStudent(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	_, err := store.UpsertResults(ctx, []domain.FinalSubjectResult{
		{SubjectID: "sub-1", StudentID: "stu-2", FinalOutOf15: 9},
		{SubjectID: "sub-1", StudentID: "stu-1", FinalOutOf15: 3},
	})
	require.NoError(t, err)
	_, err = store.UpsertResults(ctx, []domain.FinalSubjectResult{
		{SubjectID: "sub-1", StudentID: "stu-1", FinalOutOf15: 12},
	})
	require.NoError(t, err)

	results, err := store.ListResults(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "stu-1", results[0].StudentID)
	assert.Equal(t, 12.0, results[0].FinalOutOf15)

	finals, err := store.FinalScores(ctx, "sub-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{9, 12}, finals)
}

func TestStoreRejectsActivityForUnknownSubject(t *testing.T) {
	store := NewStore()
	err := store.CreateActivity(context.Background(), domain.Activity{ID: "a", SubjectID: "nope", TotalMarks: 5})
	assert.ErrorIs(t, err, domain.ErrSubjectNotFound)
}
