package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exerciseCols = []string{"id", "category_id", "title", "description", "instructions", "initial_code",
	"solution", "test_input", "difficulty", "xp_reward", "sort_order", "week", "created_at", "updated_at",
	"c_id", "c_name", "c_slug", "c_description", "c_sort_order", "c_created_at", "c_updated_at"}

func TestExerciseFindByIDDecodesSolution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WithArgs("ex1").
		WillReturnRows(sqlmock.NewRows(exerciseCols).AddRow(
			"ex1", "cat1", "Sum", "desc", "do it", "int sum() {}",
			`["5","10"]`, "2 3", "Easy", 50, 1, 1, now, now,
			"cat1", "Basics", "basics", nil, 1, now, now,
		))

	e, err := NewPgExerciseRepository(db).FindByID(context.Background(), "ex1")
	require.NoError(t, err)
	assert.Equal(t, model.Solution{"5", "10"}, e.Solution)
	assert.Equal(t, model.DifficultyEasy, e.Difficulty)
	require.NotNil(t, e.Category)
	assert.Equal(t, "basics", e.Category.Slug)
	assert.Nil(t, e.Category.Description)
}

func TestExerciseFindByIDWithoutCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WillReturnRows(sqlmock.NewRows(exerciseCols).AddRow(
			"ex1", nil, "Sum", "desc", "do it", "",
			`42`, "", "Hard", 80, 1, 2, now, now,
			nil, nil, nil, nil, nil, nil, nil,
		))

	e, err := NewPgExerciseRepository(db).FindByID(context.Background(), "ex1")
	require.NoError(t, err)
	assert.Nil(t, e.CategoryID)
	assert.Nil(t, e.Category)
	assert.Equal(t, model.Solution{float64(42)}, e.Solution)
}

func TestExerciseFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).WillReturnRows(sqlmock.NewRows(exerciseCols))

	_, err = NewPgExerciseRepository(db).FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExerciseListFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.slug = $1 AND e.week = $2 ORDER BY c.sort_order")).
		WithArgs("loops", 3).
		WillReturnRows(sqlmock.NewRows(exerciseCols))

	list, err := NewPgExerciseRepository(db).List(context.Background(), ExerciseFilter{CategorySlug: "loops", Week: 3})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExerciseCreateStoresCanonicalSolution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO exercises")).
		WithArgs("ex1", nil, "Echo", "d", "i", "", `["hello"]`, "", model.DifficultyEasy, 10, 0, 1).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	e := &model.Exercise{ID: "ex1", Title: "Echo", Description: "d", Instructions: "i",
		Solution: model.NewSolution("hello"), Difficulty: model.DifficultyEasy, XPReward: 10, Week: 1}
	require.NoError(t, NewPgExerciseRepository(db).Create(context.Background(), e))
	assert.Equal(t, now, e.CreatedAt)
}

func TestExerciseCreateRejectsEmptySolution(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewPgExerciseRepository(db).Create(context.Background(), &model.Exercise{ID: "ex1"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExerciseUpdateUnknownCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exercises SET")).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err = NewPgExerciseRepository(db).Update(context.Background(), &model.Exercise{ID: "ex1", Solution: model.Solution{"1"}})
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestExerciseDeleteWithProgressIsRefused(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exercises")).
		WithArgs("ex1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "user_progress_exercise_id_fkey"})

	err = NewPgExerciseRepository(db).Delete(context.Background(), "ex1")
	assert.ErrorIs(t, err, common.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExerciseDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM exercises")).
		WithArgs("ex1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPgExerciseRepository(db).Delete(context.Background(), "ex1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
