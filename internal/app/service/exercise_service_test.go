package service

import (
	"context"
	"testing"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"
	"code_dojo/internal/domain/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExerciseFixture(t *testing.T) (*memory.Store, *ExerciseService) {
	t.Helper()
	store := memory.NewStore()
	return store, NewExerciseService(store.Exercises(), store.Categories(), store.ProgressRepo())
}

func TestCreateCategorySlugs(t *testing.T) {
	_, svc := newExerciseFixture(t)

	c, err := svc.CreateCategory(context.Background(), CreateCategoryRequest{Name: "Estruturas de Decisão", SortOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, "estruturas-de-decisao", c.Slug)

	_, err = svc.CreateCategory(context.Background(), CreateCategoryRequest{Name: "Estruturas de Decisão"})
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = svc.CreateCategory(context.Background(), CreateCategoryRequest{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestListOrdersAndHidesAnswers(t *testing.T) {
	store, svc := newExerciseFixture(t)
	ctx := context.Background()

	loops := model.Category{ID: uuid.NewString(), Name: "Loops", Slug: "loops", SortOrder: 2}
	basics := model.Category{ID: uuid.NewString(), Name: "Basics", Slug: "basics", SortOrder: 1}
	store.PutCategory(loops)
	store.PutCategory(basics)
	store.PutUser(model.User{ID: "u1", Username: "ada", Level: 1})
	store.PutExercise(model.Exercise{ID: "loop-1", CategoryID: &loops.ID, Title: "For", Solution: model.Solution{"1"}, TestInput: "x", SortOrder: 1, Week: 2})
	store.PutExercise(model.Exercise{ID: "basic-2", CategoryID: &basics.ID, Title: "Sum", Solution: model.Solution{"2"}, SortOrder: 2, Week: 1})
	store.PutExercise(model.Exercise{ID: "basic-1", CategoryID: &basics.ID, Title: "Hello", Solution: model.Solution{"3"}, SortOrder: 1, Week: 1})

	require.NoError(t, store.ProgressRepo().Upsert(ctx, nil, &model.UserProgress{UserID: "u1", ExerciseID: "basic-2", Completed: true, Score: 10}))

	views, err := svc.List(ctx, "u1", repository.ExerciseFilter{}, false)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []string{"basic-1", "basic-2", "loop-1"}, []string{views[0].ID, views[1].ID, views[2].ID})
	for _, v := range views {
		assert.Nil(t, v.Solution)
		assert.Empty(t, v.TestInput)
	}
	assert.Nil(t, views[0].Progress)
	require.NotNil(t, views[1].Progress)
	assert.True(t, views[1].Progress.Completed)

	views, err = svc.List(ctx, "", repository.ExerciseFilter{CategorySlug: "loops"}, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, model.Solution{"1"}, views[0].Solution)

	views, err = svc.List(ctx, "", repository.ExerciseFilter{Week: 1}, false)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestGetAttachesProgress(t *testing.T) {
	store, svc := newExerciseFixture(t)
	ctx := context.Background()
	store.PutUser(model.User{ID: "u1", Username: "ada", Level: 1})
	store.PutExercise(model.Exercise{ID: "ex1", Title: "Sum", Solution: model.Solution{"5"}})

	view, err := svc.Get(ctx, "u1", "ex1", false)
	require.NoError(t, err)
	assert.Nil(t, view.Progress)
	assert.Nil(t, view.Solution)

	require.NoError(t, store.ProgressRepo().Upsert(ctx, nil, &model.UserProgress{UserID: "u1", ExerciseID: "ex1", Code: "x"}))
	view, err = svc.Get(ctx, "u1", "ex1", false)
	require.NoError(t, err)
	require.NotNil(t, view.Progress)
	assert.Equal(t, "x", view.Progress.Code)

	_, err = svc.Get(ctx, "u1", "missing", false)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExerciseAdminWrites(t *testing.T) {
	_, svc := newExerciseFixture(t)
	ctx := context.Background()

	req := ExerciseRequest{
		Title:       "Sum",
		Description: "Add two numbers",
		Solution:    model.Solution{"5"},
		TestInput:   "2 3",
		Difficulty:  model.DifficultyEasy,
		XPReward:    50,
	}
	e, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	req.Difficulty = "Fácil"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, common.ErrValidation)

	req.Difficulty = model.DifficultyHard
	req.Solution = nil
	_, err = svc.Update(ctx, e.ID, req)
	assert.ErrorIs(t, err, common.ErrValidation)

	req.Solution = model.Solution{"5", "5.0"}
	updated, err := svc.Update(ctx, e.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.DifficultyHard, updated.Difficulty)

	_, err = svc.Update(ctx, "missing", req)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, e.ID))
	assert.ErrorIs(t, svc.Delete(ctx, e.ID), common.ErrNotFound)
}

func TestDeleteExerciseWithProgressKeepsHistory(t *testing.T) {
	store, svc := newExerciseFixture(t)
	ctx := context.Background()

	store.PutUser(model.User{ID: "u1", Username: "ada", Level: 1})
	store.PutExercise(model.Exercise{ID: "ex1", Title: "Sum", Solution: model.Solution{"5"}})
	require.NoError(t, store.ProgressRepo().Upsert(ctx, nil, &model.UserProgress{UserID: "u1", ExerciseID: "ex1", Completed: true, Score: 50}))

	err := svc.Delete(ctx, "ex1")
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.Get(ctx, "u1", "ex1", true)
	require.NoError(t, err)
	_, ok := store.Progress("u1", "ex1")
	assert.True(t, ok)
}

func TestCategoriesProgress(t *testing.T) {
	store, svc := newExerciseFixture(t)
	ctx := context.Background()

	basics := model.Category{ID: "c1", Name: "Basics", Slug: "basics", SortOrder: 1}
	loops := model.Category{ID: "c2", Name: "Loops", Slug: "loops", SortOrder: 2}
	store.PutCategory(loops)
	store.PutCategory(basics)
	store.PutUser(model.User{ID: "u1", Username: "ada", Level: 1})
	store.PutExercise(model.Exercise{ID: "b1", CategoryID: &basics.ID, Title: "Hello", XPReward: 10, Solution: model.Solution{"1"}})
	store.PutExercise(model.Exercise{ID: "b2", CategoryID: &basics.ID, Title: "Sum", XPReward: 20, Solution: model.Solution{"1"}})
	store.PutExercise(model.Exercise{ID: "b3", CategoryID: &basics.ID, Title: "Max", XPReward: 30, Solution: model.Solution{"1"}})
	store.PutExercise(model.Exercise{ID: "free", Title: "Loose", XPReward: 40, Solution: model.Solution{"1"}})

	for _, p := range []model.UserProgress{
		{UserID: "u1", ExerciseID: "b1", Completed: true},
		{UserID: "u1", ExerciseID: "b2", Completed: true},
		{UserID: "u1", ExerciseID: "b3"},
		{UserID: "u1", ExerciseID: "free", Completed: true},
	} {
		require.NoError(t, store.ProgressRepo().Upsert(ctx, nil, &p))
	}

	progress, err := svc.CategoriesProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, progress, 2)

	assert.Equal(t, "basics", progress[0].Slug)
	assert.Equal(t, model.CategoryCompletion{TotalExercises: 3, CompletedExercises: 2, Percentage: 67, TotalXP: 30}, progress[0].Progress)
	assert.Equal(t, "loops", progress[1].Slug)
	assert.Equal(t, model.CategoryCompletion{}, progress[1].Progress)
}
