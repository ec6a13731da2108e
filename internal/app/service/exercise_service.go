package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ExerciseService struct {
	exerciseRepo repository.ExerciseRepository
	categoryRepo repository.CategoryRepository
	progressRepo repository.ProgressRepository
}

func NewExerciseService(
	exerciseRepo repository.ExerciseRepository,
	categoryRepo repository.CategoryRepository,
	progressRepo repository.ProgressRepository,
) *ExerciseService {
	return &ExerciseService{
		exerciseRepo: exerciseRepo,
		categoryRepo: categoryRepo,
		progressRepo: progressRepo,
	}
}

// ExerciseView is an exercise as shown to one caller, with that caller's
// progress row when one exists.
type ExerciseView struct {
	model.Exercise
	Progress *model.UserProgress `json:"progress,omitempty"`
}

type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty"`
	SortOrder   int     `json:"sort_order" validate:"gte=0"`
}

type ExerciseRequest struct {
	CategoryID   *string          `json:"category_id,omitempty" validate:"omitempty,uuid"`
	Title        string           `json:"title" validate:"required,max=200"`
	Description  string           `json:"description" validate:"required"`
	Instructions string           `json:"instructions"`
	InitialCode  string           `json:"initial_code" validate:"maxbytes"`
	Solution     model.Solution   `json:"solution" validate:"required,min=1"`
	TestInput    string           `json:"test_input"`
	Difficulty   model.Difficulty `json:"difficulty" validate:"required,difficulty"`
	XPReward     int              `json:"xp_reward" validate:"gte=0,lte=1000"`
	SortOrder    int              `json:"sort_order" validate:"gte=0"`
	Week         int              `json:"week" validate:"gte=0"`
}

func (r ExerciseRequest) apply(e *model.Exercise) {
	e.CategoryID = r.CategoryID
	e.Title = r.Title
	e.Description = r.Description
	e.Instructions = r.Instructions
	e.InitialCode = r.InitialCode
	e.Solution = r.Solution
	e.TestInput = r.TestInput
	e.Difficulty = r.Difficulty
	e.XPReward = r.XPReward
	e.SortOrder = r.SortOrder
	e.Week = r.Week
}

func (s *ExerciseService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *ExerciseService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*model.Category, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	category := &model.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if category.Slug == "" {
		return nil, fmt.Errorf("category name has no usable characters: %w", common.ErrValidation)
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	slog.Info("category created", "category_id", category.ID, "slug", category.Slug)
	return category, nil
}

// CategoriesProgress reports, per category, how much of it the user has
// completed. Exercises without a category are not counted.
func (s *ExerciseService) CategoriesProgress(ctx context.Context, userID string) ([]model.CategoryProgress, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	exercises, err := s.exerciseRepo.List(ctx, repository.ExerciseFilter{})
	if err != nil {
		return nil, err
	}
	rows, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(rows))
	for _, p := range rows {
		if p.Completed {
			completed[p.ExerciseID] = true
		}
	}

	byCategory := make(map[string]*model.CategoryCompletion, len(categories))
	out := make([]model.CategoryProgress, len(categories))
	for i, c := range categories {
		out[i] = model.CategoryProgress{Category: c}
		byCategory[c.ID] = &out[i].Progress
	}
	for _, e := range exercises {
		if e.CategoryID == nil {
			continue
		}
		cp, ok := byCategory[*e.CategoryID]
		if !ok {
			continue
		}
		cp.TotalExercises++
		if completed[e.ID] {
			cp.CompletedExercises++
			cp.TotalXP += e.XPReward
		}
	}
	for i := range out {
		cp := &out[i].Progress
		if cp.TotalExercises > 0 {
			cp.Percentage = int(math.Round(float64(cp.CompletedExercises) * 100 / float64(cp.TotalExercises)))
		}
	}
	return out, nil
}

// List returns exercises in category order then exercise order. Answers are
// hidden unless full is set.
func (s *ExerciseService) List(ctx context.Context, userID string, filter repository.ExerciseFilter, full bool) ([]ExerciseView, error) {
	exercises, err := s.exerciseRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	progressByExercise := map[string]model.UserProgress{}
	if userID != "" {
		rows, err := s.progressRepo.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			progressByExercise[p.ExerciseID] = p
		}
	}

	views := make([]ExerciseView, 0, len(exercises))
	for _, e := range exercises {
		view := ExerciseView{Exercise: e}
		if !full {
			view.Exercise = e.Public()
		}
		if p, ok := progressByExercise[e.ID]; ok {
			view.Progress = &p
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ExerciseService) Get(ctx context.Context, userID, exerciseID string, full bool) (*ExerciseView, error) {
	e, err := s.exerciseRepo.FindByID(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	view := &ExerciseView{Exercise: *e}
	if !full {
		view.Exercise = e.Public()
	}
	if userID == "" {
		return view, nil
	}
	p, err := s.progressRepo.FindByUserAndExercise(ctx, userID, exerciseID)
	switch {
	case err == nil:
		view.Progress = p
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}
	return view, nil
}

func (s *ExerciseService) Create(ctx context.Context, req ExerciseRequest) (*model.Exercise, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	e := &model.Exercise{ID: uuid.NewString()}
	req.apply(e)
	if err := s.exerciseRepo.Create(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("exercise created", "exercise_id", e.ID, "difficulty", e.Difficulty)
	return e, nil
}

func (s *ExerciseService) Update(ctx context.Context, exerciseID string, req ExerciseRequest) (*model.Exercise, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	e := &model.Exercise{ID: exerciseID}
	req.apply(e)
	if err := s.exerciseRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ExerciseService) Delete(ctx context.Context, exerciseID string) error {
	if err := s.exerciseRepo.Delete(ctx, exerciseID); err != nil {
		return err
	}
	slog.Info("exercise deleted", "exercise_id", exerciseID)
	return nil
}
