package service

import (
	"context"
	"fmt"

	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"
)

type AdminService struct {
	userRepo     repository.UserRepository
	exerciseRepo repository.ExerciseRepository
	categoryRepo repository.CategoryRepository
	progressRepo repository.ProgressRepository
}

func NewAdminService(
	userRepo repository.UserRepository,
	exerciseRepo repository.ExerciseRepository,
	categoryRepo repository.CategoryRepository,
	progressRepo repository.ProgressRepository,
) *AdminService {
	return &AdminService{
		userRepo:     userRepo,
		exerciseRepo: exerciseRepo,
		categoryRepo: categoryRepo,
		progressRepo: progressRepo,
	}
}

func (s *AdminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	var (
		stats model.AdminStats
		err   error
	)
	if stats.Users, err = s.userRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if stats.Exercises, err = s.exerciseRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("count exercises: %w", err)
	}
	if stats.Categories, err = s.categoryRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	if stats.CompletedExercises, err = s.progressRepo.CountAllCompleted(ctx); err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	return &stats, nil
}
