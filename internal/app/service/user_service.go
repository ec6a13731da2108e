package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/common/security"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"
)

const recentActivityLimit = 5

// UpdateProfileRequest edits identity fields. Empty fields are left unchanged;
// a new password needs the current one.
type UpdateProfileRequest struct {
	Username        string `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	Name            string `json:"name,omitempty" validate:"omitempty,max=30"`
	Email           string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty" validate:"omitempty,min=6,max=72"`
}

type UserService struct {
	userRepo     repository.UserRepository
	exerciseRepo repository.ExerciseRepository
	progressRepo repository.ProgressRepository
	badgeRepo    repository.BadgeRepository
	now          func() time.Time
}

func NewUserService(
	userRepo repository.UserRepository,
	exerciseRepo repository.ExerciseRepository,
	progressRepo repository.ProgressRepository,
	badgeRepo repository.BadgeRepository,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		exerciseRepo: exerciseRepo,
		progressRepo: progressRepo,
		badgeRepo:    badgeRepo,
		now:          time.Now,
	}
}

// Profile never writes. A lapsed streak is reported as 0 and only reset in
// storage by the next correct submission.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Streak = user.EffectiveStreak(s.now())
	user.HashedPassword = ""
	return user, nil
}

func (s *UserService) Badges(ctx context.Context, userID string) ([]model.UserBadge, error) {
	return s.badgeRepo.ListByUser(ctx, userID)
}

func (s *UserService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	exercises, err := s.exerciseRepo.List(ctx, repository.ExerciseFilter{})
	if err != nil {
		return nil, err
	}
	progress, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.badgeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Exercise, len(exercises))
	for _, e := range exercises {
		byID[e.ID] = e
	}

	stats := &model.UserStats{
		TotalExercises:        len(exercises),
		TotalBadges:           len(badges),
		CurrentStreak:         user.EffectiveStreak(s.now()),
		CurrentLevel:          user.Level,
		TotalXP:               user.XP,
		ExercisesByDifficulty: map[model.Difficulty]int{},
		ExercisesByCategory:   map[string]int{},
		RecentActivity:        []model.RecentActivity{},
		Badges:                badges,
	}

	// progress is ordered by most recent update first
	for _, p := range progress {
		e, ok := byID[p.ExerciseID]
		if !ok {
			continue
		}
		var category *string
		if e.Category != nil {
			category = &e.Category.Name
		}
		if p.Completed {
			stats.CompletedExercises++
			stats.ExercisesByDifficulty[e.Difficulty]++
			if category != nil {
				stats.ExercisesByCategory[*category]++
			}
		}
		if len(stats.RecentActivity) < recentActivityLimit {
			stats.RecentActivity = append(stats.RecentActivity, model.RecentActivity{
				ExerciseID:  e.ID,
				Exercise:    e.Title,
				Category:    category,
				Completed:   p.Completed,
				CompletedAt: p.CompletedAt,
				TimeSpent:   p.TimeTaken,
			})
		}
	}
	return stats, nil
}

// UpdateProfile never touches xp, level, streak or role.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = strings.ToLower(req.Email)
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return nil, fmt.Errorf("current password is required to set a new one: %w", common.ErrValidation)
		}
		if !security.CheckPasswordHash(req.CurrentPassword, user.HashedPassword) {
			return nil, common.ErrUnauthorized
		}
		hashed, err := security.HashPassword(req.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = hashed
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("profile updated", "user_id", userID, "password_changed", req.NewPassword != "")
	user.Streak = user.EffectiveStreak(s.now())
	user.HashedPassword = ""
	return user, nil
}

// WeeklyStats buckets the user's completions into the seven UTC days of the
// current week, Sunday first.
func (s *UserService) WeeklyStats(ctx context.Context, userID string) ([]model.DayStats, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -int(today.Weekday()))
	end := start.AddDate(0, 0, 7)

	exercises, err := s.exerciseRepo.List(ctx, repository.ExerciseFilter{})
	if err != nil {
		return nil, err
	}
	progress, err := s.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Exercise, len(exercises))
	for _, e := range exercises {
		byID[e.ID] = e
	}

	days := make([]model.DayStats, 7)
	for i := range days {
		days[i] = model.DayStats{
			Date:      start.AddDate(0, 0, i).Format(time.DateOnly),
			Exercises: []model.WeeklyExercise{},
		}
	}
	for _, p := range progress {
		if !p.Completed || p.CompletedAt == nil {
			continue
		}
		at := p.CompletedAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}
		e, ok := byID[p.ExerciseID]
		if !ok {
			continue
		}
		day := &days[int(at.Sub(start)/(24*time.Hour))]
		day.ExercisesCompleted++
		day.TotalXP += e.XPReward
		day.Exercises = append(day.Exercises, model.WeeklyExercise{
			ID: e.ID, Title: e.Title, Difficulty: e.Difficulty, XPReward: e.XPReward,
		})
	}
	return days, nil
}
