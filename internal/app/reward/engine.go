// Package reward applies experience, level, streak and badge changes for a
// correct submission.
package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"
	"code_dojo/internal/platform/metrics"
)

const xpPerLevel = 200

// StreakWindow is how far back a prior completion keeps a streak alive.
const StreakWindow = 24 * time.Hour

const (
	speedSolverLimit  = 180 // seconds
	quickThinkerLimit = 300
	consistentCount   = 5
)

type threshold struct {
	min  int
	code string
}

// Checked high to low; every threshold reached is awarded.
var (
	streakThresholds = []threshold{{30, model.BadgeStreak30}, {7, model.BadgeStreak7}, {3, model.BadgeStreak3}}
	xpThresholds     = []threshold{{1000, model.BadgeXP1000}, {500, model.BadgeXP500}, {100, model.BadgeXP100}}
)

var difficultyBadges = map[model.Difficulty]string{
	model.DifficultyEasy:   model.BadgeMasterBeginner,
	model.DifficultyMedium: model.BadgeMasterMedium,
	model.DifficultyHard:   model.BadgeMasterHard,
}

// Level is floor(xp/200)+1.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/xpPerLevel + 1
}

// NextStreak extends the streak when the user completed something recently
// and restarts it otherwise.
func NextStreak(current int, hadRecentCompletion bool) int {
	if hadRecentCompletion {
		return current + 1
	}
	return 1
}

// Outcome describes what a single Apply call changed.
type Outcome struct {
	XPEarned     int
	TotalXP      int
	NewLevel     int
	Streak       int
	EarnedBadges []model.Badge
}

type Engine struct {
	users    repository.UserRepository
	progress repository.ProgressRepository
	badges   repository.BadgeRepository
}

func NewEngine(users repository.UserRepository, progress repository.ProgressRepository, badges repository.BadgeRepository) *Engine {
	return &Engine{users: users, progress: progress, badges: badges}
}

// Apply must run inside tx. It locks the user row first, so concurrent
// rewards for one user are applied one after another.
func (e *Engine) Apply(ctx context.Context, tx *sql.Tx, userID string, exercise *model.Exercise, timeTaken int, now time.Time) (*Outcome, error) {
	user, err := e.users.FindByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := e.progress.HasCompletionBetween(ctx, tx, userID, now.Add(-StreakWindow), now)
	if err != nil {
		return nil, err
	}

	user.XP += exercise.XPReward
	user.Level = Level(user.XP)
	if !creditedOn(user.LastStreak, now) || user.Streak == 0 {
		user.Streak = NextStreak(user.Streak, recent)
	}
	user.LastActive = now
	streakDay := now
	user.LastStreak = &streakDay

	if err := e.users.UpdateGamification(ctx, tx, user); err != nil {
		return nil, err
	}

	completed, err := e.progress.CountCompleted(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	earned, err := e.awardBadges(ctx, tx, userID, candidateBadges(user, exercise, timeTaken, completed), now)
	if err != nil {
		return nil, err
	}

	metrics.XPAwarded.Add(float64(exercise.XPReward))
	return &Outcome{
		XPEarned:     exercise.XPReward,
		TotalXP:      user.XP,
		NewLevel:     user.Level,
		Streak:       user.Streak,
		EarnedBadges: earned,
	}, nil
}

// creditedOn reports whether the streak was already credited on now's UTC day.
func creditedOn(lastStreak *time.Time, now time.Time) bool {
	if lastStreak == nil {
		return false
	}
	a, b := lastStreak.UTC(), now.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// candidateBadges lists badge codes in evaluation order.
func candidateBadges(user *model.User, exercise *model.Exercise, timeTaken, completed int) []string {
	var codes []string

	switch {
	case timeTaken < speedSolverLimit:
		codes = append(codes, model.BadgeSpeedSolver)
	case timeTaken < quickThinkerLimit:
		codes = append(codes, model.BadgeQuickThinker)
	}

	if code, ok := difficultyBadges[exercise.Difficulty]; ok {
		codes = append(codes, code)
	}

	for _, t := range streakThresholds {
		if user.Streak >= t.min {
			codes = append(codes, t.code)
		}
	}
	for _, t := range xpThresholds {
		if user.XP >= t.min {
			codes = append(codes, t.code)
		}
	}

	if completed >= consistentCount {
		codes = append(codes, model.BadgeConsistent)
	}
	return codes
}

func (e *Engine) awardBadges(ctx context.Context, tx *sql.Tx, userID string, codes []string, now time.Time) ([]model.Badge, error) {
	earned := []model.Badge{}
	for _, code := range codes {
		badge, err := e.badges.FindByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				slog.Warn("badge missing from catalog, skipping", "badge", code)
				continue
			}
			return nil, err
		}
		created, err := e.badges.Award(ctx, tx, userID, badge.ID, now)
		if err != nil {
			return nil, fmt.Errorf("award %s: %w", code, err)
		}
		if created {
			metrics.BadgesAwarded.WithLabelValues(code).Inc()
			earned = append(earned, *badge)
		}
	}
	return earned, nil
}
