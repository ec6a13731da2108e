package model

import "time"

const (
	BadgeSpeedSolver    = "speed-solver"
	BadgeQuickThinker   = "quick-thinker"
	BadgeConsistent     = "consistent"
	BadgeMasterBeginner = "master-beginner"
	BadgeMasterMedium   = "master-medium"
	BadgeMasterHard     = "master-hard"
	BadgeStreak3        = "streak-3"
	BadgeStreak7        = "streak-7"
	BadgeStreak30       = "streak-30"
	BadgeXP100          = "xp-100"
	BadgeXP500          = "xp-500"
	BadgeXP1000         = "xp-1000"
)

// Badge is static catalog data, seeded once.
type Badge struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
}

type UserBadge struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
	Badge    *Badge    `json:"badge,omitempty"`
}
