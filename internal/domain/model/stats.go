package model

import "time"

type AdminStats struct {
	Users              int `json:"users"`
	Exercises          int `json:"exercises"`
	Categories         int `json:"categories"`
	CompletedExercises int `json:"completed_exercises"`
}

type RecentActivity struct {
	ExerciseID  string     `json:"exercise_id"`
	Exercise    string     `json:"exercise"`
	Category    *string    `json:"category,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TimeSpent   int        `json:"time_spent"`
}

type UserStats struct {
	TotalExercises        int                `json:"total_exercises"`
	CompletedExercises    int                `json:"completed_exercises"`
	TotalBadges           int                `json:"total_badges"`
	CurrentStreak         int                `json:"current_streak"`
	CurrentLevel          int                `json:"current_level"`
	TotalXP               int                `json:"total_xp"`
	ExercisesByDifficulty map[Difficulty]int `json:"exercises_by_difficulty"`
	ExercisesByCategory   map[string]int     `json:"exercises_by_category"`
	RecentActivity        []RecentActivity   `json:"recent_activity"`
	Badges                []UserBadge        `json:"badges"`
}

type WeeklyExercise struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	XPReward   int        `json:"xp_reward"`
}

// DayStats covers one UTC calendar day. Date is YYYY-MM-DD.
type DayStats struct {
	Date               string           `json:"date"`
	ExercisesCompleted int              `json:"exercises_completed"`
	TotalXP            int              `json:"total_xp"`
	Exercises          []WeeklyExercise `json:"exercises"`
}

type CategoryCompletion struct {
	TotalExercises     int `json:"total_exercises"`
	CompletedExercises int `json:"completed_exercises"`
	Percentage         int `json:"percentage"`
	TotalXP            int `json:"total_xp"`
}

type CategoryProgress struct {
	Category
	Progress CategoryCompletion `json:"progress"`
}
