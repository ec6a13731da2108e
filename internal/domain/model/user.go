package model

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"` // Not exposed
	Role           string     `json:"role"`
	XP             int        `json:"xp"`
	Level          int        `json:"level"`
	Streak         int        `json:"streak"`
	LastActive     time.Time  `json:"last_active"`
	LastStreak     *time.Time `json:"last_streak,omitempty"` // Last day credited toward the streak
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectiveStreak is the streak as it should be displayed at now: a streak
// whose last credited day is before yesterday (UTC calendar days) has lapsed.
// The stored value is only rewritten by the next correct submission.
func (u *User) EffectiveStreak(now time.Time) int {
	if u.LastStreak == nil {
		return u.Streak
	}
	today := truncateDay(now)
	yesterday := today.AddDate(0, 0, -1)
	if truncateDay(*u.LastStreak).Before(yesterday) {
		return 0
	}
	return u.Streak
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
