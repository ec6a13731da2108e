package model

import (
	"encoding/json"
	"time"
)

// UserProgress is the single row kept per (user, exercise) pair. Later
// attempts update it in place.
type UserProgress struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ExerciseID  string          `json:"exercise_id"`
	Code        string          `json:"code"`
	Score       int             `json:"score"`
	Completed   bool            `json:"completed"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"` // Set once, never overwritten
	TimeTaken   int             `json:"time_taken"`             // Seconds
	TimeDetails json.RawMessage `json:"time_details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProgressEvent is published after a verification commits.
type ProgressEvent struct {
	UserID     string    `json:"user_id"`
	ExerciseID string    `json:"exercise_id"`
	Correct    bool      `json:"correct"`
	XP         int       `json:"xp"`
	Level      int       `json:"level"`
	Streak     int       `json:"streak"`
	OccurredAt time.Time `json:"occurred_at"`
	Attempts   int       `json:"attempts,omitempty"`
}
