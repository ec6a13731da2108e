package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Exercise struct {
	ID           string     `json:"id"`
	CategoryID   *string    `json:"category_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Instructions string     `json:"instructions"`
	InitialCode  string     `json:"initial_code"`
	Solution     Solution   `json:"solution,omitempty"` // Admin only view
	TestInput    string     `json:"test_input,omitempty"`
	Difficulty   Difficulty `json:"difficulty"`
	XPReward     int        `json:"xp_reward"`
	SortOrder    int        `json:"sort_order"`
	Week         int        `json:"week"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Category     *Category  `json:"category,omitempty"`
}

// Public returns a copy that is safe to show to students.
func (e Exercise) Public() Exercise {
	e.Solution = nil
	e.TestInput = ""
	return e
}

// Solution is the ordered list of accepted answers for an exercise. Each
// candidate is a decoded JSON value: string, float64, bool, nil, []any or
// map[string]any.
type Solution []any

var ErrEmptySolution = errors.New("solution must contain at least one accepted answer")

// NewSolution turns an arbitrary value into a Solution: a slice becomes the
// candidate list and anything else becomes a one-element list.
func NewSolution(v any) Solution {
	switch s := v.(type) {
	case Solution:
		return s
	case []any:
		return Solution(s)
	case []string:
		out := make(Solution, len(s))
		for i, c := range s {
			out[i] = c
		}
		return out
	default:
		return Solution{v}
	}
}

// EncodeSolution renders the canonical stored form, always a JSON array.
func EncodeSolution(s Solution) (string, error) {
	if len(s) == 0 {
		return "", ErrEmptySolution
	}
	b, err := json.Marshal([]any(s))
	if err != nil {
		return "", fmt.Errorf("encode solution: %w", err)
	}
	return string(b), nil
}

// DecodeSolution parses the stored text. Legacy rows holding a bare value or
// non-JSON text decode to a one-element list.
func DecodeSolution(raw string) Solution {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return Solution{raw}
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return Solution{raw}
		}
		return Solution(list)
	}
	return Solution{v}
}

// UnmarshalJSON accepts either a list of answers or a single answer.
func (s *Solution) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*s = nil
		return nil
	}
	*s = NewSolution(v)
	return nil
}
