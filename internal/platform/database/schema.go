package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schemaSQL string

type seedBadge struct {
	Code        string
	Name        string
	Description string
	Icon        string
}

// BadgeCatalog is the fixed set of badges the reward engine can award.
var BadgeCatalog = []seedBadge{
	{"speed-solver", "Speed Solver", "Solved an exercise in under 3 minutes", "⚡"},
	{"quick-thinker", "Quick Thinker", "Solved an exercise in under 5 minutes", "🤔"},
	{"consistent", "Consistent", "Completed 5 exercises", "📈"},
	{"master-beginner", "Beginner Master", "Completed an easy exercise", "🌱"},
	{"master-medium", "Intermediate Master", "Completed a medium exercise", "🌿"},
	{"master-hard", "Advanced Master", "Completed a hard exercise", "🌳"},
	{"streak-3", "On a Roll", "Kept a 3 day streak", "🔥"},
	{"streak-7", "Weekly Warrior", "Kept a 7 day streak", "📅"},
	{"streak-30", "Unstoppable", "Kept a 30 day streak", "🏆"},
	{"xp-100", "Apprentice", "Earned 100 XP", "⭐"},
	{"xp-500", "Journeyman", "Earned 500 XP", "🌟"},
	{"xp-1000", "Expert", "Earned 1000 XP", "💫"},
}

// ApplySchema creates missing tables and seeds the badge catalog. Both steps
// are idempotent.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("database.ApplySchema: %w", err)
	}
	return SeedBadges(ctx, db)
}

func SeedBadges(ctx context.Context, db *sql.DB) error {
	query := `INSERT INTO badges (id, code, name, description, icon)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (code) DO NOTHING`
	inserted := 0
	for _, b := range BadgeCatalog {
		res, err := db.ExecContext(ctx, query, uuid.NewString(), b.Code, b.Name, b.Description, b.Icon)
		if err != nil {
			return fmt.Errorf("database.SeedBadges %s: %w", b.Code, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	slog.Info("badge catalog seeded", "inserted", inserted, "total", len(BadgeCatalog))
	return nil
}
