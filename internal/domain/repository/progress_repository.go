package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
)

type ProgressRepository interface {
	// Upsert writes the single (user, exercise) row. An existing completed_at
	// is never overwritten.
	Upsert(ctx context.Context, tx *sql.Tx, progress *model.UserProgress) error
	// HasCompletionBetween reports a completed row with since <= completed_at < before.
	HasCompletionBetween(ctx context.Context, tx *sql.Tx, userID string, since, before time.Time) (bool, error)
	CountCompleted(ctx context.Context, tx *sql.Tx, userID string) (int, error)
	FindByUserAndExercise(ctx context.Context, userID, exerciseID string) (*model.UserProgress, error)
	ListByUser(ctx context.Context, userID string) ([]model.UserProgress, error)
	CountAllCompleted(ctx context.Context) (int, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

const progressColumns = `id, user_id, exercise_id, code, score, completed, completed_at,
	time_taken, time_details, created_at, updated_at`

func scanProgress(row rowScanner) (*model.UserProgress, error) {
	var (
		p           model.UserProgress
		code        sql.NullString
		completedAt sql.NullTime
		details     []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.ExerciseID, &code, &p.Score, &p.Completed, &completedAt,
		&p.TimeTaken, &details, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Code = code.String
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if len(details) > 0 {
		p.TimeDetails = append([]byte(nil), details...)
	}
	return &p, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *pgProgressRepository) Upsert(ctx context.Context, tx *sql.Tx, p *model.UserProgress) error {
	query := `INSERT INTO user_progress (id, user_id, exercise_id, code, score, completed, completed_at, time_taken, time_details)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (user_id, exercise_id) DO UPDATE SET
	              code = EXCLUDED.code,
	              score = EXCLUDED.score,
	              completed = EXCLUDED.completed,
	              completed_at = COALESCE(user_progress.completed_at, EXCLUDED.completed_at),
	              time_taken = EXCLUDED.time_taken,
	              time_details = EXCLUDED.time_details,
	              updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + progressColumns
	args := []interface{}{p.ID, p.UserID, p.ExerciseID, p.Code, p.Score, p.Completed, p.CompletedAt, p.TimeTaken, nullableJSON(p.TimeDetails)}

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, args...)
	} else {
		row = r.db.QueryRowContext(ctx, query, args...)
	}
	saved, err := scanProgress(row)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("user or exercise missing: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgProgressRepository.Upsert: %w", err)
	}
	*p = *saved
	return nil
}

func (r *pgProgressRepository) HasCompletionBetween(ctx context.Context, tx *sql.Tx, userID string, since, before time.Time) (bool, error) {
	query := `SELECT EXISTS (
	              SELECT 1 FROM user_progress
	              WHERE user_id = $1 AND completed = TRUE
	                AND completed_at >= $2 AND completed_at < $3)`
	var exists bool
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, userID, since, before).Scan(&exists)
	} else {
		err = r.db.QueryRowContext(ctx, query, userID, since, before).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("pgProgressRepository.HasCompletionBetween: %w", err)
	}
	return exists, nil
}

func (r *pgProgressRepository) CountCompleted(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM user_progress WHERE user_id = $1 AND completed = TRUE`
	var n int
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, userID).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, query, userID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("pgProgressRepository.CountCompleted: %w", err)
	}
	return n, nil
}

func (r *pgProgressRepository) FindByUserAndExercise(ctx context.Context, userID, exerciseID string) (*model.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND exercise_id = $2`
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, exerciseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("progress: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgProgressRepository.FindByUserAndExercise: %w", err)
	}
	return p, nil
}

func (r *pgProgressRepository) ListByUser(ctx context.Context, userID string) ([]model.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	list := []model.UserProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListByUser scan: %w", err)
		}
		list = append(list, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser rows.Err: %w", err)
	}
	return list, nil
}

func (r *pgProgressRepository) CountAllCompleted(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_progress WHERE completed = TRUE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgProgressRepository.CountAllCompleted: %w", err)
	}
	return n, nil
}
