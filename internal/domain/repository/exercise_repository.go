package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
)

type ExerciseFilter struct {
	CategorySlug string
	Week         int
}

type ExerciseRepository interface {
	FindByID(ctx context.Context, id string) (*model.Exercise, error)
	List(ctx context.Context, filter ExerciseFilter) ([]model.Exercise, error)
	Create(ctx context.Context, exercise *model.Exercise) error
	Update(ctx context.Context, exercise *model.Exercise) error
	// Delete fails with ErrBadRequest while any user has progress on the exercise.
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type pgExerciseRepository struct {
	db *sql.DB
}

func NewPgExerciseRepository(db *sql.DB) ExerciseRepository {
	return &pgExerciseRepository{db: db}
}

const exerciseSelect = `
        SELECT e.id, e.category_id, e.title, e.description, e.instructions, e.initial_code,
               e.solution, e.test_input, e.difficulty, e.xp_reward, e.sort_order, e.week,
               e.created_at, e.updated_at,
               c.id, c.name, c.slug, c.description, c.sort_order, c.created_at, c.updated_at
        FROM exercises e
        LEFT JOIN categories c ON e.category_id = c.id`

func scanExercise(row rowScanner) (*model.Exercise, error) {
	var (
		e           model.Exercise
		categoryID  sql.NullString
		rawSolution string
		cID         sql.NullString
		cName       sql.NullString
		cSlug       sql.NullString
		cDesc       sql.NullString
		cOrder      sql.NullInt64
		cCreated    sql.NullTime
		cUpdated    sql.NullTime
	)
	err := row.Scan(
		&e.ID, &categoryID, &e.Title, &e.Description, &e.Instructions, &e.InitialCode,
		&rawSolution, &e.TestInput, &e.Difficulty, &e.XPReward, &e.SortOrder, &e.Week,
		&e.CreatedAt, &e.UpdatedAt,
		&cID, &cName, &cSlug, &cDesc, &cOrder, &cCreated, &cUpdated,
	)
	if err != nil {
		return nil, err
	}
	e.Solution = model.DecodeSolution(rawSolution)
	if categoryID.Valid {
		id := categoryID.String
		e.CategoryID = &id
	}
	if cID.Valid {
		c := &model.Category{
			ID:        cID.String,
			Name:      cName.String,
			Slug:      cSlug.String,
			SortOrder: int(cOrder.Int64),
			CreatedAt: cCreated.Time,
			UpdatedAt: cUpdated.Time,
		}
		if cDesc.Valid {
			d := cDesc.String
			c.Description = &d
		}
		e.Category = c
	}
	return &e, nil
}

func (r *pgExerciseRepository) FindByID(ctx context.Context, id string) (*model.Exercise, error) {
	e, err := scanExercise(r.db.QueryRowContext(ctx, exerciseSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exercise %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgExerciseRepository.FindByID: %w", err)
	}
	return e, nil
}

func (r *pgExerciseRepository) List(ctx context.Context, filter ExerciseFilter) ([]model.Exercise, error) {
	var query strings.Builder
	query.WriteString(exerciseSelect)

	var conditions []string
	var args []interface{}
	argID := 1

	if filter.CategorySlug != "" {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", argID))
		args = append(args, filter.CategorySlug)
		argID++
	}
	if filter.Week > 0 {
		conditions = append(conditions, fmt.Sprintf("e.week = $%d", argID))
		args = append(args, filter.Week)
	}
	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY c.sort_order ASC NULLS LAST, e.sort_order ASC, e.created_at ASC")

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgExerciseRepository.List query: %w", err)
	}
	defer rows.Close()

	exercises := []model.Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("pgExerciseRepository.List scan: %w", err)
		}
		exercises = append(exercises, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgExerciseRepository.List rows.Err: %w", err)
	}
	return exercises, nil
}

func (r *pgExerciseRepository) Create(ctx context.Context, e *model.Exercise) error {
	solution, err := model.EncodeSolution(e.Solution)
	if err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrValidation)
	}
	query := `INSERT INTO exercises (id, category_id, title, description, instructions, initial_code,
	                                 solution, test_input, difficulty, xp_reward, sort_order, week)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		e.ID, e.CategoryID, e.Title, e.Description, e.Instructions, e.InitialCode,
		solution, e.TestInput, e.Difficulty, e.XPReward, e.SortOrder, e.Week,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("category does not exist: %w", common.ErrBadRequest)
		}
		return fmt.Errorf("pgExerciseRepository.Create: %w", err)
	}
	return nil
}

func (r *pgExerciseRepository) Update(ctx context.Context, e *model.Exercise) error {
	solution, err := model.EncodeSolution(e.Solution)
	if err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrValidation)
	}
	query := `UPDATE exercises SET
                category_id = $1, title = $2, description = $3, instructions = $4, initial_code = $5,
                solution = $6, test_input = $7, difficulty = $8, xp_reward = $9, sort_order = $10,
                week = $11, updated_at = CURRENT_TIMESTAMP
              WHERE id = $12`
	res, err := r.db.ExecContext(ctx, query,
		e.CategoryID, e.Title, e.Description, e.Instructions, e.InitialCode,
		solution, e.TestInput, e.Difficulty, e.XPReward, e.SortOrder, e.Week, e.ID,
	)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("category does not exist: %w", common.ErrBadRequest)
		}
		return fmt.Errorf("pgExerciseRepository.Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("exercise %s: %w", e.ID, common.ErrNotFound)
	}
	return nil
}

// Delete refuses exercises that have user progress; the user_progress
// foreign key is ON DELETE RESTRICT.
func (r *pgExerciseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("cannot delete exercise %s, users have progress: %w", id, common.ErrBadRequest)
		}
		return fmt.Errorf("pgExerciseRepository.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("exercise %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *pgExerciseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercises`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgExerciseRepository.Count: %w", err)
	}
	return n, nil
}
