package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByIDForUpdate locks the user row until tx ends.
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)
	UpdateGamification(ctx context.Context, tx *sql.Tx, user *model.User) error
	// UpdateProfile writes the identity fields only: username, name, email and
	// password hash.
	UpdateProfile(ctx context.Context, user *model.User) error
	TopByXP(ctx context.Context, limit int) ([]model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	Count(ctx context.Context) (int, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, name, email, hashed_password, role, xp, level, streak,
	last_active, last_streak, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var lastStreak sql.NullTime
	err := row.Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.HashedPassword, &user.Role,
		&user.XP, &user.Level, &user.Streak, &user.LastActive, &lastStreak,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastStreak.Valid {
		t := lastStreak.Time
		user.LastStreak = &t
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, name, email, hashed_password, role)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Name, user.Email, user.HashedPassword, user.Role)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, op, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", "username", username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id", id)
}

// FindByIDForUpdate takes FOR NO KEY UPDATE: it serializes reward updates for
// one user without conflicting with the KEY SHARE locks that foreign keys from
// user_progress and user_badges take on the same row.
func (r *pgUserRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR NO KEY UPDATE`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, id)
	} else {
		row = r.db.QueryRowContext(ctx, query, id)
	}
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgUserRepository.FindByIDForUpdate: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateGamification(ctx context.Context, tx *sql.Tx, u *model.User) error {
	query := `UPDATE users SET
                xp = $1, level = $2, streak = $3, last_active = $4, last_streak = $5,
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $6`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, u.XP, u.Level, u.Streak, u.LastActive, u.LastStreak, u.ID)
	} else {
		res, err = r.db.ExecContext(ctx, query, u.XP, u.Level, u.Streak, u.LastActive, u.LastStreak, u.ID)
	}
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateGamification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", u.ID, common.ErrNotFound)
	}
	return nil
}

func (r *pgUserRepository) UpdateProfile(ctx context.Context, u *model.User) error {
	query := `UPDATE users SET
                username = $1, name = $2, email = $3, hashed_password = $4,
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $5
              RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, u.Username, u.Name, u.Email, u.HashedPassword, u.ID).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", u.ID, common.ErrNotFound)
		}
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("username or email already in use: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.UpdateProfile: %w", err)
	}
	return nil
}

func (r *pgUserRepository) TopByXP(ctx context.Context, limit int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY xp DESC, created_at ASC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.TopByXP query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.TopByXP scan: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.TopByXP rows.Err: %w", err)
	}
	return users, nil
}

func (r *pgUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByIDs query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.FindByIDs scan: %w", err)
		}
		out[u.ID] = *u
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.FindByIDs rows.Err: %w", err)
	}
	return out, nil
}

func (r *pgUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgUserRepository.Count: %w", err)
	}
	return n, nil
}
