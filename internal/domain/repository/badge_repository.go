package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"

	"github.com/google/uuid"
)

type BadgeRepository interface {
	FindByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Badge, error)
	// Award inserts the (user, badge) pair if absent and reports whether this
	// call created it.
	Award(ctx context.Context, tx *sql.Tx, userID, badgeID string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.UserBadge, error)
}

type pgBadgeRepository struct {
	db *sql.DB
}

func NewPgBadgeRepository(db *sql.DB) BadgeRepository {
	return &pgBadgeRepository{db: db}
}

func (r *pgBadgeRepository) FindByCode(ctx context.Context, tx *sql.Tx, code string) (*model.Badge, error) {
	query := `SELECT id, code, name, description, icon FROM badges WHERE code = $1`
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, code)
	} else {
		row = r.db.QueryRowContext(ctx, query, code)
	}
	b := &model.Badge{}
	if err := row.Scan(&b.ID, &b.Code, &b.Name, &b.Description, &b.Icon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("badge %s: %w", code, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgBadgeRepository.FindByCode: %w", err)
	}
	return b, nil
}

func (r *pgBadgeRepository) Award(ctx context.Context, tx *sql.Tx, userID, badgeID string, at time.Time) (bool, error) {
	query := `INSERT INTO user_badges (id, user_id, badge_id, earned_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, badge_id) DO NOTHING`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, uuid.NewString(), userID, badgeID, at)
	} else {
		res, err = r.db.ExecContext(ctx, query, uuid.NewString(), userID, badgeID, at)
	}
	if err != nil {
		return false, fmt.Errorf("pgBadgeRepository.Award: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgBadgeRepository.Award rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgBadgeRepository) ListByUser(ctx context.Context, userID string) ([]model.UserBadge, error) {
	query := `SELECT ub.id, ub.user_id, ub.badge_id, ub.earned_at,
	                 b.id, b.code, b.name, b.description, b.icon
	          FROM user_badges ub
	          JOIN badges b ON ub.badge_id = b.id
	          WHERE ub.user_id = $1
	          ORDER BY ub.earned_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgBadgeRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	badges := []model.UserBadge{}
	for rows.Next() {
		var ub model.UserBadge
		b := &model.Badge{}
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.EarnedAt,
			&b.ID, &b.Code, &b.Name, &b.Description, &b.Icon); err != nil {
			return nil, fmt.Errorf("pgBadgeRepository.ListByUser scan: %w", err)
		}
		ub.Badge = b
		badges = append(badges, ub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgBadgeRepository.ListByUser rows.Err: %w", err)
	}
	return badges, nil
}
