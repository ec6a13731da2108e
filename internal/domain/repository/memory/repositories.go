package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"

	"github.com/google/uuid"
)

func (s *Store) Users() repository.UserRepository            { return userRepo{s} }
func (s *Store) Exercises() repository.ExerciseRepository    { return exerciseRepo{s} }
func (s *Store) Categories() repository.CategoryRepository   { return categoryRepo{s} }
func (s *Store) ProgressRepo() repository.ProgressRepository { return progressRepo{s} }
func (s *Store) Badges() repository.BadgeRepository          { return badgeRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("CreateUser"); err != nil {
		return err
	}
	for _, existing := range r.s.data.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	if u.Level == 0 {
		u.Level = 1
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt, u.LastActive = now, now, now
	r.s.data.users[u.ID] = *u
	return nil
}

func (r userRepo) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", common.ErrNotFound)
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

// FindByIDForUpdate relies on RunInTx serializing transactions.
func (r userRepo) FindByIDForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.User, error) {
	r.s.mu.Lock()
	err := r.s.failure("FindByIDForUpdate")
	r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r userRepo) UpdateGamification(_ context.Context, _ *sql.Tx, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("UpdateGamification"); err != nil {
		return err
	}
	stored, ok := r.s.data.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, common.ErrNotFound)
	}
	stored.XP, stored.Level, stored.Streak = u.XP, u.Level, u.Streak
	stored.LastActive, stored.LastStreak = u.LastActive, u.LastStreak
	stored.UpdatedAt = time.Now().UTC()
	r.s.data.users[u.ID] = stored
	return nil
}

func (r userRepo) UpdateProfile(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, common.ErrNotFound)
	}
	for id, other := range r.s.data.users {
		if id != u.ID && (other.Username == u.Username || other.Email == u.Email) {
			return fmt.Errorf("username or email already in use: %w", common.ErrConflict)
		}
	}
	stored.Username, stored.Name, stored.Email, stored.HashedPassword = u.Username, u.Name, u.Email, u.HashedPassword
	stored.UpdatedAt = time.Now().UTC()
	r.s.data.users[u.ID] = stored
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r userRepo) TopByXP(_ context.Context, limit int) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]model.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].XP != users[j].XP {
			return users[i].XP > users[j].XP
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r userRepo) FindByIDs(_ context.Context, ids []string) (map[string]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]model.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.data.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r userRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.users), nil
}

type exerciseRepo struct{ s *Store }

func (r exerciseRepo) withCategory(e model.Exercise) model.Exercise {
	if e.CategoryID != nil {
		if c, ok := r.s.data.categories[*e.CategoryID]; ok {
			e.Category = &c
		}
	}
	return e
}

func (r exerciseRepo) FindByID(_ context.Context, id string) (*model.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("FindExercise"); err != nil {
		return nil, err
	}
	e, ok := r.s.data.exercises[id]
	if !ok {
		return nil, fmt.Errorf("exercise %s: %w", id, common.ErrNotFound)
	}
	e = r.withCategory(e)
	return &e, nil
}

func (r exerciseRepo) List(_ context.Context, filter repository.ExerciseFilter) ([]model.Exercise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []model.Exercise{}
	for _, e := range r.s.data.exercises {
		e = r.withCategory(e)
		if filter.CategorySlug != "" && (e.Category == nil || e.Category.Slug != filter.CategorySlug) {
			continue
		}
		if filter.Week > 0 && e.Week != filter.Week {
			continue
		}
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		ci, cj := categoryOrder(list[i]), categoryOrder(list[j])
		if ci != cj {
			return ci < cj
		}
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func categoryOrder(e model.Exercise) int {
	if e.Category == nil {
		return int(^uint(0) >> 1)
	}
	return e.Category.SortOrder
}

func (r exerciseRepo) Create(_ context.Context, e *model.Exercise) error {
	if len(e.Solution) == 0 {
		return fmt.Errorf("%v: %w", model.ErrEmptySolution, common.ErrValidation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.CategoryID != nil {
		if _, ok := r.s.data.categories[*e.CategoryID]; !ok {
			return fmt.Errorf("category does not exist: %w", common.ErrBadRequest)
		}
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	r.s.data.exercises[e.ID] = *e
	return nil
}

func (r exerciseRepo) Update(_ context.Context, e *model.Exercise) error {
	if len(e.Solution) == 0 {
		return fmt.Errorf("%v: %w", model.ErrEmptySolution, common.ErrValidation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.data.exercises[e.ID]
	if !ok {
		return fmt.Errorf("exercise %s: %w", e.ID, common.ErrNotFound)
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	r.s.data.exercises[e.ID] = *e
	return nil
}

func (r exerciseRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.exercises[id]; !ok {
		return fmt.Errorf("exercise %s: %w", id, common.ErrNotFound)
	}
	for k := range r.s.data.progress {
		if k.exerciseID == id {
			return fmt.Errorf("cannot delete exercise %s, users have progress: %w", id, common.ErrBadRequest)
		}
	}
	delete(r.s.data.exercises, id)
	return nil
}

func (r exerciseRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.exercises), nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) List(context.Context) ([]model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []model.Category{}
	for _, c := range r.s.data.categories {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (r categoryRepo) FindBySlug(_ context.Context, slug string) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("category %s: %w", slug, common.ErrNotFound)
}

func (r categoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.categories {
		if existing.Slug == c.Slug || existing.Name == c.Name {
			return fmt.Errorf("category with this name or slug already exists: %w", common.ErrConflict)
		}
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.data.categories[c.ID] = *c
	return nil
}

func (r categoryRepo) Count(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.categories), nil
}

type progressRepo struct{ s *Store }

func (r progressRepo) Upsert(_ context.Context, _ *sql.Tx, p *model.UserProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("UpsertProgress"); err != nil {
		return err
	}
	if _, ok := r.s.data.users[p.UserID]; !ok {
		return fmt.Errorf("user or exercise missing: %w", common.ErrNotFound)
	}
	if _, ok := r.s.data.exercises[p.ExerciseID]; !ok {
		return fmt.Errorf("user or exercise missing: %w", common.ErrNotFound)
	}

	key := progressKey{p.UserID, p.ExerciseID}
	now := time.Now().UTC()
	row := *p
	if existing, ok := r.s.data.progress[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if existing.CompletedAt != nil {
			row.CompletedAt = existing.CompletedAt
		}
	} else {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	r.s.data.progress[key] = row
	*p = row
	return nil
}

func (r progressRepo) HasCompletionBetween(_ context.Context, _ *sql.Tx, userID string, since, before time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, p := range r.s.data.progress {
		if k.userID != userID || !p.Completed || p.CompletedAt == nil {
			continue
		}
		if !p.CompletedAt.Before(since) && p.CompletedAt.Before(before) {
			return true, nil
		}
	}
	return false, nil
}

func (r progressRepo) CountCompleted(_ context.Context, _ *sql.Tx, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, p := range r.s.data.progress {
		if k.userID == userID && p.Completed {
			n++
		}
	}
	return n, nil
}

func (r progressRepo) FindByUserAndExercise(_ context.Context, userID, exerciseID string) (*model.UserProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.progress[progressKey{userID, exerciseID}]
	if !ok {
		return nil, fmt.Errorf("progress: %w", common.ErrNotFound)
	}
	return &p, nil
}

func (r progressRepo) ListByUser(_ context.Context, userID string) ([]model.UserProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []model.UserProgress{}
	for k, p := range r.s.data.progress {
		if k.userID == userID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (r progressRepo) CountAllCompleted(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.data.progress {
		if p.Completed {
			n++
		}
	}
	return n, nil
}

type badgeRepo struct{ s *Store }

func (r badgeRepo) FindByCode(_ context.Context, _ *sql.Tx, code string) (*model.Badge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.badges[code]
	if !ok {
		return nil, fmt.Errorf("badge %s: %w", code, common.ErrNotFound)
	}
	return &b, nil
}

func (r badgeRepo) Award(_ context.Context, _ *sql.Tx, userID, badgeID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("AwardBadge"); err != nil {
		return false, err
	}
	key := userBadgeKey{userID, badgeID}
	if _, ok := r.s.data.userBadges[key]; ok {
		return false, nil
	}
	r.s.data.userBadges[key] = model.UserBadge{ID: uuid.NewString(), UserID: userID, BadgeID: badgeID, EarnedAt: at}
	return true, nil
}

func (r badgeRepo) ListByUser(_ context.Context, userID string) ([]model.UserBadge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byID := map[string]model.Badge{}
	for _, b := range r.s.data.badges {
		byID[b.ID] = b
	}
	list := []model.UserBadge{}
	for k, ub := range r.s.data.userBadges {
		if k.userID != userID {
			continue
		}
		if b, ok := byID[ub.BadgeID]; ok {
			ub.Badge = &b
		}
		list = append(list, ub)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EarnedAt.After(list[j].EarnedAt) })
	return list, nil
}
