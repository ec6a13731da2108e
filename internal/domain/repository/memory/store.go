// Package memory implements the repository interfaces in process memory.
// Transactions are serialized and rolled back by restoring a snapshot, which
// makes the store a stand-in for Postgres in service tests.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"

	"code_dojo/internal/domain/model"
	"code_dojo/internal/platform/database"
)

type progressKey struct{ userID, exerciseID string }

type userBadgeKey struct{ userID, badgeID string }

type state struct {
	users      map[string]model.User
	exercises  map[string]model.Exercise
	categories map[string]model.Category
	progress   map[progressKey]model.UserProgress
	badges     map[string]model.Badge // by code
	userBadges map[userBadgeKey]model.UserBadge
}

func (s state) clone() state {
	return state{
		users:      maps.Clone(s.users),
		exercises:  maps.Clone(s.exercises),
		categories: maps.Clone(s.categories),
		progress:   maps.Clone(s.progress),
		badges:     maps.Clone(s.badges),
		userBadges: maps.Clone(s.userBadges),
	}
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data state

	failures map[string]error
	txCount  int
}

func NewStore() *Store {
	return &Store{
		data: state{
			users:      map[string]model.User{},
			exercises:  map[string]model.Exercise{},
			categories: map[string]model.Category{},
			progress:   map[progressKey]model.UserProgress{},
			badges:     map[string]model.Badge{},
			userBadges: map[userBadgeKey]model.UserBadge{},
		},
		failures: map[string]error{},
	}
}

// RunInTx runs fn with a nil *sql.Tx. Transactions run one at a time and any
// error or panic restores the state seen when fn started.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.txCount++
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err := fn(nil); err != nil {
		restore()
		return err
	}
	return nil
}

// FailOn makes the named operation (e.g. "UpdateGamification") return err
// until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// failure must be called with mu held.
func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("memory.%s: %w", op, err)
	}
	return nil
}

// TxCount is the number of transactions started.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

func (s *Store) PutExercise(e model.Exercise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.exercises[e.ID] = e
}

func (s *Store) PutCategory(c model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.categories[c.ID] = c
}

func (s *Store) PutBadge(b model.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.badges[b.Code] = b
}

// User returns a copy of the stored user.
func (s *Store) User(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	return u, ok
}

func (s *Store) Progress(userID, exerciseID string) (model.UserProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.progress[progressKey{userID, exerciseID}]
	return p, ok
}

func (s *Store) ProgressCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.progress)
}

// UserBadgeCodes lists the badge codes a user holds.
func (s *Store) UserBadgeCodes(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := map[string]string{}
	for code, b := range s.data.badges {
		byID[b.ID] = code
	}
	var codes []string
	for k := range s.data.userBadges {
		if k.userID == userID {
			codes = append(codes, byID[k.badgeID])
		}
	}
	return codes
}

// SeedBadgeCatalog loads the production badge catalog, with ids "badge-<code>".
func (s *Store) SeedBadgeCatalog() {
	for _, b := range database.BadgeCatalog {
		desc, icon := b.Description, b.Icon
		s.PutBadge(model.Badge{ID: "badge-" + b.Code, Code: b.Code, Name: b.Name, Description: &desc, Icon: &icon})
	}
}
