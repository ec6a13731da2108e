package service

import (
	"context"
	"fmt"
	"log/slog"

	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	leaderboardRefillSize   = 1000
)

// LeaderboardService ranks users by XP from a Redis sorted set. Postgres
// stays the source of truth: an empty set is refilled from it and a Redis
// outage falls back to it.
type LeaderboardService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
	key      string
}

func NewLeaderboardService(userRepo repository.UserRepository, rdb *redis.Client, key string) *LeaderboardService {
	return &LeaderboardService{userRepo: userRepo, rdb: rdb, key: key}
}

// Record raises the user's score to xp. Events can arrive out of order, so a
// lower total never replaces a higher one.
func (s *LeaderboardService) Record(ctx context.Context, userID string, xp int) error {
	if err := s.rdb.ZAddGT(ctx, s.key, redis.Z{Score: float64(xp), Member: userID}).Err(); err != nil {
		return fmt.Errorf("leaderboard.Record %s: %w", userID, err)
	}
	return nil
}

func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	scores, err := s.ranked(ctx, limit)
	if err != nil {
		slog.Warn("leaderboard unavailable in redis, reading postgres", "error", err)
		return s.topFromDB(ctx, limit)
	}

	ids := make([]string, 0, len(scores))
	for _, z := range scores {
		ids = append(ids, z.Member.(string))
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(scores))
	for _, z := range scores {
		u, ok := users[z.Member.(string)]
		if !ok {
			// deleted account still in the set
			continue
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:     len(entries) + 1,
			UserID:   u.ID,
			Username: u.Username,
			XP:       int(z.Score),
			Level:    u.Level,
		})
	}
	return entries, nil
}

func (s *LeaderboardService) ranked(ctx context.Context, limit int) ([]redis.Z, error) {
	n, err := s.rdb.ZCard(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := s.refill(ctx); err != nil {
			return nil, err
		}
	}
	return s.rdb.ZRevRangeWithScores(ctx, s.key, 0, int64(limit-1)).Result()
}

func (s *LeaderboardService) refill(ctx context.Context) error {
	users, err := s.userRepo.TopByXP(ctx, leaderboardRefillSize)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(users))
	for _, u := range users {
		members = append(members, redis.Z{Score: float64(u.XP), Member: u.ID})
	}
	if err := s.rdb.ZAddGT(ctx, s.key, members...).Err(); err != nil {
		return err
	}
	slog.Info("leaderboard refilled from postgres", "key", s.key, "users", len(members))
	return nil
}

func (s *LeaderboardService) topFromDB(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	users, err := s.userRepo.TopByXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, model.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   u.ID,
			Username: u.Username,
			XP:       u.XP,
			Level:    u.Level,
		})
	}
	return entries, nil
}
