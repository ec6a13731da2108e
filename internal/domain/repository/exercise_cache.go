package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"code_dojo/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// cachedExerciseRepository serves FindByID from Redis and falls through to
// the wrapped repository on a miss. Concurrent misses for one id share a
// single database read. Redis failures degrade to uncached reads.
type cachedExerciseRepository struct {
	ExerciseRepository
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedExerciseRepository(next ExerciseRepository, rdb *redis.Client, ttl time.Duration) ExerciseRepository {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &cachedExerciseRepository{ExerciseRepository: next, rdb: rdb, ttl: ttl}
}

func exerciseCacheKey(id string) string {
	return "exercise:" + id
}

func (r *cachedExerciseRepository) FindByID(ctx context.Context, id string) (*model.Exercise, error) {
	key := exerciseCacheKey(id)
	if raw, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var e model.Exercise
		if err := json.Unmarshal(raw, &e); err == nil {
			return &e, nil
		}
		slog.Warn("discarding corrupt exercise cache entry", "exercise_id", id)
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("exercise cache read failed", "exercise_id", id, "error", err)
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		e, err := r.ExerciseRepository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(e); err == nil {
			if err := r.rdb.Set(ctx, key, payload, r.ttl).Err(); err != nil {
				slog.Warn("exercise cache write failed", "exercise_id", id, "error", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	// Shared singleflight result; copy before handing it out.
	e := *v.(*model.Exercise)
	return &e, nil
}

func (r *cachedExerciseRepository) Update(ctx context.Context, e *model.Exercise) error {
	if err := r.ExerciseRepository.Update(ctx, e); err != nil {
		return err
	}
	r.invalidate(ctx, e.ID)
	return nil
}

func (r *cachedExerciseRepository) Delete(ctx context.Context, id string) error {
	if err := r.ExerciseRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedExerciseRepository) invalidate(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, exerciseCacheKey(id)).Err(); err != nil {
		slog.Warn("exercise cache invalidation failed", "exercise_id", id, "error", err)
	}
}
