package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code_dojo/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty is returned by Pop when no event arrived before the timeout.
var ErrQueueEmpty = errors.New("queue: no event available")

// EventQueue is a Redis list of JSON encoded progress events. Producers LPUSH,
// consumers BRPOP, so events are handled in publish order.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	return &EventQueue{rdb: rdb, name: name}
}

func (q *EventQueue) Name() string { return q.name }

func (q *EventQueue) Publish(ctx context.Context, event model.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue.Publish marshal: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("queue.Publish %s: %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next event.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*model.ProgressEvent, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("queue.Pop %s: %w", q.name, err)
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return nil, ErrQueueEmpty
	}

	var event model.ProgressEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		return nil, fmt.Errorf("queue.Pop decode: %w", err)
	}
	return &event, nil
}

// Requeue pushes an event back to the consumer end of the list.
func (q *EventQueue) Requeue(ctx context.Context, event model.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue.Requeue marshal: %w", err)
	}
	return q.rdb.RPush(ctx, q.name, payload).Err()
}
