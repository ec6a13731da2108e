package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"code_dojo/internal/domain/model"
	"code_dojo/internal/platform/metrics"
	"code_dojo/internal/platform/queue"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = 2 * time.Second
	maxAttempts  = 3
)

// Scoreboard receives the new XP total of a user.
type Scoreboard interface {
	Record(ctx context.Context, userID string, xp int) error
}

type eventSource interface {
	Name() string
	Pop(ctx context.Context, timeout time.Duration) (*model.ProgressEvent, error)
	Requeue(ctx context.Context, event model.ProgressEvent) error
}

// ProgressWorker moves committed progress events onto the leaderboard.
type ProgressWorker struct {
	events eventSource
	board  Scoreboard
}

func NewProgressWorker(events *queue.EventQueue, board Scoreboard) *ProgressWorker {
	return &ProgressWorker{events: events, board: board}
}

// Start blocks until ctx is cancelled.
func (w *ProgressWorker) Start(ctx context.Context) {
	slog.Info("progress worker started", "queue", w.events.Name())
	for {
		if ctx.Err() != nil {
			slog.Info("progress worker stopping")
			return
		}

		event, err := w.events.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			slog.Error("failed to pop progress event", "queue", w.events.Name(), "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		w.Handle(ctx, *event)
	}
}

// Handle applies one event. Failed events go back on the queue until they
// have been tried maxAttempts times.
func (w *ProgressWorker) Handle(ctx context.Context, event model.ProgressEvent) {
	if !event.Correct {
		return
	}
	err := w.board.Record(ctx, event.UserID, event.XP)
	if err == nil {
		metrics.ProgressEvents.WithLabelValues("applied").Inc()
		slog.Debug("leaderboard updated", "user_id", event.UserID, "xp", event.XP)
		return
	}

	event.Attempts++
	if event.Attempts >= maxAttempts {
		metrics.ProgressEvents.WithLabelValues("dropped").Inc()
		slog.Error("dropping progress event", "user_id", event.UserID, "attempts", event.Attempts, "error", err)
		return
	}
	if rqErr := w.events.Requeue(ctx, event); rqErr != nil {
		metrics.ProgressEvents.WithLabelValues("dropped").Inc()
		slog.Error("failed to requeue progress event", "user_id", event.UserID, "error", rqErr)
		return
	}
	metrics.ProgressEvents.WithLabelValues("requeued").Inc()
	slog.Warn("progress event requeued", "user_id", event.UserID, "attempts", event.Attempts, "error", err)
}
