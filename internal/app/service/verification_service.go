package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"code_dojo/internal/app/grading"
	"code_dojo/internal/app/reward"
	"code_dojo/internal/common"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository"
	"code_dojo/internal/platform/database"
	"code_dojo/internal/platform/judge"
	"code_dojo/internal/platform/metrics"

	"github.com/google/uuid"
)

// Judge runs source code against stdin.
type Judge interface {
	Submit(ctx context.Context, source, stdin string) (*judge.Outcome, error)
}

// ProgressPublisher receives an event for every committed correct submission.
type ProgressPublisher interface {
	Publish(ctx context.Context, event model.ProgressEvent) error
}

const incorrectMessage = "Incorrect solution"

type VerifyRequest struct {
	ExerciseID  string          `json:"-"`
	UserID      string          `json:"-"`
	Code        string          `json:"code" validate:"required,maxbytes"`
	TimeTaken   int             `json:"time_taken" validate:"gte=0"`
	TimeDetails json.RawMessage `json:"time_details,omitempty"`
}

// VerificationResult is either a correct summary (xp, level, streak, badges)
// or an incorrect one (message, judge output and error).
type VerificationResult struct {
	Correct      bool
	XPEarned     int
	NewLevel     int
	Streak       int
	EarnedBadges []model.Badge
	TimeTaken    int
	TimeDetails  json.RawMessage

	Message  string
	Output   string
	Error    string
	Verdict  string
	StatusID int
}

func (r VerificationResult) MarshalJSON() ([]byte, error) {
	if r.Correct {
		badges := r.EarnedBadges
		if badges == nil {
			badges = []model.Badge{}
		}
		return json.Marshal(struct {
			Correct      bool            `json:"correct"`
			XPEarned     int             `json:"xp_earned"`
			NewLevel     int             `json:"new_level"`
			Streak       int             `json:"streak"`
			EarnedBadges []model.Badge   `json:"earned_badges"`
			TimeTaken    int             `json:"time_taken"`
			TimeDetails  json.RawMessage `json:"time_details,omitempty"`
		}{true, r.XPEarned, r.NewLevel, r.Streak, badges, r.TimeTaken, r.TimeDetails})
	}
	return json.Marshal(struct {
		Correct  bool   `json:"correct"`
		Message  string `json:"message"`
		Output   string `json:"output"`
		Error    string `json:"error"`
		Verdict  string `json:"verdict,omitempty"`
		StatusID int    `json:"status_id,omitempty"`
	}{false, r.Message, r.Output, r.Error, r.Verdict, r.StatusID})
}

type VerificationService struct {
	exercises repository.ExerciseRepository
	progress  repository.ProgressRepository
	judge     Judge
	rewards   *reward.Engine
	txRunner  database.TxRunner
	events    ProgressPublisher
	now       func() time.Time
}

func NewVerificationService(
	exercises repository.ExerciseRepository,
	progress repository.ProgressRepository,
	judgeClient Judge,
	rewards *reward.Engine,
	txRunner database.TxRunner,
	events ProgressPublisher, // optional
) *VerificationService {
	return &VerificationService{
		exercises: exercises,
		progress:  progress,
		judge:     judgeClient,
		rewards:   rewards,
		txRunner:  txRunner,
		events:    events,
		now:       time.Now,
	}
}

// Verify judges a submission and records the attempt. Progress and rewards
// are written in one transaction; nothing is persisted when the source is
// rejected before judging or when any step fails.
func (s *VerificationService) Verify(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	if req.ExerciseID == "" || req.UserID == "" {
		return nil, common.Errorf("exercise and user are required: %w", common.ErrBadRequest)
	}
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if len(req.TimeDetails) > 0 && !json.Valid(req.TimeDetails) {
		return nil, common.Errorf("time_details must be valid JSON: %w", common.ErrValidation)
	}

	// A client that disconnects after the judge accepts must not lose the
	// solve. The judge client's HTTP timeout bounds the detached work.
	ctx = context.WithoutCancel(ctx)

	exercise, err := s.exercises.FindByID(ctx, req.ExerciseID)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, err
	}

	outcome, err := s.judge.Submit(ctx, req.Code, exercise.TestInput)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, common.Errorf("verify exercise %s: %w", exercise.ID, err)
	}
	if outcome.Rejected {
		metrics.Verifications.WithLabelValues("rejected").Inc()
		return &VerificationResult{
			Correct:  false,
			Message:  outcome.Message,
			Output:   outcome.Output,
			Error:    outcome.Error,
			Verdict:  judge.Classify(outcome.StatusID).Message,
			StatusID: outcome.StatusID,
		}, nil
	}

	correct := outcome.Success && grading.Matches(outcome.Output, exercise.Solution)
	// Postgres stores microseconds.
	now := s.now().UTC().Truncate(time.Microsecond)

	var applied *reward.Outcome
	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		progress := &model.UserProgress{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			ExerciseID:  exercise.ID,
			Code:        req.Code,
			Completed:   correct,
			TimeTaken:   req.TimeTaken,
			TimeDetails: req.TimeDetails,
		}
		if correct {
			progress.Score = exercise.XPReward
			progress.CompletedAt = &now
		}
		if err := s.progress.Upsert(ctx, tx, progress); err != nil {
			return err
		}
		if !correct {
			return nil
		}
		var err error
		applied, err = s.rewards.Apply(ctx, tx, req.UserID, exercise, req.TimeTaken, now)
		return err
	})
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		slog.Error("verification rolled back", "exercise_id", exercise.ID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("verify exercise %s: %w", exercise.ID, err)
	}

	if !correct {
		metrics.Verifications.WithLabelValues("incorrect").Inc()
		return &VerificationResult{
			Correct:  false,
			Message:  incorrectMessage,
			Output:   outcome.Output,
			Error:    outcome.Error,
			Verdict:  outcome.Message,
			StatusID: outcome.StatusID,
		}, nil
	}

	metrics.Verifications.WithLabelValues("correct").Inc()
	s.publish(ctx, model.ProgressEvent{
		UserID:     req.UserID,
		ExerciseID: exercise.ID,
		Correct:    true,
		XP:         applied.TotalXP,
		Level:      applied.NewLevel,
		Streak:     applied.Streak,
		OccurredAt: now,
	})

	return &VerificationResult{
		Correct:      true,
		XPEarned:     applied.XPEarned,
		NewLevel:     applied.NewLevel,
		Streak:       applied.Streak,
		EarnedBadges: applied.EarnedBadges,
		TimeTaken:    req.TimeTaken,
		TimeDetails:  req.TimeDetails,
	}, nil
}

// publish is best effort: the verification already committed.
func (s *VerificationService) publish(ctx context.Context, event model.ProgressEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish progress event", "user_id", event.UserID, "exercise_id", event.ExerciseID, "error", err)
	}
}
