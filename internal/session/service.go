package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/models"
	"github.com/Karamelishe/TgBOT/internal/repository"
)

// Service mediates between the dialog FSM and the persisted state.
type Service struct {
	repo   repository.StateRepository
	fsm    *FSM
	logger *zerolog.Logger
}

func NewService(repo repository.StateRepository, logger *zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		fsm:    NewFSM(),
		logger: logger,
	}
}

// Current returns the user's dialog state, or an idle state when none
// is stored (expired or never started).
func (s *Service) Current(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := s.repo.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.UserState{UserID: userID, Step: string(StepIdle)}, nil
	}
	return state, nil
}

// Transition moves the user's dialog to the given step, carrying over
// the collected values plus any updates. Disallowed transitions reset
// the dialog instead of corrupting it; when the target is unreachable
// even from idle, the returned state stays on StepIdle so the caller
// can tell the dialog is gone.
func (s *Service) Transition(ctx context.Context, userID int64, to Step, updates map[string]interface{}) (*models.UserState, error) {
	state, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	from := Step(state.Step)
	if !s.fsm.CanTransition(from, to) {
		s.logger.Debug().
			Int64("user_id", userID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Disallowed dialog transition, resetting")
		state = &models.UserState{UserID: userID, Step: string(StepIdle)}
		if !s.fsm.CanTransition(StepIdle, to) {
			if err := s.repo.ClearState(ctx, userID); err != nil {
				return nil, err
			}
			return state, nil
		}
	}

	state.Step = string(to)
	for k, v := range updates {
		state.Set(k, v)
	}
	if err := s.repo.SetState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Reset clears the user's dialog state.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	return s.repo.ClearState(ctx, userID)
}

// Allowed reports whether the user is within the per-user action rate
// limit.
func (s *Service) Allowed(ctx context.Context, userID int64, limit int, window time.Duration) bool {
	ok, err := s.repo.CheckRateLimit(ctx, userID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Rate limit check failed, allowing")
		return true
	}
	return ok
}
