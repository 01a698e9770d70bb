package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/models"
)

// FailoverStateRepository tries the primary repository and degrades to
// the fallback when the primary errors. Dialog state lost in the
// degradation is acceptable: the user just restarts the flow.
type FailoverStateRepository struct {
	primary  StateRepository
	fallback StateRepository
	logger   *zerolog.Logger
}

func NewFailoverStateRepository(primary, fallback StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := r.primary.GetState(ctx, userID)
	if err == nil {
		return state, nil
	}
	r.logger.Warn().Err(err).Int64("user_id", userID).Msg("Primary state repo failed, using fallback")
	return r.fallback.GetState(ctx, userID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	err := r.primary.SetState(ctx, state)
	if err == nil {
		return nil
	}
	r.logger.Warn().Err(err).Int64("user_id", state.UserID).Msg("Primary state repo failed, using fallback")
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	err := r.primary.ClearState(ctx, userID)
	if err == nil {
		return r.fallback.ClearState(ctx, userID)
	}
	r.logger.Warn().Err(err).Int64("user_id", userID).Msg("Primary state repo failed, using fallback")
	return r.fallback.ClearState(ctx, userID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	ok, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
	if err == nil {
		return ok, nil
	}
	r.logger.Warn().Err(err).Int64("user_id", userID).Msg("Primary rate limit failed, using fallback")
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
