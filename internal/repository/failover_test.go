package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Karamelishe/TgBOT/internal/models"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserState), args.Error(1)
}

func (m *mockRepo) SetState(ctx context.Context, state *models.UserState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *mockRepo) ClearState(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

var errRedisDown = errors.New("connection refused")

func newFailover(primary, fallback StateRepository) *FailoverStateRepository {
	logger := zerolog.Nop()
	return NewFailoverStateRepository(primary, fallback, &logger)
}

func TestFailoverGetStateUsesPrimary(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	repo := newFailover(primary, fallback)

	want := &models.UserState{UserID: 7, Step: "choose_date"}
	primary.On("GetState", mock.Anything, int64(7)).Return(want, nil)

	got, err := repo.GetState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	fallback.AssertNotCalled(t, "GetState")
}

func TestFailoverGetStateFallsBack(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	repo := newFailover(primary, fallback)

	want := &models.UserState{UserID: 7, Step: "ask_guests"}
	primary.On("GetState", mock.Anything, int64(7)).Return(nil, errRedisDown)
	fallback.On("GetState", mock.Anything, int64(7)).Return(want, nil)

	got, err := repo.GetState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFailoverSetStateFallsBack(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	repo := newFailover(primary, fallback)

	state := &models.UserState{UserID: 7, Step: "idle"}
	primary.On("SetState", mock.Anything, state).Return(errRedisDown)
	fallback.On("SetState", mock.Anything, state).Return(nil)

	assert.NoError(t, repo.SetState(context.Background(), state))
	fallback.AssertExpectations(t)
}

func TestFailoverClearStateClearsBoth(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	repo := newFailover(primary, fallback)

	// Clearing must reach the fallback too, or a stale fallback state
	// could resurface after a later failover.
	primary.On("ClearState", mock.Anything, int64(7)).Return(nil)
	fallback.On("ClearState", mock.Anything, int64(7)).Return(nil)

	assert.NoError(t, repo.ClearState(context.Background(), 7))
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestFailoverRateLimitFallsBack(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	repo := newFailover(primary, fallback)

	primary.On("CheckRateLimit", mock.Anything, int64(7), 20, time.Minute).Return(false, errRedisDown)
	fallback.On("CheckRateLimit", mock.Anything, int64(7), 20, time.Minute).Return(true, nil)

	ok, err := repo.CheckRateLimit(context.Background(), 7, 20, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
