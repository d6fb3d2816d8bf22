package streak

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Get(ctx context.Context, userID uuid.UUID) (*Streak, error) {
	args := m.Called(ctx, userID)
	if s, ok := args.Get(0).(*Streak); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Upsert(ctx context.Context, s Streak) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func day(d int, hour int) time.Time {
	return time.Date(2024, 6, d, hour, 0, 0, 0, time.UTC)
}

func newService(repo Repository, now *time.Time) *Service {
	return NewService(repo, ServiceOptions{
		Now: func() time.Time { return *now },
	}, zerolog.Nop())
}

func TestFirstPlayStartsStreak(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	now := day(1, 10)
	svc := newService(repo, &now)

	got, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Current)
	assert.Equal(t, 1, got.Longest)
	assert.True(t, got.IsNew)
	repo.AssertExpectations(t)
}

func TestPlayRecorderDelegates(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	now := day(1, 10)
	svc := newService(repo, &now)
	rec := NewPlayRecorder(svc)

	require.NoError(t, rec.RecordPlay(context.Background(), userID))

	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Current)
	repo.AssertExpectations(t)
}

func TestSameDayIsNoOp(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	now := day(1, 9)
	svc := newService(repo, &now)

	first, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)

	// Later the same day: nothing changes and nothing is written.
	now = day(1, 23)
	again, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, first.Current, again.Current)
	assert.Equal(t, first.LastPlayed, again.LastPlayed)
	repo.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestConsecutiveDayExtends(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).
		Return(&Streak{UserID: userID, Current: 3, Longest: 5, LastPlayed: day(1, 23)}, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	// Just past midnight still counts as the next calendar day.
	now := day(2, 0)
	svc := newService(repo, &now)

	got, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Current)
	assert.Equal(t, 5, got.Longest)
	assert.False(t, got.IsNew)
}

func TestExtendingPastLongestRaisesIt(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).
		Return(&Streak{UserID: userID, Current: 5, Longest: 5, LastPlayed: day(1, 12)}, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	now := day(2, 12)
	svc := newService(repo, &now)

	got, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Current)
	assert.Equal(t, 6, got.Longest)
}

func TestLapsedStreakRestarts(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).
		Return(&Streak{UserID: userID, Current: 7, Longest: 9, LastPlayed: day(1, 12)}, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	// Two calendar days skipped.
	now := day(4, 12)
	svc := newService(repo, &now)

	got, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Current)
	assert.Equal(t, 9, got.Longest, "longest survives a lapse")
	assert.True(t, got.IsNew)
}

func TestPersistFailureSurfacesError(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	now := day(1, 10)
	svc := newService(repo, &now)

	_, err := svc.RecordPlay(context.Background(), userID)
	assert.Error(t, err)

	// The failed write must not poison the cache.
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Current)
}

func TestClearCacheForcesReload(t *testing.T) {
	userID := uuid.New()
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, userID).Return(nil, nil).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	now := day(1, 10)
	svc := newService(repo, &now)

	_, err := svc.RecordPlay(context.Background(), userID)
	require.NoError(t, err)

	// Cached: no further repo reads.
	_, err = svc.Get(context.Background(), userID)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Get", 1)

	svc.ClearCache(userID)
	repo.On("Get", mock.Anything, userID).
		Return(&Streak{UserID: userID, Current: 1, Longest: 1, LastPlayed: day(1, 10)}, nil).Once()
	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Current)
	repo.AssertNumberOfCalls(t, "Get", 2)
}
