// Package streak tracks consecutive-day play streaks.
package streak

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Streak is a user's consecutive-day play record.
type Streak struct {
	UserID     uuid.UUID `json:"user_id"`
	Current    int       `json:"current"`
	Longest    int       `json:"longest"`
	LastPlayed time.Time `json:"last_played"`
	// IsNew is set when a lapsed streak restarted from one.
	IsNew bool `json:"is_new"`
}

// Repository persists streaks.
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*Streak, error)
	Upsert(ctx context.Context, s Streak) error
}

// ServiceOptions tune streak evaluation.
type ServiceOptions struct {
	// Location fixes the calendar used for day boundaries.
	Location *time.Location
	Now      func() time.Time
}

func (o *ServiceOptions) defaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service evaluates and persists play streaks. Reads go through a small
// cache so the hot profile path does not hit the database each time.
type Service struct {
	repo   Repository
	opts   ServiceOptions
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[uuid.UUID]Streak
}

// NewService builds a streak service.
func NewService(repo Repository, opts ServiceOptions, logger zerolog.Logger) *Service {
	opts.defaults()
	return &Service{
		repo:   repo,
		opts:   opts,
		logger: logger,
		cache:  make(map[uuid.UUID]Streak),
	}
}

// RecordPlay updates the user's streak for a finished game. The persisted
// state is written before the updated streak is returned, so a crash cannot
// hand the user a streak the store never saw. Multiple plays on the same
// calendar day are a no-op.
func (s *Service) RecordPlay(ctx context.Context, userID uuid.UUID) (Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadLocked(ctx, userID)
	if err != nil {
		return Streak{}, err
	}

	now := s.opts.Now()
	if cur.Current > 0 && sameDay(cur.LastPlayed, now, s.opts.Location) {
		return cur, nil
	}

	next := s.advance(cur, now)
	if err := s.repo.Upsert(ctx, next); err != nil {
		return Streak{}, fmt.Errorf("persist streak: %w", err)
	}
	s.cache[userID] = next

	s.logger.Debug().
		Str("user_id", userID.String()).
		Int("current", next.Current).
		Int("longest", next.Longest).
		Bool("is_new", next.IsNew).
		Msg("streak recorded")
	return next, nil
}

// advance computes the next streak state for a play at now.
func (s *Service) advance(cur Streak, now time.Time) Streak {
	next := cur
	next.IsNew = false
	next.LastPlayed = now

	switch {
	case cur.Current == 0 || cur.LastPlayed.IsZero():
		next.Current = 1
		next.IsNew = true
	case sameDay(cur.LastPlayed, now, s.opts.Location):
		// Already counted today.
		return cur
	case daysBetween(cur.LastPlayed, now, s.opts.Location) == 1:
		next.Current = cur.Current + 1
	default:
		// Lapsed: restart from one.
		next.Current = 1
		next.IsNew = true
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	return next
}

// Get returns the user's streak, from cache when warm.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, userID)
}

func (s *Service) loadLocked(ctx context.Context, userID uuid.UUID) (Streak, error) {
	if cached, ok := s.cache[userID]; ok {
		return cached, nil
	}
	stored, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Streak{}, fmt.Errorf("load streak: %w", err)
	}
	if stored == nil {
		return Streak{UserID: userID}, nil
	}
	s.cache[userID] = *stored
	return *stored, nil
}

// PlayRecorder adapts Service for callers that only need to mark a play,
// such as the game managers settling a session.
type PlayRecorder struct {
	svc *Service
}

// NewPlayRecorder wraps a streak service.
func NewPlayRecorder(svc *Service) *PlayRecorder {
	return &PlayRecorder{svc: svc}
}

// RecordPlay marks a finished game for the user's streak.
func (r *PlayRecorder) RecordPlay(ctx context.Context, userID uuid.UUID) error {
	_, err := r.svc.RecordPlay(ctx, userID)
	return err
}

// ClearCache drops a user's cached streak, e.g. on logout.
func (s *Service) ClearCache(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, userID)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween counts calendar-day boundaries between a and b.
func daysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, loc)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, loc)
	return int(end.Sub(start).Hours() / 24)
}
