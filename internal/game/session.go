package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is one in-flight timed quiz run for a single user. All state
// lives on the session itself; concurrent access (answer submission vs.
// the expiry timer) is serialized by the mutex, and the settled flag
// guarantees the terminal transition happens exactly once regardless of
// which path wins.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Difficulty string
	Mode       string

	mu        sync.Mutex
	rng       *rand.Rand
	questions questionSource
	current   *Question

	score      int
	streak     int
	bestStreak int
	correct    int
	answered   int
	log        []AnswerRecord

	startedAt     time.Time
	duration      time.Duration
	paused        bool
	pausedElapsed time.Duration
	settled       bool
	result        Result

	feedback    *Feedback
	feedbackSeq int

	timer   *time.Timer
	subs    map[int]chan Snapshot
	nextSub int

	now           func() time.Time
	feedbackDelay time.Duration
	onSettle      func(*Session, Result)
	logger        zerolog.Logger
}

func newSession(userID uuid.UUID, difficulty, mode string, duration, feedbackDelay time.Duration, now func() time.Time, onSettle func(*Session, Result), logger zerolog.Logger) *Session {
	s := &Session{
		ID:            uuid.New(),
		UserID:        userID,
		Difficulty:    difficulty,
		Mode:          mode,
		rng:           rand.New(rand.NewSource(now().UnixNano())),
		questions:     newQuestionSource(mode, difficulty),
		duration:      duration,
		startedAt:     now(),
		subs:          make(map[int]chan Snapshot),
		now:           now,
		feedbackDelay: feedbackDelay,
		onSettle:      onSettle,
		logger:        logger,
	}
	s.current = s.questions.next(s.rng)
	return s
}

// start arms the wall-clock expiry timer. Called once by the manager after
// construction so the timer never fires on a half-built session.
func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armTimerLocked()
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	remaining := s.remainingLocked()
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	s.timer = time.AfterFunc(remaining, s.expire)
}

// remainingLocked derives time left from the wall clock rather than a
// decrementing counter, so backgrounding the app cannot stretch a run.
func (s *Session) remainingLocked() time.Duration {
	if s.settled {
		return 0
	}
	remaining := s.duration - s.elapsedLocked()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Session) elapsedLocked() time.Duration {
	var elapsed time.Duration
	if s.paused {
		elapsed = s.pausedElapsed
	} else {
		elapsed = s.now().Sub(s.startedAt)
	}
	if elapsed > s.duration {
		elapsed = s.duration
	}
	return elapsed
}

// SubmitAnswer grades an option against the current question, applies
// scoring, and advances to the next question.
func (s *Session) SubmitAnswer(option string) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settled {
		return Feedback{}, ErrSessionSettled
	}
	if s.paused {
		return Feedback{}, ErrSessionPaused
	}
	if s.remainingLocked() <= 0 {
		s.settleLocked()
		return Feedback{}, ErrSessionSettled
	}

	q := s.current
	valid := false
	for _, opt := range q.Options {
		if opt == option {
			valid = true
			break
		}
	}
	if !valid {
		return Feedback{}, ErrUnknownOption
	}

	s.answered++
	fb := Feedback{CorrectAnswer: q.answer}
	if option == q.answer {
		fb.Correct = true
		fb.PointsAwarded = BasePoints + s.streak*StreakBonus
		s.score += fb.PointsAwarded
		s.streak++
		s.correct++
		if s.streak > s.bestStreak {
			s.bestStreak = s.streak
		}
	} else {
		s.streak = 0
	}
	s.log = append(s.log, AnswerRecord{
		QuestionCode: q.refCode(),
		Selected:     option,
		Correct:      fb.Correct,
	})

	s.feedback = &fb
	s.feedbackSeq++
	seq := s.feedbackSeq
	time.AfterFunc(s.feedbackDelay, func() { s.clearFeedback(seq) })

	s.current = s.questions.next(s.rng)
	s.broadcastLocked()
	return fb, nil
}

// clearFeedback drops feedback only if no newer answer replaced it and the
// session is still live.
func (s *Session) clearFeedback(seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled || s.feedbackSeq != seq {
		return
	}
	s.feedback = nil
	s.broadcastLocked()
}

// Pause freezes the timer by banking elapsed time.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return ErrSessionSettled
	}
	if s.paused {
		return ErrSessionPaused
	}
	s.pausedElapsed = s.now().Sub(s.startedAt)
	if s.pausedElapsed > s.duration {
		s.pausedElapsed = s.duration
	}
	s.paused = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.broadcastLocked()
	return nil
}

// Resume rebases the start time against the banked elapsed time, so time
// spent paused never counts against the run.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return ErrSessionSettled
	}
	if !s.paused {
		return ErrSessionNotPaused
	}
	s.startedAt = s.now().Add(-s.pausedElapsed)
	s.paused = false
	s.armTimerLocked()
	s.broadcastLocked()
	return nil
}

// End settles the session immediately, e.g. when the user quits.
func (s *Session) End() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return s.result, ErrSessionSettled
	}
	s.settleLocked()
	return s.result, nil
}

// expire is the timer callback for the wall-clock deadline.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled || s.paused {
		return
	}
	if s.remainingLocked() > 0 {
		// Timer fired early relative to a rebased clock; rearm.
		s.armTimerLocked()
		return
	}
	s.settleLocked()
}

// settleLocked performs the single terminal transition.
func (s *Session) settleLocked() {
	if s.settled {
		return
	}
	elapsed := s.elapsedLocked()
	s.settled = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.feedback = nil

	s.result = Result{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Difficulty:     s.Difficulty,
		Mode:           s.Mode,
		GameType:       GameTypeForMode(s.Mode),
		Score:          s.score,
		CorrectAnswers: s.correct,
		Answered:       s.answered,
		BestStreak:     s.bestStreak,
		Answers:        append([]AnswerRecord(nil), s.log...),
		ElapsedMs:      elapsed.Milliseconds(),
		EndedAt:        s.now(),
	}
	if s.score > s.correct*MaxPointsPerAnswer {
		s.result.capped = true
	}

	if s.onSettle != nil {
		// Persistence and score submission run off the session lock.
		res := s.result
		go s.onSettle(s, res)
	}

	s.broadcastLocked()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Snapshot returns the current externally visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        s.ID,
		UserID:           s.UserID,
		Difficulty:       s.Difficulty,
		Mode:             s.Mode,
		Score:            s.score,
		Streak:           s.streak,
		CorrectAnswers:   s.correct,
		Answered:         s.answered,
		RemainingSeconds: s.remainingLocked().Seconds(),
		Paused:           s.paused,
		GameOver:         s.settled,
		Feedback:         s.feedback,
	}
	if !s.settled && s.current != nil {
		q := *s.current
		snap.Question = &q
	}
	return snap
}

// Subscribe registers a listener for state pushes. The returned channel is
// closed when the session settles.
func (s *Session) Subscribe() (int, <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 8)
	if s.settled {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	return id, ch
}

// Unsubscribe removes a listener.
func (s *Session) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) broadcastLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; drop rather than block gameplay.
		}
	}
}

// settleContext bounds the background persistence triggered by settlement.
func settleContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
