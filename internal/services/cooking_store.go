package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/you/chefkix/domain"
)

// TickKey is the scheduler key of the per-second timer countdown.
const TickKey = "cooking:tick"

// CookingStore tracks the one active cooking session and drives its timers.
// Transitions are serialized by opMu, which is held across the backend call;
// local state changes only after the backend accepted them.
type CookingStore struct {
	opMu      sync.Mutex
	mu        sync.RWMutex
	persistMu sync.Mutex
	session   *domain.CookingSession

	api       domain.SessionAPI
	store     domain.StateStore
	scheduler domain.Scheduler
	notifier  domain.Notifier
	interval  time.Duration
	now       func() time.Time
}

// NewCookingStore creates a new cooking session store
func NewCookingStore(api domain.SessionAPI, store domain.StateStore, scheduler domain.Scheduler, notifier domain.Notifier, tickInterval time.Duration) *CookingStore {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &CookingStore{
		api:       api,
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
		interval:  tickInterval,
		now:       time.Now,
	}
}

// Session returns a copy of the current session, or nil
func (s *CookingStore) Session() *domain.CookingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone()
}

// Status returns the current status, not_started when there is no session
func (s *CookingStore) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return domain.StatusNotStarted
	}
	return s.session.Status
}

// Start begins a session for recipeID
func (s *CookingStore) Start(ctx context.Context, recipeID string) (*domain.CookingSession, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Status().IsActive() {
		s.notifier.Toast(domain.ToastError, "Finish or abandon your current session first")
		return nil, domain.ErrSessionActive
	}

	created, err := s.api.Start(ctx, recipeID)
	if err != nil {
		s.fail("start session", err)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if len(created.Steps) == 0 {
		return nil, fmt.Errorf("session %s has no steps: %w", created.ID, domain.ErrInvalidStep)
	}

	session := created.Clone()
	session.Status = domain.StatusInProgress
	session.CurrentStepIndex = 0
	session.CompletedSteps = nil
	session.FinishedTimers = nil
	session.PausedAt = nil
	session.CompletedAt = nil
	if session.StartedAt.IsZero() {
		session.StartedAt = s.now().UTC()
	}
	if session.RecipeID == "" {
		session.RecipeID = recipeID
	}
	ensureTimer(session, 0)

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.startTicking()
	s.persist(ctx)
	s.notifier.Publish(domain.NewEvent(domain.SessionStartedEvent, session.ID).
		WithMetadata("recipeId", session.RecipeID))
	log.Printf("cooking: started session %s for recipe %s", session.ID, session.RecipeID)

	return s.Session(), nil
}

// Navigate moves one step in direction, relative to the step reached by any
// transition that was in flight when it was called.
func (s *CookingStore) Navigate(ctx context.Context, direction domain.Direction) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	target := 0
	if s.session != nil {
		target = s.session.CurrentStepIndex + int(direction)
	}
	s.mu.RUnlock()
	return s.goToStep(ctx, target)
}

// GoToStep jumps to stepIndex, clamped into the recipe's range
func (s *CookingStore) GoToStep(ctx context.Context, stepIndex int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.goToStep(ctx, stepIndex)
}

// goToStep is GoToStep for callers holding opMu
func (s *CookingStore) goToStep(ctx context.Context, stepIndex int) error {
	current, err := s.activeSession()
	if err != nil {
		return err
	}

	target := current.ClampStep(stepIndex)
	if target == current.CurrentStepIndex {
		return nil
	}

	if err := s.api.Navigate(ctx, current.ID, target); err != nil {
		s.fail("change step", err)
		return fmt.Errorf("failed to navigate to step %d: %w", target, err)
	}

	if !s.commit(current.ID, func(session *domain.CookingSession) {
		session.CurrentStepIndex = target
		ensureTimer(session, target)
	}) {
		return domain.ErrNoActiveSession
	}

	s.persist(ctx)
	s.notifier.Publish(domain.NewEvent(domain.StepChangedEvent, current.ID).WithStep(target))
	return nil
}

// CompleteStep marks stepIndex done. Completing the last step completes the
// session and returns the reward; otherwise the reward is nil.
func (s *CookingStore) CompleteStep(ctx context.Context, stepIndex int) (*domain.CompletionReward, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.activeSession()
	if err != nil {
		return nil, err
	}
	if stepIndex < 0 || stepIndex >= current.StepCount() {
		return nil, fmt.Errorf("step %d of %d: %w", stepIndex, current.StepCount(), domain.ErrInvalidStep)
	}

	last := stepIndex == current.StepCount()-1
	if !current.IsStepCompleted(stepIndex) {
		if err := s.api.CompleteStep(ctx, current.ID, stepIndex); err != nil {
			s.fail("complete step", err)
			return nil, fmt.Errorf("failed to complete step %d: %w", stepIndex, err)
		}
		s.commit(current.ID, func(session *domain.CookingSession) {
			session.MarkStepCompleted(stepIndex)
		})
		s.persist(ctx)
		s.notifier.Publish(domain.NewEvent(domain.StepCompletedEvent, current.ID).WithStep(stepIndex))
	}

	if !last {
		return nil, nil
	}

	reward, err := s.api.Complete(ctx, current.ID)
	if err != nil {
		s.fail("complete session", err)
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	s.scheduler.Cancel(TickKey)
	completedAt := s.now().UTC()
	s.commit(current.ID, func(session *domain.CookingSession) {
		session.Status = domain.StatusCompleted
		session.CompletedAt = &completedAt
		session.PausedAt = nil
		session.Timers = map[int]*domain.Timer{}
	})
	s.persist(ctx)

	event := domain.NewEvent(domain.SessionCompletedEvent, current.ID)
	if reward != nil {
		event.WithMetadata("xpAwarded", reward.XPAwarded)
		s.notifier.Toast(domain.ToastSuccess, fmt.Sprintf("Recipe complete! +%d XP", reward.XPAwarded))
	}
	s.notifier.Publish(event)
	log.Printf("cooking: completed session %s", current.ID)

	return reward, nil
}

// StartTimer (re)starts the countdown of stepIndex. A finished timer restarts
// from the step's full duration.
func (s *CookingStore) StartTimer(stepIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.session.Status.IsActive() {
		return domain.ErrNoActiveSession
	}
	if stepIndex < 0 || stepIndex >= s.session.StepCount() {
		return domain.ErrInvalidStep
	}
	step := s.session.Steps[stepIndex]
	if !step.HasTimer() {
		return domain.ErrNoTimer
	}

	if t, ok := s.session.Timers[stepIndex]; ok {
		t.IsRunning = true
	} else {
		s.session.Timers[stepIndex] = &domain.Timer{StepIndex: stepIndex, RemainingSeconds: step.TimerSeconds, IsRunning: true}
	}
	return nil
}

// StopTimer halts the countdown of stepIndex without resetting it
func (s *CookingStore) StopTimer(stepIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	t, ok := s.session.Timers[stepIndex]
	if !ok {
		return domain.ErrNoTimer
	}
	t.IsRunning = false
	return nil
}

// Tick advances every running timer by one second. Timers that reach zero are
// removed and reported once through the notifier.
func (s *CookingStore) Tick() {
	var (
		sessionID string
		finished  []int
	)

	s.mu.Lock()
	if s.session == nil || s.session.Status != domain.StatusInProgress {
		s.mu.Unlock()
		return
	}
	changed := false
	for idx, t := range s.session.Timers {
		if !t.IsRunning {
			continue
		}
		changed = true
		t.RemainingSeconds--
		if t.RemainingSeconds <= 0 {
			delete(s.session.Timers, idx)
			s.session.MarkTimerFinished(idx)
			finished = append(finished, idx)
		}
	}
	sessionID = s.session.ID
	s.mu.Unlock()

	if !changed {
		return
	}
	s.persist(context.Background())

	for _, idx := range finished {
		s.notifier.TimerComplete(sessionID, idx)
		s.notifier.Publish(domain.NewEvent(domain.TimerCompletedEvent, sessionID).WithStep(idx))
	}
}

// Pause stops the clock. Remaining time is kept as is.
func (s *CookingStore) Pause(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.activeSession()
	if err != nil {
		return err
	}
	if current.Status != domain.StatusInProgress {
		return fmt.Errorf("cannot pause a %s session: %w", current.Status, domain.ErrInvalidTransition)
	}

	if err := s.api.Pause(ctx, current.ID); err != nil {
		s.fail("pause session", err)
		return fmt.Errorf("failed to pause session: %w", err)
	}

	s.scheduler.Cancel(TickKey)
	pausedAt := s.now().UTC()
	s.commit(current.ID, func(session *domain.CookingSession) {
		session.Status = domain.StatusPaused
		session.PausedAt = &pausedAt
	})
	s.persist(ctx)
	s.notifier.Publish(domain.NewEvent(domain.SessionPausedEvent, current.ID))
	return nil
}

// Resume restarts the clock of a paused session
func (s *CookingStore) Resume(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.activeSession()
	if err != nil {
		return err
	}
	if current.Status != domain.StatusPaused {
		return fmt.Errorf("cannot resume a %s session: %w", current.Status, domain.ErrInvalidTransition)
	}

	if err := s.api.Resume(ctx, current.ID); err != nil {
		s.fail("resume session", err)
		return fmt.Errorf("failed to resume session: %w", err)
	}

	if !s.commit(current.ID, func(session *domain.CookingSession) {
		session.Status = domain.StatusInProgress
		session.PausedAt = nil
	}) {
		return domain.ErrNoActiveSession
	}
	s.startTicking()
	s.persist(ctx)
	s.notifier.Publish(domain.NewEvent(domain.SessionResumedEvent, current.ID))
	return nil
}

// Abandon ends the session. Local state is cleared even if the backend call fails.
func (s *CookingStore) Abandon(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.activeSession()
	if err != nil {
		return err
	}

	if err := s.api.Abandon(ctx, current.ID); err != nil {
		log.Printf("cooking: abandon of session %s failed on the backend, clearing locally: %v", current.ID, err)
	}

	s.Clear(ctx)
	s.notifier.Publish(domain.NewEvent(domain.SessionAbandonedEvent, current.ID))
	return nil
}

// Clear drops the local session and its timers without contacting the backend.
// It does not wait for in-flight transitions, so it is safe to call from a logout hook.
func (s *CookingStore) Clear(ctx context.Context) {
	s.scheduler.Cancel(TickKey)

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	s.persist(ctx)
}

// Restore rehydrates the persisted session and reconciles it with the
// backend's current session. The backend wins; when it cannot be reached the
// local snapshot stands and the error is returned.
func (s *CookingStore) Restore(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	var local *domain.CookingSession
	var snapshot domain.CookingSession
	found, err := s.store.Load(ctx, domain.CookingSessionKey, &snapshot)
	if err != nil {
		log.Printf("cooking: could not read persisted session: %v", err)
	} else if found && snapshot.ID != "" {
		if snapshot.Timers == nil {
			snapshot.Timers = map[int]*domain.Timer{}
		}
		local = &snapshot
	}

	remote, err := s.api.Current(ctx)
	if err != nil {
		if local != nil {
			s.adopt(local)
		}
		return fmt.Errorf("failed to fetch current session: %w", err)
	}

	if remote == nil {
		if local != nil {
			log.Printf("cooking: backend has no session, dropping local session %s", local.ID)
		}
		s.Clear(ctx)
		return nil
	}

	merged := remote.Clone()
	merged.Timers = map[int]*domain.Timer{}
	if local != nil && local.ID == remote.ID && remote.Status.IsActive() {
		for _, idx := range local.FinishedTimers {
			merged.MarkTimerFinished(idx)
		}
		for idx, t := range local.Timers {
			if idx >= 0 && idx < merged.StepCount() {
				tt := *t
				merged.Timers[idx] = &tt
			}
		}
	}
	merged.CurrentStepIndex = merged.ClampStep(merged.CurrentStepIndex)
	if merged.Status.IsActive() {
		ensureTimer(merged, merged.CurrentStepIndex)
	}

	s.adopt(merged)
	s.persist(ctx)
	return nil
}

// adopt installs session as the current one and aligns the tick with its status.
func (s *CookingStore) adopt(session *domain.CookingSession) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if session.Status == domain.StatusInProgress {
		s.startTicking()
	} else {
		s.scheduler.Cancel(TickKey)
	}
}

// activeSession returns a copy of the session if it is in_progress or paused.
func (s *CookingStore) activeSession() (*domain.CookingSession, error) {
	current := s.Session()
	if current == nil {
		return nil, domain.ErrNoActiveSession
	}
	if !current.Status.IsActive() {
		return nil, fmt.Errorf("session is %s: %w", current.Status, domain.ErrInvalidTransition)
	}
	return current, nil
}

// commit applies fn to the live session if it is still sessionID.
func (s *CookingStore) commit(sessionID string, fn func(*domain.CookingSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.ID != sessionID {
		return false
	}
	fn(s.session)
	return true
}

func (s *CookingStore) startTicking() {
	s.scheduler.Every(TickKey, s.interval, s.Tick)
}

// persist writes the latest state; persistMu keeps an older snapshot from
// overwriting a newer one.
func (s *CookingStore) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snapshot := s.Session()
	var err error
	if snapshot == nil {
		err = s.store.Delete(ctx, domain.CookingSessionKey)
	} else {
		err = s.store.Save(ctx, domain.CookingSessionKey, snapshot)
	}
	if err != nil {
		log.Printf("cooking: failed to persist session: %v", err)
	}
}

func (s *CookingStore) fail(action string, err error) {
	log.Printf("cooking: %s failed: %v", action, err)
	if errors.Is(err, context.Canceled) {
		return
	}
	s.notifier.Toast(domain.ToastError, domain.UserMessage(err))
}

// ensureTimer creates a running timer for idx if the step has a duration,
// no timer exists yet and its countdown has not already run out.
func ensureTimer(session *domain.CookingSession, idx int) {
	if session.Timers == nil {
		session.Timers = map[int]*domain.Timer{}
	}
	if idx < 0 || idx >= len(session.Steps) {
		return
	}
	step := session.Steps[idx]
	if !step.HasTimer() || session.IsStepCompleted(idx) || session.IsTimerFinished(idx) {
		return
	}
	if _, ok := session.Timers[idx]; ok {
		return
	}
	session.Timers[idx] = &domain.Timer{StepIndex: idx, RemainingSeconds: step.TimerSeconds, IsRunning: true}
}
