// Package progress holds the process-wide record of tracked generation jobs.
//
// The store is the single shared mutable resource of the subsystem. It is
// mutated only through its exported operations, each of which notifies all
// current subscribers synchronously before returning, so every consumer
// observes a consistent snapshot per event.
package progress

import (
	"sort"
	"sync"
	"time"

	"newsletterctl/internal/model"
)

// Change describes one store mutation as seen by subscribers. Entry is a deep
// copy (nil when the entry was cleared); ActiveID is the active pointer after
// the mutation.
type Change struct {
	ID       string
	Entry    *model.GenerationProgress
	ActiveID string
}

type Store struct {
	// notifyMu is held across mutate-and-dispatch so subscribers observe
	// changes in application order: a terminal snapshot is never followed
	// by an earlier non-terminal one.
	notifyMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*model.GenerationProgress
	active  string
	subs    map[int]func(Change)
	nextSub int

	// now is swapped out in tests that need deterministic LastEventAt values.
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*model.GenerationProgress),
		subs:    make(map[int]func(Change)),
		now:     time.Now,
	}
}

// Subscribe registers fn for synchronous notification on every mutation. The
// returned function removes the subscription. fn must not call mutating
// store operations.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// StartTracking inserts a fresh entry for id and makes it the active
// generation. A no-op if the id is already tracked.
func (s *Store) StartTracking(id string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if _, exists := s.entries[id]; exists {
		s.mu.Unlock()
		return
	}
	s.entries[id] = &model.GenerationProgress{ID: id}
	s.active = id
	change, fns := s.changeLocked(id)
	s.mu.Unlock()
	dispatch(change, fns)
}

// ApplyEvent folds one stream event into the entry for id. A no-op when the
// event is nil, the id is untracked, or the entry is already terminal.
// Overall progress is applied monotonically: a value below the stored one is
// discarded, which absorbs reordered or replayed delivery.
func (s *Store) ApplyEvent(id string, ev model.Event) {
	if ev == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok || entry.Terminal() {
		s.mu.Unlock()
		return
	}

	meta := ev.Meta()
	if meta.Progress > entry.OverallProgress {
		entry.OverallProgress = meta.Progress
	}
	if !meta.Timestamp.IsZero() {
		entry.LastEventAt = meta.Timestamp
	} else {
		entry.LastEventAt = s.now().UTC()
	}

	switch e := ev.(type) {
	case model.GenerationStarted:
		if len(entry.PlannedSteps) == 0 && len(e.PlannedSteps) > 0 {
			entry.PlannedSteps = append([]model.PlannedStep(nil), e.PlannedSteps...)
		}
	case model.StepStarted:
		s.applyStepLocked(entry, meta, model.StepRunning, func(step *model.ProgressStep) {
			if step.StartedAt == nil && !meta.Timestamp.IsZero() {
				ts := meta.Timestamp
				step.StartedAt = &ts
			}
		})
	case model.StepCompleted:
		s.applyStepLocked(entry, meta, model.StepSuccess, func(step *model.ProgressStep) {
			finishStep(step, meta.Timestamp)
			if e.ItemsCount != nil {
				n := *e.ItemsCount
				step.ItemsCount = &n
			}
		})
	case model.StepSkippedEvent:
		s.applyStepLocked(entry, meta, model.StepSkipped, nil)
	case model.StepFailedEvent:
		s.applyStepLocked(entry, meta, model.StepFailed, func(step *model.ProgressStep) {
			finishStep(step, meta.Timestamp)
			step.Error = e.Err
		})
	case model.GenerationCompleted:
		entry.IsComplete = true
		if e.Err != "" {
			entry.ErrorMessage = e.Err
		} else {
			entry.GhostPostURL = e.GhostPostURL
		}
	case model.GenerationFailed:
		entry.IsComplete = true
		entry.ErrorMessage = e.Err
		if entry.ErrorMessage == "" {
			entry.ErrorMessage = meta.Message
		}
	case model.GenerationCancelled:
		entry.IsCancelled = true
	}

	change, fns := s.changeLocked(id)
	s.mu.Unlock()
	dispatch(change, fns)
}

// CancelGeneration marks the entry cancelled unless it already reached a
// terminal disposition. This is the store half of the cancel/complete race:
// both paths check terminality first, so the loser's write is a no-op.
func (s *Store) CancelGeneration(id string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok || entry.Terminal() {
		s.mu.Unlock()
		return
	}
	entry.IsCancelled = true
	change, fns := s.changeLocked(id)
	s.mu.Unlock()
	dispatch(change, fns)
}

// ClearGeneration removes the entry for id; the active pointer is reset when
// it named the cleared id. A no-op for untracked ids.
func (s *Store) ClearGeneration(id string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	if s.active == id {
		s.active = ""
	}
	change, fns := s.changeLocked(id)
	s.mu.Unlock()
	dispatch(change, fns)
}

// Active returns a copy of the active generation's entry, or nil when no
// generation is designated for the persistent surface.
func (s *Store) Active() *model.GenerationProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return nil
	}
	return cloneEntry(s.entries[s.active])
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) Get(id string) (*model.GenerationProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return cloneEntry(entry), true
}

func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// applyStepLocked upserts the named step: unseen names are appended in
// arrival order, seen names transition forward or are silently left alone
// when the requested transition is invalid (late or duplicate events).
func (s *Store) applyStepLocked(entry *model.GenerationProgress, meta model.EventMeta, status string, mutate func(*model.ProgressStep)) {
	if meta.Step == "" {
		return
	}
	var step *model.ProgressStep
	for i := range entry.Steps {
		if entry.Steps[i].Step == meta.Step {
			step = &entry.Steps[i]
			break
		}
	}
	if step == nil {
		entry.Steps = append(entry.Steps, model.ProgressStep{Step: meta.Step})
		step = &entry.Steps[len(entry.Steps)-1]
	}
	if !model.CanTransitionStep(step.Status, status) {
		return
	}
	step.Status = status
	if meta.Message != "" {
		step.Message = meta.Message
	}
	if mutate != nil {
		mutate(step)
	}
}

func finishStep(step *model.ProgressStep, ts time.Time) {
	if ts.IsZero() {
		return
	}
	completed := ts
	step.CompletedAt = &completed
	if step.StartedAt != nil && !completed.Before(*step.StartedAt) {
		ms := completed.Sub(*step.StartedAt).Milliseconds()
		step.DurationMs = &ms
	}
}

func (s *Store) changeLocked(id string) (Change, []func(Change)) {
	change := Change{
		ID:       id,
		Entry:    cloneEntry(s.entries[id]),
		ActiveID: s.active,
	}
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return change, fns
}

func dispatch(change Change, fns []func(Change)) {
	for _, fn := range fns {
		fn(change)
	}
}

func cloneEntry(entry *model.GenerationProgress) *model.GenerationProgress {
	if entry == nil {
		return nil
	}
	out := *entry
	out.Steps = make([]model.ProgressStep, len(entry.Steps))
	for i, step := range entry.Steps {
		out.Steps[i] = step
		out.Steps[i].StartedAt = cloneTime(step.StartedAt)
		out.Steps[i].CompletedAt = cloneTime(step.CompletedAt)
		out.Steps[i].DurationMs = cloneInt64(step.DurationMs)
		out.Steps[i].ItemsCount = cloneInt(step.ItemsCount)
	}
	out.PlannedSteps = append([]model.PlannedStep(nil), entry.PlannedSteps...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
