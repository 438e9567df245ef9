package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"newsletterctl/internal/controller"
	"newsletterctl/internal/model"
	"newsletterctl/internal/progress"
)

type stubJobs struct {
	cancelErr error
	cancelled []string
}

func (s *stubJobs) StartGeneration(ctx context.Context, config json.RawMessage) (string, error) {
	return "g1", nil
}

func (s *stubJobs) CancelGeneration(ctx context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	return nil
}

type stubHandle struct{ done chan struct{} }

func (h *stubHandle) Done() <-chan struct{} { return h.done }
func (h *stubHandle) Err() error            { return nil }
func (h *stubHandle) Detach()               {}

type stubStreams struct{}

func (stubStreams) Attach(ctx context.Context, id string) controller.StreamHandle {
	return &stubHandle{done: make(chan struct{})}
}

func newTestSurface(t *testing.T) (surfaceModel, *progress.Store, *stubJobs) {
	t.Helper()
	jobs := &stubJobs{}
	store := progress.NewStore()
	ctrl := controller.New(jobs, stubStreams{}, store)
	m := surfaceModel{ctrl: ctrl, store: store, id: "g1", changes: make(chan progress.Change, 1), barWidth: 40, timeout: time.Second}
	return m, store, jobs
}

func runningEntry() *model.GenerationProgress {
	return &model.GenerationProgress{
		ID:              "g1",
		OverallProgress: 55,
		Steps: []model.ProgressStep{
			{Step: "fetch_episodes", Status: model.StepSuccess, Message: "Fetching episodes", ItemsCount: intPtr(8)},
			{Step: "summarize", Status: model.StepRunning, Message: "Summarizing"},
		},
	}
}

func TestSurfaceStoreChangeUpdatesEntry(t *testing.T) {
	m, _, _ := newTestSurface(t)

	entry := runningEntry()
	next, cmd := m.Update(storeChangeMsg{ID: "g1", Entry: entry})
	m = next.(surfaceModel)
	if m.entry != entry {
		t.Fatal("change for the watched id must replace the entry")
	}
	if cmd == nil {
		t.Fatal("update must re-arm the change listener")
	}

	other := &model.GenerationProgress{ID: "g2"}
	next, _ = m.Update(storeChangeMsg{ID: "g2", Entry: other})
	m = next.(surfaceModel)
	if m.entry != entry {
		t.Fatal("change for another id must be ignored")
	}
}

func TestSurfaceStreamEndRefreshesFromStore(t *testing.T) {
	m, store, _ := newTestSurface(t)
	store.StartTracking("g1")
	m.entry = runningEntry()

	// the terminal change notification was dropped under backpressure; only
	// the store knows the generation finished
	store.ApplyEvent("g1", model.GenerationCompleted{EventMeta: model.EventMeta{
		Step:      "complete",
		Progress:  100,
		Timestamp: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}})

	next, _ := m.Update(streamEndedMsg{err: nil})
	m = next.(surfaceModel)
	if m.entry == nil || !m.entry.Terminal() {
		t.Fatalf("stream end must refresh the snapshot from the store: %+v", m.entry)
	}
}

func TestSurfaceDismissOnlyWhenTerminal(t *testing.T) {
	m, _, _ := newTestSurface(t)
	m.entry = runningEntry()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(surfaceModel)
	if m.dismissed {
		t.Fatal("quitting a running generation is not a dismissal")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg, got %T", cmd())
	}

	m.entry = &model.GenerationProgress{ID: "g1", IsComplete: true, OverallProgress: 100}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(surfaceModel)
	if !m.dismissed {
		t.Fatal("quitting a terminal entry must dismiss it")
	}
}

func TestSurfaceCancelKeyRequestsCancellation(t *testing.T) {
	m, store, jobs := newTestSurface(t)
	store.StartTracking("g1")
	m.entry = runningEntry()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = next.(surfaceModel)
	if !m.cancelRequested {
		t.Fatal("cancel key must mark the request in flight")
	}
	if cmd == nil {
		t.Fatal("cancel key must produce a command")
	}

	msg, ok := cmd().(cancelResultMsg)
	if !ok {
		t.Fatalf("expected cancelResultMsg, got %T", cmd())
	}
	if msg.err != nil {
		t.Fatalf("cancel: %v", msg.err)
	}
	if len(jobs.cancelled) != 1 || jobs.cancelled[0] != "g1" {
		t.Fatalf("backend cancel calls = %v", jobs.cancelled)
	}
	entry, _ := store.Get("g1")
	if !entry.IsCancelled {
		t.Fatalf("store entry not cancelled: %+v", entry)
	}

	next, _ = m.Update(cancelResultMsg{err: nil})
	m = next.(surfaceModel)
	if m.cancelRequested {
		t.Fatal("result must clear the in-flight flag")
	}
	if !strings.Contains(m.notice, "cancellation requested") {
		t.Fatalf("notice = %q", m.notice)
	}
}

func TestSurfaceCancelKeyIgnoredWhenTerminal(t *testing.T) {
	m, _, _ := newTestSurface(t)
	m.entry = &model.GenerationProgress{ID: "g1", IsCancelled: true}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = next.(surfaceModel)
	if m.cancelRequested || cmd != nil {
		t.Fatal("cancel must be a no-op on a terminal entry")
	}
}

func TestSurfaceWindowSizeClampsBar(t *testing.T) {
	m, _, _ := newTestSurface(t)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	m = next.(surfaceModel)
	if m.barWidth != 60 {
		t.Fatalf("wide terminal: bar width = %d", m.barWidth)
	}

	next, _ = m.Update(tea.WindowSizeMsg{Width: 12, Height: 40})
	m = next.(surfaceModel)
	if m.barWidth != 10 {
		t.Fatalf("narrow terminal: bar width = %d", m.barWidth)
	}
}

func TestSurfaceViewStates(t *testing.T) {
	m, _, _ := newTestSurface(t)

	if view := m.View(); !strings.Contains(view, "waiting for progress events") {
		t.Fatalf("empty view = %q", view)
	}

	m.entry = &model.GenerationProgress{
		ID: "g1",
		PlannedSteps: []model.PlannedStep{
			{Step: "fetch_episodes", Message: "Fetching episodes"},
			{Step: "render", Message: "Rendering"},
		},
	}
	view := m.View()
	if !strings.Contains(view, "Fetching episodes") || !strings.Contains(view, "Rendering") {
		t.Fatalf("planned steps missing: %q", view)
	}

	m.entry = runningEntry()
	view = m.View()
	if !strings.Contains(view, "Summarizing") || !strings.Contains(view, "(8 items)") {
		t.Fatalf("step details missing: %q", view)
	}
	if !strings.Contains(view, "running") {
		t.Fatalf("running disposition missing: %q", view)
	}

	m.entry = &model.GenerationProgress{
		ID:              "g1",
		IsComplete:      true,
		OverallProgress: 100,
		GhostPostURL:    "https://blog.example.com/p/42",
	}
	view = m.View()
	if !strings.Contains(view, "published:") || !strings.Contains(view, "https://blog.example.com/p/42") {
		t.Fatalf("published disposition missing: %q", view)
	}
	if !strings.Contains(view, "q dismiss") {
		t.Fatalf("terminal key hints missing: %q", view)
	}

	m.entry = &model.GenerationProgress{
		ID:           "g1",
		IsComplete:   true,
		ErrorMessage: "render template not found",
	}
	if view := m.View(); !strings.Contains(view, "failed: render template not found") {
		t.Fatalf("failed disposition missing: %q", view)
	}
}
