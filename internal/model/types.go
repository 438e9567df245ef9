package model

import "time"

// GenerationProgress is the tracked record of one newsletter generation job.
// Entries are keyed by the backend-assigned generation id and live until the
// user explicitly clears them.
type GenerationProgress struct {
	ID              string         `json:"id"`
	Steps           []ProgressStep `json:"steps"`
	PlannedSteps    []PlannedStep  `json:"planned_steps,omitempty"`
	OverallProgress int            `json:"overall_progress"`
	IsComplete      bool           `json:"is_complete"`
	IsCancelled     bool           `json:"is_cancelled"`
	GhostPostURL    string         `json:"ghost_post_url,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	LastEventAt     time.Time      `json:"last_event_at,omitempty"`
}

// Terminal reports whether the entry has reached its final disposition.
// Once terminal, no further mutation is accepted.
func (g *GenerationProgress) Terminal() bool {
	return g.IsComplete || g.IsCancelled
}

// Failed reports whether the entry completed with an overall failure.
func (g *GenerationProgress) Failed() bool {
	return g.IsComplete && g.ErrorMessage != ""
}

type ProgressStep struct {
	Step        string     `json:"step"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`
	ItemsCount  *int       `json:"items_count,omitempty"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// PlannedStep is one entry of the step plan announced by the
// generation_started event. Plan entries are display hints only; the ordered
// Steps sequence is still built append-on-first-sight from step events.
type PlannedStep struct {
	Step    string `json:"step"`
	Message string `json:"message,omitempty"`
}
