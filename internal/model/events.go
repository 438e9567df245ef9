package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventGenerationStarted   EventType = "generation_started"
	EventStepStart           EventType = "step_start"
	EventStepComplete        EventType = "step_complete"
	EventStepSkipped         EventType = "step_skipped"
	EventStepError           EventType = "step_error"
	EventGenerationComplete  EventType = "generation_complete"
	EventGenerationError     EventType = "generation_error"
	EventGenerationCancelled EventType = "generation_cancelled"
)

// EventMeta carries the envelope fields every stream event shares.
type EventMeta struct {
	Step      string
	Progress  int
	Message   string
	Timestamp time.Time
}

// Event is one decoded progress stream event. Each variant carries only the
// payload fields meaningful for its type.
type Event interface {
	Type() EventType
	Meta() EventMeta
}

// TerminalEvent reports whether an event type ends the stream for its
// generation id.
func TerminalEvent(t EventType) bool {
	switch t {
	case EventGenerationComplete, EventGenerationError, EventGenerationCancelled:
		return true
	default:
		return false
	}
}

type GenerationStarted struct {
	EventMeta
	PlannedSteps []PlannedStep
}

type StepStarted struct {
	EventMeta
}

type StepCompleted struct {
	EventMeta
	ItemsCount *int
}

type StepSkippedEvent struct {
	EventMeta
}

type StepFailedEvent struct {
	EventMeta
	Err string
}

type GenerationCompleted struct {
	EventMeta
	GhostPostURL string
	Err          string
}

type GenerationFailed struct {
	EventMeta
	Err string
}

type GenerationCancelled struct {
	EventMeta
}

func (e GenerationStarted) Type() EventType   { return EventGenerationStarted }
func (e StepStarted) Type() EventType         { return EventStepStart }
func (e StepCompleted) Type() EventType       { return EventStepComplete }
func (e StepSkippedEvent) Type() EventType    { return EventStepSkipped }
func (e StepFailedEvent) Type() EventType     { return EventStepError }
func (e GenerationCompleted) Type() EventType { return EventGenerationComplete }
func (e GenerationFailed) Type() EventType    { return EventGenerationError }
func (e GenerationCancelled) Type() EventType { return EventGenerationCancelled }

func (m EventMeta) Meta() EventMeta { return m }

type eventEnvelope struct {
	Type      string          `json:"type"`
	Step      string          `json:"step"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type eventData struct {
	Steps        []PlannedStep `json:"steps"`
	ItemsCount   *int          `json:"items_count"`
	Error        string        `json:"error"`
	GhostPostURL string        `json:"ghost_post_url"`
}

// The backend emits naive ISO-8601 timestamps (no zone suffix); fall back to
// those layouts before giving up on the field.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseEventTime(raw string) time.Time {
	for _, layout := range eventTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// DecodeEvent parses one wire message from the progress stream. Messages of
// unrecognized type (heartbeats, pings, future event kinds) decode to a nil
// event with a nil error; callers skip them without treating it as a failure.
func DecodeEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode progress event: %w", err)
	}

	meta := EventMeta{
		Step:      env.Step,
		Progress:  env.Progress,
		Message:   env.Message,
		Timestamp: parseEventTime(env.Timestamp),
	}

	var data eventData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode progress event data for %q: %w", env.Type, err)
		}
	}

	switch EventType(env.Type) {
	case EventGenerationStarted:
		return GenerationStarted{EventMeta: meta, PlannedSteps: data.Steps}, nil
	case EventStepStart:
		return StepStarted{EventMeta: meta}, nil
	case EventStepComplete:
		return StepCompleted{EventMeta: meta, ItemsCount: data.ItemsCount}, nil
	case EventStepSkipped:
		return StepSkippedEvent{EventMeta: meta}, nil
	case EventStepError:
		return StepFailedEvent{EventMeta: meta, Err: data.Error}, nil
	case EventGenerationComplete:
		return GenerationCompleted{EventMeta: meta, GhostPostURL: data.GhostPostURL, Err: data.Error}, nil
	case EventGenerationError:
		return GenerationFailed{EventMeta: meta, Err: data.Error}, nil
	case EventGenerationCancelled:
		return GenerationCancelled{EventMeta: meta}, nil
	default:
		return nil, nil
	}
}
