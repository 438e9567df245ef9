package model

import (
	"testing"
	"time"
)

func TestDecodeEvent_StepComplete(t *testing.T) {
	raw := `{
		"type": "step_complete",
		"step": "fetch_tautulli",
		"progress": 15,
		"message": "Fetched 12 items",
		"data": {"items_count": 12},
		"timestamp": "2026-08-28T10:15:30.123456"
	}`

	ev, err := DecodeEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	completed, ok := ev.(StepCompleted)
	if !ok {
		t.Fatalf("expected StepCompleted, got %T", ev)
	}
	if completed.Step != "fetch_tautulli" || completed.Progress != 15 {
		t.Fatalf("unexpected meta: %+v", completed.EventMeta)
	}
	if completed.ItemsCount == nil || *completed.ItemsCount != 12 {
		t.Fatalf("expected items_count 12, got %v", completed.ItemsCount)
	}
	want := time.Date(2026, 8, 28, 10, 15, 30, 123456000, time.UTC)
	if !completed.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", completed.Timestamp, want)
	}
}

func TestDecodeEvent_GenerationStartedCarriesPlan(t *testing.T) {
	raw := `{
		"type": "generation_started",
		"step": "",
		"progress": 0,
		"message": "Generation started",
		"data": {"steps": [
			{"step": "fetch_tautulli", "message": "Fetching media from Tautulli"},
			{"step": "publish_ghost", "message": "Publishing to Ghost"}
		]},
		"timestamp": "2026-08-28T10:15:00Z"
	}`

	ev, err := DecodeEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	started, ok := ev.(GenerationStarted)
	if !ok {
		t.Fatalf("expected GenerationStarted, got %T", ev)
	}
	if len(started.PlannedSteps) != 2 || started.PlannedSteps[1].Step != "publish_ghost" {
		t.Fatalf("unexpected planned steps: %+v", started.PlannedSteps)
	}
}

func TestDecodeEvent_TerminalVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		test func(t *testing.T, ev Event)
	}{
		{
			name: "complete with artifact",
			raw:  `{"type":"generation_complete","step":"complete","progress":100,"message":"done","data":{"ghost_post_url":"https://ghost.example/p/1"},"timestamp":"2026-08-28T10:20:00Z"}`,
			test: func(t *testing.T, ev Event) {
				completed, ok := ev.(GenerationCompleted)
				if !ok {
					t.Fatalf("expected GenerationCompleted, got %T", ev)
				}
				if completed.GhostPostURL != "https://ghost.example/p/1" {
					t.Fatalf("ghost url = %q", completed.GhostPostURL)
				}
			},
		},
		{
			name: "generation error",
			raw:  `{"type":"generation_error","step":"","progress":40,"message":"failed","data":{"error":"ghost unreachable"},"timestamp":"2026-08-28T10:20:00Z"}`,
			test: func(t *testing.T, ev Event) {
				failed, ok := ev.(GenerationFailed)
				if !ok {
					t.Fatalf("expected GenerationFailed, got %T", ev)
				}
				if failed.Err != "ghost unreachable" {
					t.Fatalf("err = %q", failed.Err)
				}
			},
		},
		{
			name: "cancelled",
			raw:  `{"type":"generation_cancelled","step":"cancelled","progress":-1,"message":"Cancelled","timestamp":"2026-08-28T10:20:00Z"}`,
			test: func(t *testing.T, ev Event) {
				if _, ok := ev.(GenerationCancelled); !ok {
					t.Fatalf("expected GenerationCancelled, got %T", ev)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !TerminalEvent(ev.Type()) {
				t.Fatalf("expected %s to be terminal", ev.Type())
			}
			tc.test(t, ev)
		})
	}
}

func TestDecodeEvent_UnknownTypeIsSkippedSilently(t *testing.T) {
	for _, raw := range []string{
		`{"type":"ping","timestamp":"2026-08-28T10:00:00Z"}`,
		`{"type":"heartbeat","timestamp":"2026-08-28T10:00:00Z"}`,
		`{"type":"some_future_event","step":"x","progress":10}`,
	} {
		ev, err := DecodeEvent([]byte(raw))
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if ev != nil {
			t.Fatalf("expected nil event for %s, got %T", raw, ev)
		}
	}
}

func TestDecodeEvent_MalformedJSON(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"type": "step_start"`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestDecodeEvent_StepError(t *testing.T) {
	raw := `{"type":"step_error","step":"publish_ghost","progress":95,"message":"Publishing failed","data":{"error":"502 from ghost"},"timestamp":"2026-08-28T10:19:00Z"}`
	ev, err := DecodeEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	failed, ok := ev.(StepFailedEvent)
	if !ok {
		t.Fatalf("expected StepFailedEvent, got %T", ev)
	}
	if failed.Err != "502 from ghost" {
		t.Fatalf("err = %q", failed.Err)
	}
	if TerminalEvent(failed.Type()) {
		t.Fatal("a step failure must not be a terminal event")
	}
}
