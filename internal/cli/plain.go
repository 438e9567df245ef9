package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"newsletterctl/internal/model"
	"newsletterctl/internal/progress"
)

// runPlainFollow prints one line per observed step transition until the
// generation reaches a terminal state, the stream gives up, or the user
// interrupts. Suited to pipes and log capture.
func runPlainFollow(ctx context.Context, a *app, id string) (*model.GenerationProgress, error) {
	changes := make(chan progress.Change, 256)
	unsubscribe := a.store.Subscribe(func(change progress.Change) {
		if change.ID != id {
			return
		}
		select {
		case changes <- change:
		default:
		}
	})
	defer unsubscribe()

	printer := newStepPrinter(os.Stdout)
	last, _ := a.store.Get(id)
	printer.observe(last)

	var streamDone <-chan struct{}
	var streamErr func() error
	if handle, ok := a.ctrl.Handle(id); ok {
		streamDone = handle.Done()
		streamErr = handle.Err
	}

	for {
		select {
		case <-ctx.Done():
			return last, nil
		case change := <-changes:
			last = change.Entry
			printer.observe(last)
			if last != nil && last.Terminal() {
				return last, nil
			}
		case <-streamDone:
			// apply anything already queued before deciding the stream is over
			for {
				select {
				case change := <-changes:
					last = change.Entry
					printer.observe(last)
				default:
					// notifications can be dropped under backpressure; the
					// store is authoritative for the final state
					if entry, ok := a.store.Get(id); ok {
						last = entry
						printer.observe(last)
					}
					if last != nil && last.Terminal() {
						return last, nil
					}
					if err := streamErr(); err != nil {
						fmt.Fprintln(os.Stdout, "progress stream lost: "+err.Error())
					}
					return last, nil
				}
			}
		}
	}
}

// stepPrinter tracks which step statuses were already reported so each
// transition is printed exactly once.
type stepPrinter struct {
	w    io.Writer
	seen map[string]string
}

func newStepPrinter(w io.Writer) *stepPrinter {
	return &stepPrinter{w: w, seen: make(map[string]string)}
}

func (p *stepPrinter) observe(entry *model.GenerationProgress) {
	if entry == nil {
		return
	}
	for _, step := range entry.Steps {
		if p.seen[step.Step] == step.Status {
			continue
		}
		p.seen[step.Step] = step.Status
		fmt.Fprintf(p.w, "%3d%%  %-8s %s%s\n", entry.OverallProgress, step.Status, stepLabel(step.Step, step.Message), stepDetail(step))
	}
}

func stepDetail(step model.ProgressStep) string {
	switch step.Status {
	case model.StepSuccess:
		detail := ""
		if step.ItemsCount != nil {
			detail = fmt.Sprintf(" (%d items", *step.ItemsCount)
			if step.DurationMs != nil {
				detail += fmt.Sprintf(", %.1fs", float64(*step.DurationMs)/1000)
			}
			detail += ")"
		} else if step.DurationMs != nil {
			detail = fmt.Sprintf(" (%.1fs)", float64(*step.DurationMs)/1000)
		}
		return detail
	case model.StepFailed:
		if step.Error != "" {
			return ": " + step.Error
		}
	}
	return ""
}
