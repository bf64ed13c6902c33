package main

import (
	"context"
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/formatter"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/repositories"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/stream"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun follows the sync stream until the backend completes it or the command is interrupted.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	r.writePlain("Starting sync...\n")

	prog, wait := r.followProgress()
	result, err := r.engine().Sync(ctx, r.newConsumer(), r.handlers(), prog)
	wait()
	if err != nil {
		return err
	}
	return r.printRunResult("Sync", result, cmd)
}

// SyncWrite writes the given events to the website and follows the write stream.
func (r *Runner) SyncWrite(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one event id", shared.ErrMissingArgument)
	}

	r.writePlain("Writing %d events...\n", len(ids))

	prog, wait := r.followProgress()
	result, err := r.engine().Write(ctx, r.newConsumer(), ids, r.handlers(), prog)
	wait()
	if err != nil {
		return err
	}
	return r.printRunResult("Write", result, cmd)
}

// SyncHistory lists recorded runs, or prints the log of one run with --run.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	runs := repositories.NewStreamRunRepository(db)

	if seq := cmd.Int("run"); seq > 0 {
		run, err := runs.GetBySequence(seq)
		if err != nil {
			return err
		}
		entries, err := runs.Entries(run.ID())
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(runView(run, entries), cmd.Bool("pretty"))
		}
		r.writePlainHeader(fmt.Sprintf("Run #%d (%s, %s)", run.Sequence(), run.Kind(), run.Status()))
		if msg := run.ErrorMessage(); msg != "" {
			r.writePlain("Error: %s\n", msg)
		}
		_, err = r.output.Write(formatter.RunLogToText(entries))
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if kind := cmd.String("kind"); kind != "" {
		switch models.StreamKind(kind) {
		case models.StreamSync, models.StreamWrite:
			criteria["kind"] = kind
		default:
			return fmt.Errorf("%w: --kind must be sync or write, got %q", shared.ErrInvalidArgument, kind)
		}
	}

	list, err := runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]streamRunView, 0, len(list))
		for _, run := range list {
			views = append(views, runView(run, nil))
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Stream runs (%d)", len(list)))
	for _, run := range list {
		r.writePlain("#%-4d  %-5s  %-9s  %s  %v\n",
			run.Sequence(), run.Kind(), run.Status(), run.StartedAt().Local().Format("2006-01-02 15:04:05"), run.EventIDs())
	}
	return nil
}

// streamRunView is the JSON form of a recorded run.
type streamRunView struct {
	Sequence int                  `json:"run"`
	Kind     models.StreamKind    `json:"kind"`
	Status   string               `json:"status"`
	URL      string               `json:"url"`
	EventIDs []string             `json:"event_ids,omitempty"`
	Error    string               `json:"error,omitempty"`
	Started  string               `json:"started_at"`
	Finished string               `json:"finished_at,omitempty"`
	Entries  []models.RunLogEntry `json:"entries,omitempty"`
}

func runView(run *models.StreamRun, entries []models.RunLogEntry) streamRunView {
	v := streamRunView{
		Sequence: run.Sequence(),
		Kind:     run.Kind(),
		Status:   run.Status(),
		URL:      run.URL(),
		EventIDs: run.EventIDs(),
		Error:    run.ErrorMessage(),
		Started:  run.StartedAt().Format("2006-01-02T15:04:05Z07:00"),
		Entries:  entries,
	}
	if f := run.FinishedAt(); f != nil {
		v.Finished = f.Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

func (r *Runner) printRunResult(title string, result *tasks.RunResult, cmd *cli.Command) error {
	snap := result.Snapshot

	if cmd.Bool("json") {
		out := struct {
			Completed bool              `json:"completed"`
			Error     string            `json:"error,omitempty"`
			Run       int               `json:"run,omitempty"`
			Logs      []stream.LogEntry `json:"logs"`
		}{Completed: result.Succeeded(), Error: snap.Error, Logs: result.Logs}
		if result.Failure != nil {
			out.Error = result.Failure.Message
		}
		if result.Run != nil {
			out.Run = result.Run.Sequence()
		}
		if err := r.writeJSON(out, cmd.Bool("pretty")); err != nil {
			return err
		}
		return result.Err
	}

	r.writePlainln("")
	switch {
	case result.Failure != nil:
		r.writePlainHeader(title + " Failed")
		r.writePlain("Error: %s (%s)\n", result.Failure.Message, result.Failure.Event)
	case snap.Completed:
		r.writePlainHeader(title + " Complete!")
	case snap.Error != "":
		r.writePlainHeader(title + " Failed")
		r.writePlain("Error: %s\n", snap.Error)
	default:
		r.writePlainHeader(title + " stopped without completing")
	}
	r.writePlain("Log entries: %d\n", len(result.Logs))
	if result.Run != nil {
		r.writePlain("Recorded as run #%d (autohaus sync history --run %d)\n", result.Run.Sequence(), result.Run.Sequence())
	}

	if result.Err != nil {
		return result.Err
	}
	return nil
}

// followProgress prints progress updates until the returned wait func is called.
//
// The channel is never closed: late snapshot callbacks may still send, and sends never block.
func (r *Runner) followProgress() (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 64)
	stop := make(chan struct{})
	done := make(chan struct{})

	lastLog := 0
	show := func(u tasks.ProgressUpdate) {
		switch u.Phase {
		case tasks.StreamEvent, tasks.StreamClosed:
			if run, ok := u.Data.(*models.StreamRun); ok {
				r.writePlain("📼 Run #%d %s\n", run.Sequence(), run.Status())
				return
			}
			if u.Step <= lastLog || u.Message == "" {
				return
			}
			lastLog = u.Step
			r.writePlain("   %s\n", u.Message)
		case tasks.Connect:
			r.writePlain("🔌 %s\n", u.Message)
		default:
			r.writePlain("%s\n", u.Message)
		}
	}

	go func() {
		defer close(done)
		for {
			select {
			case u := <-ch:
				show(u)
			case <-stop:
				for {
					select {
					case u := <-ch:
						show(u)
					default:
						return
					}
				}
			}
		}
	}()

	return ch, func() {
		close(stop)
		<-done
	}
}
