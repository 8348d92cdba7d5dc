package task

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "EWI/internal/errors"
	errlog "EWI/internal/errors/logging"
	"EWI/internal/logger"
)

// Outcome is the terminal state of a run.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Cancelled
)

// String renders the outcome.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Model is the reconstructed workflow a run is gated on.
type Model interface {
	// ValidationSummary returns nil when every relevant step is valid.
	ValidationSummary() error
}

// Runner executes task sequences strictly in order.
type Runner struct {
	collab   Collaborators
	reporter Reporter
	log      logger.Logger
	state    func() map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCollaborators sets the external systems handed to tasks.
func WithCollaborators(c Collaborators) Option {
	return func(r *Runner) {
		r.collab = c
	}
}

// WithReporter sets the progress sink.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithStateDump supplies the argument snapshot logged when a task fails.
func WithStateDump(fn func() map[string]string) Option {
	return func(r *Runner) {
		r.state = fn
	}
}

// NewRunner creates a Runner.
func NewRunner(options ...Option) *Runner {
	r := &Runner{
		reporter: NopReporter{},
		log:      logger.Discard(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run refuses to start unless model is valid, then executes tasks in order.
// A task returning false or an error aborts the rest; cancellation of ctx
// is honoured between tasks and reported as Cancelled.
func (r *Runner) Run(ctx context.Context, model Model, tasks []Task) (Outcome, error) {
	if model != nil {
		if summary := model.ValidationSummary(); summary != nil {
			err := apperrors.TaskError(apperrors.CodeInvalidModel, "the installation model is invalid:\n"+summary.Error(), nil).
				WithModule("task").
				WithOperation("task.Run")
			errlog.Error(ctx, r.log, "Refusing to run tasks", err)
			return Failed, err
		}
	}

	for i, t := range tasks {
		name := NameOf(t)

		if err := ctx.Err(); err != nil {
			cancelled := apperrors.CancelledError(apperrors.CodeRunCancelled, "installation cancelled before "+name, err).
				WithModule("task").
				WithOperation("task.Run").
				WithFields(apperrors.Metadata{"task": name, "completed": i})
			r.log.WarnContext(ctx, "Run cancelled", logger.String("task", name), logger.Int("completed", i))
			return Cancelled, cancelled
		}

		tc := &Context{
			Context:       ctx,
			Collaborators: r.collab,
			Log:           r.log.With(logger.String("task", name)),
			reporter:      r.reporter,
			task:          name,
		}
		short, long := name, name
		if d, ok := t.(Describer); ok {
			short, long = d.Describe()
		}
		tc.Start(t.Ticks(), short, long)

		started := time.Now()
		ok, err := t.Execute(tc)
		if err == nil && ok {
			r.log.DebugContext(ctx, "Task completed", logger.String("task", name), logger.Any("elapsed", time.Since(started)))
			continue
		}

		failure := r.taskFailure(name, err)
		fields := append(errlog.Fields(failure), logger.String("state", r.dumpState()))
		r.log.ErrorContext(ctx, "Task failed", fields...)
		return Failed, failure
	}

	return Succeeded, nil
}

func (r *Runner) taskFailure(name string, err error) *apperrors.AppError {
	if err == nil {
		return apperrors.TaskError(apperrors.CodeTaskFailed, "task "+name+" reported failure", nil).
			WithModule("task").
			WithOperation("task.Run").
			WithField("task", name)
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.WithField("task", name)
	}
	return apperrors.TaskError(apperrors.CodeTaskFailed, "task "+name+" failed", err).
		WithModule("task").
		WithOperation("task.Run").
		WithField("task", name)
}

func (r *Runner) dumpState() string {
	if r.state == nil {
		return ""
	}
	args := r.state()
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := args[k]
		if strings.Contains(strings.ToUpper(k), "PASSWORD") {
			v = "********"
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
