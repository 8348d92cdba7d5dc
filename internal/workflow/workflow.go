package workflow

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"EWI/internal/logger"
)

// Workflow is the ordered set of steps of one installation session plus
// its navigation state. All methods run on the caller's goroutine.
type Workflow struct {
	steps         []Step
	closing       Step
	graph         *Graph
	prerequisites map[string]struct{}
	log           logger.Logger

	active     Step
	activeIdx  int
	firstIdx   int
	firstValid bool
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClosing appends a closing step that is always navigable and valid.
func WithClosing(step Step) Option {
	return func(w *Workflow) {
		w.closing = step
	}
}

// WithGraph attaches the dependency graph driving derived step values.
func WithGraph(g *Graph) Option {
	return func(w *Workflow) {
		w.graph = g
	}
}

// WithPrerequisites names the fields whose failures cannot be fixed from
// inside the wizard.
func WithPrerequisites(fields ...string) Option {
	return func(w *Workflow) {
		for _, f := range fields {
			w.prerequisites[strings.ToUpper(f)] = struct{}{}
		}
	}
}

// WithLogger sets the logger used for navigation diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(w *Workflow) {
		if log != nil {
			w.log = log
		}
	}
}

// New builds a workflow over steps, validates every step and selects the
// first navigable one.
func New(steps []Step, options ...Option) *Workflow {
	w := &Workflow{
		steps:         steps,
		prerequisites: make(map[string]struct{}),
		log:           logger.Discard(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(w)
		}
	}
	if w.graph == nil {
		w.graph = NewGraph()
	}

	w.graph.RecomputeAll()
	w.validateAll()
	w.selectIndex(0)
	return w
}

// Graph returns the dependency graph.
func (w *Workflow) Graph() *Graph {
	return w.graph
}

// Steps returns every step, relevant or not, closing step excluded.
func (w *Workflow) Steps() []Step {
	return append([]Step(nil), w.steps...)
}

// Navigable returns the relevant steps followed by the closing step.
func (w *Workflow) Navigable() []Step {
	out := make([]Step, 0, len(w.steps)+1)
	for _, s := range w.steps {
		if s.IsRelevant() {
			out = append(out, s)
		}
	}
	if w.closing != nil {
		out = append(out, w.closing)
	}
	return out
}

// Active returns the step currently displayed.
func (w *Workflow) Active() Step {
	return w.active
}

// ActiveIndex returns the index of the active step in the navigable sequence.
func (w *Workflow) ActiveIndex() int {
	return w.activeIdx
}

// FirstInvalidStep returns the first navigable step with failures.
func (w *Workflow) FirstInvalidStep() (Step, int, bool) {
	if w.firstValid {
		return nil, -1, false
	}
	return w.Navigable()[w.firstIdx], w.firstIdx, true
}

// TabSelectionMax is the highest navigable index the operator may reach:
// the first invalid step, or the last step when all are valid.
func (w *Workflow) TabSelectionMax() int {
	if !w.firstValid {
		return w.firstIdx
	}
	n := len(w.Navigable())
	if n == 0 {
		return 0
	}
	return n - 1
}

// IsValid reports whether every navigable step is valid.
func (w *Workflow) IsValid() bool {
	return w.firstValid
}

// CurrentFailures are the failures of the first invalid step, which is not
// necessarily the active one.
func (w *Workflow) CurrentFailures() []Failure {
	if s, _, ok := w.FirstInvalidStep(); ok {
		return s.ValidationFailures()
	}
	return nil
}

// NavigateForward moves to the next step. It is a no-op returning false
// when the target lies beyond TabSelectionMax.
func (w *Workflow) NavigateForward() bool {
	return w.Select(w.activeIdx + 1)
}

// NavigateBack moves to the previous step.
func (w *Workflow) NavigateBack() bool {
	return w.Select(w.activeIdx - 1)
}

// Select activates the step at index if it lies in [0, TabSelectionMax].
func (w *Workflow) Select(index int) bool {
	if index < 0 || index > w.TabSelectionMax() || index >= len(w.Navigable()) {
		w.log.Debug("navigation to step %d rejected, max is %d", index, w.TabSelectionMax())
		return false
	}
	w.selectIndex(index)
	return true
}

// Changed propagates a change of the named property through the graph and
// revalidates.
func (w *Workflow) Changed(property string) {
	w.graph.Changed(property)
	w.Validate()
}

// Refresh re-derives every step from the environment, discarding edits.
func (w *Workflow) Refresh() {
	for _, s := range w.steps {
		s.Refresh()
	}
	if w.closing != nil {
		w.closing.Refresh()
	}
	w.graph.RecomputeAll()
	w.Validate()
}

// Validate recomputes the failures of every navigable step and the
// navigation bounds.
func (w *Workflow) Validate() {
	w.validateAll()
	w.Recompute()
}

// Recompute derives the first invalid step from the current failures and
// pulls the active step back when it lies beyond TabSelectionMax.
func (w *Workflow) Recompute() {
	nav := w.Navigable()

	w.firstValid = true
	w.firstIdx = -1
	for i, s := range nav {
		if s == w.closing {
			continue
		}
		if !s.IsValid() {
			w.firstValid = false
			w.firstIdx = i
			break
		}
	}

	idx := indexOf(nav, w.active)
	if idx < 0 {
		idx = w.activeIdx
		if idx >= len(nav) {
			idx = len(nav) - 1
		}
	}
	if limit := w.TabSelectionMax(); idx > limit {
		w.log.Debug("active step %d moved back to %d", idx, limit)
		idx = limit
	}
	w.setActive(nav, idx)
}

// AllFailures lists the failures of every relevant step, in step order.
func (w *Workflow) AllFailures() []StepFailure {
	var out []StepFailure
	for _, s := range w.Navigable() {
		for _, f := range s.ValidationFailures() {
			out = append(out, StepFailure{Step: s.Header(), Failure: f})
		}
	}
	return out
}

// ValidationSummary returns nil for a valid workflow, otherwise an error
// listing every failure of every relevant step as "Field: message".
func (w *Workflow) ValidationSummary() error {
	var result *multierror.Error
	for _, sf := range w.AllFailures() {
		result = multierror.Append(result, errors.New(sf.Failure.String()))
	}
	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		lines := make([]string, 0, len(errs))
		for _, e := range errs {
			lines = append(lines, e.Error())
		}
		return strings.Join(lines, "\n")
	}
	return result
}

// PrerequisiteFailures returns the current failures that need external
// remediation and a restarted session.
func (w *Workflow) PrerequisiteFailures() []StepFailure {
	var out []StepFailure
	for _, sf := range w.AllFailures() {
		if w.IsPrerequisite(sf.Failure.Field) {
			out = append(out, sf)
		}
	}
	return out
}

// IsPrerequisite reports whether field is a well-known prerequisite field.
func (w *Workflow) IsPrerequisite(field string) bool {
	_, ok := w.prerequisites[strings.ToUpper(field)]
	return ok
}

// StepFailure ties a failure to the header of its step.
type StepFailure struct {
	Step    string
	Failure Failure
}

func (w *Workflow) validateAll() {
	for _, s := range w.steps {
		if s.IsRelevant() {
			s.Validate()
		}
	}
}

func (w *Workflow) selectIndex(index int) {
	w.activeIdx = index
	w.active = nil
	w.Recompute()
}

func (w *Workflow) setActive(nav []Step, idx int) {
	if idx < 0 || idx >= len(nav) {
		w.active = nil
		w.activeIdx = 0
		return
	}
	w.active = nav[idx]
	w.activeIdx = idx
}

func indexOf(steps []Step, target Step) int {
	if target == nil {
		return -1
	}
	for i, s := range steps {
		if s == target {
			return i
		}
	}
	return -1
}
