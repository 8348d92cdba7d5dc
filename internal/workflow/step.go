package workflow

import "strings"

// Failure is one validation problem attached to a field of a step.
type Failure struct {
	Field   string
	Message string
}

// String renders the failure as "Field: message".
func (f Failure) String() string {
	return f.Field + ": " + f.Message
}

// Step is the capability every wizard step exposes to the workflow.
type Step interface {
	Header() string
	IsRelevant() bool
	IsValid() bool
	ValidationFailures() []Failure
	Refresh()
	Validate()
}

// Validator computes the failures of a step from its current values.
type Validator interface {
	Validate() []Failure
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func() []Failure

// Validate satisfies Validator.
func (f ValidatorFunc) Validate() []Failure {
	return f()
}

// Rule checks one field. Check returns an empty string when the field is valid.
type Rule struct {
	Field string
	Check func() string
}

// Rules is an ordered Validator. Each rule contributes at most one failure.
type Rules []Rule

// Validate satisfies Validator.
func (r Rules) Validate() []Failure {
	var failures []Failure
	for _, rule := range r {
		if msg := rule.Check(); msg != "" {
			failures = append(failures, Failure{Field: rule.Field, Message: msg})
		}
	}
	return failures
}

// Required is a Check that fails when get returns blank text.
func Required(get func() string, message string) func() string {
	return func() string {
		if strings.TrimSpace(get()) == "" {
			return message
		}
		return ""
	}
}

// StepBase carries the state shared by every step. Concrete steps embed it
// and install their validator and refresh hook after construction.
type StepBase struct {
	header    string
	relevant  bool
	failures  []Failure
	validator Validator
	refresh   func()
}

// NewStepBase creates a relevant step with no validator.
func NewStepBase(header string) *StepBase {
	return &StepBase{header: header, relevant: true}
}

// Header returns the display name.
func (b *StepBase) Header() string { return b.header }

// IsRelevant reports whether the step takes part in the navigable sequence.
func (b *StepBase) IsRelevant() bool { return b.relevant }

// SetRelevant changes relevance. Only inputs from other steps should drive it.
func (b *StepBase) SetRelevant(relevant bool) { b.relevant = relevant }

// IsValid is true iff the last validation produced no failures.
func (b *StepBase) IsValid() bool { return len(b.failures) == 0 }

// ValidationFailures returns a copy of the current failures.
func (b *StepBase) ValidationFailures() []Failure {
	return append([]Failure(nil), b.failures...)
}

// SetValidator injects the validation strategy.
func (b *StepBase) SetValidator(v Validator) { b.validator = v }

// OnRefresh installs the hook that re-derives values from the environment.
func (b *StepBase) OnRefresh(fn func()) { b.refresh = fn }

// Validate recomputes the failures.
func (b *StepBase) Validate() {
	if b.validator == nil {
		b.failures = nil
		return
	}
	b.failures = b.validator.Validate()
}

// Refresh re-derives values and discards pending edits. Relevance is kept.
func (b *StepBase) Refresh() {
	if b.refresh != nil {
		b.refresh()
	}
	b.Validate()
}

// ClosingStep ends every workflow. It is always relevant and never invalid.
type ClosingStep struct {
	*StepBase
}

// NewClosingStep creates the closing step.
func NewClosingStep(header string) *ClosingStep {
	return &ClosingStep{StepBase: NewStepBase(header)}
}
