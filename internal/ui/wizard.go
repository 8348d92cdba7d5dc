package ui

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"EWI/internal/argument"
	"EWI/internal/workflow"
)

// ErrAborted is returned when the operator leaves the wizard.
var ErrAborted = errors.New("wizard aborted")

// ErrPrerequisites is returned when a failure no step edit can fix is present.
var ErrPrerequisites = errors.New("prerequisites not met")

// Prompter asks the operator for input.
type Prompter interface {
	Select(label string, items []string) (int, error)
	Input(label, value string, secret bool) (string, error)
}

// Form is the model a wizard edits.
type Form interface {
	Workflow() *workflow.Workflow
	Catalog() *argument.Catalog
	Set(name, raw string) error
}

// PromptUI prompts through promptui in the terminal.
type PromptUI struct{}

// Select shows items and returns the chosen index.
func (PromptUI) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  12,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}:",
			Active:   "▶ {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "✅ {{ . | green }}",
			Help:     "{{ \"Navigate:\" | faint }} {{ .NextKey }} {{ .PrevKey }} {{ \"|\" | faint }} {{ \"Exit:\" | faint }} Ctrl + C",
		},
	}
	index, _, err := prompt.Run()
	return index, err
}

// Input asks for a value, masking it when secret.
func (PromptUI) Input(label, value string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   value,
		AllowEdit: !secret,
	}
	if secret {
		prompt.Mask = '*'
	}
	return prompt.Run()
}

// Wizard walks the navigable steps of a Form.
type Wizard struct {
	form    Form
	prompt  Prompter
	printer *Printer
}

// NewWizard creates a wizard over form.
func NewWizard(form Form, prompt Prompter, printer *Printer) *Wizard {
	if prompt == nil {
		prompt = PromptUI{}
	}
	return &Wizard{form: form, prompt: prompt, printer: printer}
}

// Run drives the wizard until the operator confirms on the closing step.
// It returns ErrAborted on cancel and ErrPrerequisites when the session
// must be restarted after external remediation.
func (w *Wizard) Run() error {
	wf := w.form.Workflow()
	if failures := wf.PrerequisiteFailures(); len(failures) > 0 {
		w.printer.PrintFailures(failures, wf.IsPrerequisite)
		return ErrPrerequisites
	}

	for {
		step := wf.Active()
		provider, ok := step.(argument.Provider)
		if !ok {
			done, err := w.closing(wf)
			if err != nil || done {
				return err
			}
			continue
		}
		if err := w.page(wf, step, provider); err != nil {
			return err
		}
	}
}

const (
	itemNext = "Next ▶"
	itemBack = "◀ Back"
	itemQuit = "Cancel"
)

func (w *Wizard) page(wf *workflow.Workflow, step workflow.Step, provider argument.Provider) error {
	descs := w.form.Catalog().For(provider.StepType())
	items := formatArguments(descs)
	items = append(items, itemNext, itemBack, itemQuit)

	label := fmt.Sprintf("%s (%d/%d)", step.Header(), wf.ActiveIndex()+1, len(wf.Navigable()))
	idx, err := w.prompt.Select(label, items)
	if err != nil {
		return ErrAborted
	}

	switch {
	case idx < len(descs):
		return w.edit(wf, descs[idx])
	case items[idx] == itemNext:
		if !wf.NavigateForward() {
			w.printFailures(wf, wf.CurrentFailures())
		}
	case items[idx] == itemBack:
		wf.NavigateBack()
	default:
		return ErrAborted
	}
	return nil
}

func (w *Wizard) edit(wf *workflow.Workflow, d argument.Descriptor) error {
	secret := strings.EqualFold(d.Name, "Password")
	current := d.Encoded()
	if secret {
		current = ""
	}
	value, err := w.prompt.Input(d.Name, current, secret)
	if err != nil {
		return ErrAborted
	}
	if err := w.form.Set(d.Name, value); err != nil {
		w.printer.PrintError(err)
		return nil
	}
	w.printFailures(wf, wf.CurrentFailures())
	return nil
}

func (w *Wizard) closing(wf *workflow.Workflow) (bool, error) {
	if summary := wf.ValidationSummary(); summary != nil {
		w.printer.PrintFailures(wf.AllFailures(), wf.IsPrerequisite)
	}
	idx, err := w.prompt.Select(wf.Active().Header(), []string{"Install", itemBack, itemQuit})
	if err != nil {
		return false, ErrAborted
	}
	switch idx {
	case 0:
		if wf.IsValid() {
			return true, nil
		}
		wf.Select(wf.TabSelectionMax())
		return false, nil
	case 1:
		wf.NavigateBack()
		return false, nil
	default:
		return false, ErrAborted
	}
}

func (w *Wizard) printFailures(wf *workflow.Workflow, failures []workflow.Failure) {
	step := wf.Active()
	if invalid, _, ok := wf.FirstInvalidStep(); ok {
		step = invalid
	}
	out := make([]workflow.StepFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, workflow.StepFailure{Step: step.Header(), Failure: f})
	}
	w.printer.PrintFailures(out, wf.IsPrerequisite)
}

func formatArguments(descs []argument.Descriptor) []string {
	width := 0
	for _, d := range descs {
		if n := runewidth.StringWidth(d.Name); n > width {
			width = n
		}
	}
	items := make([]string, 0, len(descs))
	for _, d := range descs {
		value := d.Encoded()
		if strings.EqualFold(d.Name, "Password") && value != "" {
			value = "********"
		}
		items = append(items, runewidth.FillRight(d.Name, width)+"  "+value)
	}
	return items
}
