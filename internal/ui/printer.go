package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	runewidth "github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"EWI/internal/task"
	"EWI/internal/workflow"
)

// Printer renders rich terminal fragments used by the CLI.
type Printer struct {
	out     io.Writer
	success *color.Color
	info    *color.Color
	warn    *color.Color
	error   *color.Color
}

// NewPrinter constructs a Printer writing to out. Colour is enabled only
// when out is a terminal and NO_COLOR is unset.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	p := &Printer{
		out:     out,
		success: color.New(color.FgGreen, color.Bold),
		info:    color.New(color.FgBlue, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		error:   color.New(color.FgRed, color.Bold),
	}
	if !supportsColor(out) || os.Getenv("NO_COLOR") != "" {
		for _, c := range []*color.Color{p.success, p.info, p.warn, p.error} {
			c.DisableColor()
		}
	}
	return p
}

// PrintBanner renders the installer banner.
func (p *Printer) PrintBanner(product, version, operation string) {
	title := fmt.Sprintf("%s %s %s", product, version, operation)
	width := runewidth.StringWidth(title) + 8
	p.success.Fprintln(p.out, strings.Repeat("=", width))
	p.success.Fprintln(p.out, "    "+title)
	p.success.Fprintln(p.out, strings.Repeat("=", width))
}

// PrintSeparator prints a repeated character separator.
func (p *Printer) PrintSeparator(char string, length int) {
	if length <= 0 {
		return
	}
	fmt.Fprintln(p.out, strings.Repeat(char, length))
}

// PrintFailures renders validation failures grouped by step. Failures of
// prerequisite fields are marked as blocking.
func (p *Printer) PrintFailures(failures []workflow.StepFailure, isPrerequisite func(field string) bool) {
	if len(failures) == 0 {
		return
	}
	width := 0
	for _, f := range failures {
		if w := runewidth.StringWidth(f.Failure.Field); w > width {
			width = w
		}
	}
	for _, f := range failures {
		field := runewidth.FillRight(f.Failure.Field, width)
		if isPrerequisite != nil && isPrerequisite(f.Failure.Field) {
			fmt.Fprintf(p.out, "[ %s ] %s  %s (%s, restart the installer once fixed)\n",
				p.error.Sprint("✕"), p.error.Sprint(field), f.Failure.Message, f.Step)
			continue
		}
		fmt.Fprintf(p.out, "[ %s ] %s  %s (%s)\n", p.warn.Sprint("!"), p.warn.Sprint(field), f.Failure.Message, f.Step)
	}
}

// PrintArguments renders the packaging-layer property string one pair per line.
func (p *Printer) PrintArguments(names []string, args map[string]string) {
	width := 0
	for _, n := range names {
		if _, ok := args[n]; ok && len(n) > width {
			width = len(n)
		}
	}
	for _, n := range names {
		v, ok := args[n]
		if !ok {
			continue
		}
		fmt.Fprintf(p.out, "%s = %s\n", p.info.Sprint(runewidth.FillRight(n, width)), v)
	}
}

// PrintList renders a bulleted list, or none when empty.
func (p *Printer) PrintList(title string, items []string) {
	p.info.Fprintln(p.out, title)
	if len(items) == 0 {
		fmt.Fprintln(p.out, "  (none)")
		return
	}
	for _, it := range items {
		fmt.Fprintln(p.out, "  - "+it)
	}
}

// PrintOutcome renders the terminal state of a run.
func (p *Printer) PrintOutcome(outcome task.Outcome, err error) {
	switch outcome {
	case task.Succeeded:
		fmt.Fprintf(p.out, "[ %s ] %s\n", p.success.Sprint("✓"), "completed")
	case task.Cancelled:
		fmt.Fprintf(p.out, "[ %s ] %s\n", p.warn.Sprint("!"), "cancelled")
	default:
		fmt.Fprintf(p.out, "[ %s ] %s\n", p.error.Sprint("✕"), "failed")
	}
	if err != nil {
		fmt.Fprintln(p.out, err.Error())
	}
}

func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintError renders a single error line.
func (p *Printer) PrintError(err error) {
	fmt.Fprintf(p.out, "[ %s ] %s\n", p.error.Sprint("✕"), err.Error())
}
