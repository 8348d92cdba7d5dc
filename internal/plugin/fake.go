package plugin

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Script is the canned behaviour of one fake invocation.
type Script struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	// Prompt is written to stdout without a trailing newline after Stdout.
	Prompt string
}

// FakeStarter replays scripted processes and records every command.
type FakeStarter struct {
	mu       sync.Mutex
	Commands []Command
	Inputs   []*bytes.Buffer
	// Respond picks the script for a command. A nil Respond exits 0 silently.
	Respond  func(cmd Command) Script
	StartErr error
}

// Start satisfies Starter.
func (f *FakeStarter) Start(_ context.Context, cmd Command) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	if f.StartErr != nil {
		return nil, f.StartErr
	}

	var script Script
	if f.Respond != nil {
		script = f.Respond(cmd)
	}

	stdout := strings.Join(script.Stdout, "\n")
	if len(script.Stdout) > 0 {
		stdout += "\n"
	}
	stdout += script.Prompt

	stderr := strings.Join(script.Stderr, "\n")

	input := &bytes.Buffer{}
	f.Inputs = append(f.Inputs, input)

	return &fakeProcess{
		stdin:    nopWriteCloser{input},
		stdout:   strings.NewReader(stdout),
		stderr:   strings.NewReader(stderr),
		exitCode: script.ExitCode,
	}, nil
}

// Calls returns the argument lists of every command started.
func (f *FakeStarter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

type fakeProcess struct {
	stdin    io.WriteCloser
	stdout   io.Reader
	stderr   io.Reader
	exitCode int
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *fakeProcess) Stdout() io.Reader      { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader      { return p.stderr }
func (p *fakeProcess) Wait() (int, error)     { return p.exitCode, nil }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// ErrStartFailed is a canned start error for tests.
var ErrStartFailed = errors.New("executable not found")
