package plugin

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Command is one invocation of a plugin-management script.
type Command struct {
	Path string
	Args []string
	Env  map[string]string
	Dir  string
}

// String renders the command line used in errors and logs.
func (c Command) String() string {
	parts := append([]string{c.Path}, c.Args...)
	return strings.Join(parts, " ")
}

// Process is a started child with redirected standard streams.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until exit. Streams must be drained first.
	Wait() (exitCode int, err error)
}

// Starter spawns processes.
type Starter interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// DefaultWaitDelay is how long output is still read after the context ends.
const DefaultWaitDelay = 5 * time.Second

// ExecStarter starts real processes with os/exec. Once the context is done
// the child is killed and, after WaitDelay, its output pipes are closed so
// grandchildren holding them open cannot block the caller.
type ExecStarter struct {
	WaitDelay time.Duration
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	done   chan struct{}
}

// Start satisfies Starter. The child inherits the parent environment plus cmd.Env.
func (s ExecStarter) Start(ctx context.Context, c Command) (Process, error) {
	delay := s.WaitDelay
	if delay <= 0 {
		delay = DefaultWaitDelay
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = delay
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stderr")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", c.Path)
	}

	p := &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr, done: make(chan struct{})}
	go p.closeOnCancel(ctx, delay)
	return p, nil
}

func (p *execProcess) closeOnCancel(ctx context.Context, delay time.Duration) {
	select {
	case <-p.done:
		return
	case <-ctx.Done():
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		p.stdout.Close()
		p.stderr.Close()
	}
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader      { return p.stdout }
func (p *execProcess) Stderr() io.Reader      { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	close(p.done)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
