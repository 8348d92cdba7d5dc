package plugin

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
	"EWI/internal/logger"
)

// Product describes the plugin script of one product.
type Product struct {
	Name           string
	Script         string
	ConfigVariable string
	InstallFlags   []string
	Patterns       Patterns
}

// Request carries the parameters of one install or remove.
type Request struct {
	TicksBudget int
	InstallDir  string
	ConfigDir   string
	Plugin      string
	ExtraArgs   []string
	Env         map[string]string
	Purge       bool
	// Progress receives tick increments and display messages.
	Progress func(ticks int, message string)
}

// ProcessError reports a failed plugin script invocation.
type ProcessError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	msg := "command " + e.Command + " exited with code " + strconv.Itoa(e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap exposes the start or wait error, if any.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Runner drives a product's plugin-management script.
type Runner struct {
	product Product
	starter Starter
	fs      fsys.FileSystem
	log     logger.Logger
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithStarter overrides how processes are spawned.
func WithStarter(s Starter) Option {
	return func(r *Runner) {
		if s != nil {
			r.starter = s
		}
	}
}

// WithFileSystem overrides the filesystem used to inspect the plugins directory.
func WithFileSystem(fs fsys.FileSystem) Option {
	return func(r *Runner) {
		if fs != nil {
			r.fs = fs
		}
	}
}

// WithLogger sets the logger receiving pass-through output.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTimeout bounds every invocation.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a Runner for product.
func NewRunner(product Product, options ...Option) *Runner {
	r := &Runner{
		product: product,
		starter: ExecStarter{},
		fs:      fsys.OS{},
		log:     logger.Discard(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Install installs req.Plugin and blocks until the script exits.
func (r *Runner) Install(ctx context.Context, req Request) error {
	args := append([]string{"install"}, req.ExtraArgs...)
	args = append(args, r.product.InstallFlags...)
	args = append(args, req.Plugin)
	_, err := r.invoke(ctx, "plugin.Install", req, args)
	return err
}

// Remove removes req.Plugin, purging its configuration when req.Purge is set.
func (r *Runner) Remove(ctx context.Context, req Request) error {
	args := []string{"remove", req.Plugin}
	if req.Purge {
		args = append(args, "--purge")
	}
	args = append(args, req.ExtraArgs...)
	_, err := r.invoke(ctx, "plugin.Remove", req, args)
	return err
}

// ListInstalled returns the installed plugin names, sorted. A missing or
// empty plugins directory yields an empty list without running the script.
func (r *Runner) ListInstalled(ctx context.Context, installDir, configDir string) ([]string, error) {
	pluginsDir := filepath.Join(installDir, "plugins")
	if !fsys.IsDir(r.fs, pluginsDir) {
		return []string{}, nil
	}
	entries, err := r.fs.ReadDir(pluginsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", pluginsDir)
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	lines, err := r.invoke(ctx, "plugin.ListInstalled", Request{InstallDir: installDir, ConfigDir: configDir}, []string{"list"})
	if err != nil {
		return nil, err
	}

	plugins := make([]string, 0, len(lines))
	for _, l := range lines {
		if l == "" || strings.HasPrefix(l, "WARNING") || strings.HasPrefix(l, "-") {
			continue
		}
		plugins = append(plugins, l)
	}
	sort.Strings(plugins)
	return plugins, nil
}

// ScriptPath is the plugin script below installDir.
func (r *Runner) ScriptPath(installDir string) string {
	return filepath.Join(installDir, "bin", r.product.Script)
}

type outputLine struct {
	text   string
	stderr bool
}

// invoke runs the script, pumping stdout and stderr into one ordered stream
// handled on the calling goroutine. It returns the stdout lines.
func (r *Runner) invoke(ctx context.Context, operation string, req Request, args []string) ([]string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := Command{
		Path: r.ScriptPath(req.InstallDir),
		Args: args,
		Env:  map[string]string{},
		Dir:  req.InstallDir,
	}
	for k, v := range req.Env {
		cmd.Env[k] = v
	}
	if r.product.ConfigVariable != "" && req.ConfigDir != "" {
		cmd.Env[r.product.ConfigVariable] = req.ConfigDir
	}

	log := r.log.With(logger.String("command", cmd.String()))
	log.Info("Running %s", cmd.String())

	proc, err := r.starter.Start(ctx, cmd)
	if err != nil {
		return nil, r.failure(operation, &ProcessError{Command: cmd.String(), ExitCode: -1, Output: err.Error(), Err: err})
	}

	lines := make(chan outputLine)
	var g errgroup.Group
	g.Go(func() error { return pump(proc.Stdout(), false, r.product.Patterns.Prompt, lines) })
	g.Go(func() error { return pump(proc.Stderr(), true, r.product.Patterns.Prompt, lines) })

	var readErr error
	go func() {
		readErr = g.Wait()
		close(lines)
	}()

	track := newTracker(r.product.Patterns, req.TicksBudget)
	var stdout, errText, all []string
	for line := range lines {
		text := strings.TrimSpace(line.text)
		if text == "" {
			continue
		}
		all = append(all, text)

		if line.stderr {
			errText = append(errText, text)
			log.Warn("%s", text)
		} else {
			stdout = append(stdout, text)
			log.Debug("%s", text)
		}

		if prompt := r.product.Patterns.Prompt; prompt != "" && strings.Contains(text, prompt) {
			if _, err := io.WriteString(proc.Stdin(), "y\n"); err != nil {
				log.Warn("Failed to answer prompt: %v", err)
			}
			continue
		}

		if ticks, ok := track.classify(text); ok && req.Progress != nil {
			req.Progress(ticks, text)
		}
	}
	proc.Stdin().Close()

	exitCode, waitErr := proc.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		waitErr = errors.Wrap(ctxErr, "plugin script interrupted")
		if exitCode == 0 {
			exitCode = -1
		}
	} else if readErr != nil && waitErr == nil {
		waitErr = readErr
	}

	if exitCode != 0 || len(errText) > 0 || waitErr != nil {
		output := strings.Join(errText, "\n")
		if output == "" {
			output = strings.Join(all, "\n")
		}
		if waitErr != nil && exitCode == 0 {
			exitCode = -1
		}
		return stdout, r.failure(operation, &ProcessError{Command: cmd.String(), ExitCode: exitCode, Output: output, Err: waitErr})
	}

	if rest := req.TicksBudget - track.used; rest > 0 && req.Progress != nil {
		req.Progress(rest, r.product.Name+" plugin "+req.Plugin+" done")
	}
	return stdout, nil
}

func (r *Runner) failure(operation string, procErr *ProcessError) error {
	return apperrors.ProcessError(apperrors.CodePluginProcess, "plugin script failed", procErr).
		WithModule("plugin").
		WithOperation(operation).
		WithFields(apperrors.Metadata{
			"command":   procErr.Command,
			"exit_code": procErr.ExitCode,
			"output":    procErr.Output,
		})
}

// pump splits r into lines and forwards them. A trailing prompt without a
// newline is forwarded immediately since the child is waiting on stdin.
func pump(r io.Reader, stderr bool, prompt string, out chan<- outputLine) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitLinesOrPrompt([]byte(prompt)))
	for scanner.Scan() {
		out <- outputLine{text: scanner.Text(), stderr: stderr}
	}
	return scanner.Err()
}

func splitLinesOrPrompt(prompt []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
			advance := i + 1
			if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
				advance++
			}
			return advance, data[:i], nil
		}
		if len(prompt) > 0 && bytes.Contains(data, prompt) {
			return len(data), data, nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
