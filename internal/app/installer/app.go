// Package installer assembles one installer session: settings, logging,
// host environment, registry, product model and task runner.
package installer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"EWI/internal/config"
	"EWI/internal/env"
	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
	"EWI/internal/logger"
	"EWI/internal/plugin"
	"EWI/internal/preserve"
	"EWI/internal/product"
	"EWI/internal/product/elasticsearch"
	"EWI/internal/product/kibana"
	"EWI/internal/service"
	"EWI/internal/store"
	"EWI/internal/task"
	"EWI/internal/ui"
)

// Installer is the surface shared by every product model.
type Installer interface {
	ui.Form
	Apply(args map[string]string) error
	Arguments() map[string]string
	ValidationSummary() error
	Layout() product.Layout
	Tasks(t product.Timing) []task.Task
	Base() *product.Model
}

type builder func(product.Session, ...product.ModelOption) (Installer, error)

type entry struct {
	desc  product.Descriptor
	build builder
}

var products = map[string]entry{
	elasticsearch.Descriptor.Name: {
		desc: elasticsearch.Descriptor,
		build: func(s product.Session, opts ...product.ModelOption) (Installer, error) {
			return elasticsearch.New(s, opts...)
		},
	},
	kibana.Descriptor.Name: {
		desc: kibana.Descriptor,
		build: func(s product.Session, opts ...product.ModelOption) (Installer, error) {
			return kibana.New(s, opts...)
		},
	},
}

// Products lists the installable product names.
func Products() []string {
	names := make([]string, 0, len(products))
	for name := range products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures an App. Zero-valued collaborators fall back to the
// operating system implementations.
type Options struct {
	Product      string
	Version      string
	SettingsPath string
	StagingRoot  string
	LogFile      string
	RegistryPath string
	Verbose      bool

	Output    io.Writer
	Logger    logger.Logger
	Services  service.Manager
	Variables env.Store
	Starter   plugin.Starter
	Prompter  ui.Prompter
	// Detect captures the host environment for the given variable names.
	Detect func(names ...string) (*env.Snapshot, error)
}

// App is one installer session.
type App struct {
	opts      Options
	entry     entry
	settings  *config.Settings
	log       logger.Logger
	closeLog  func() error
	printer   *ui.Printer
	output    io.Writer
	sessionID string
	detect    func(names ...string) (*env.Snapshot, error)
	vars      env.Store
	svc       service.Manager
	snapshot  *env.Snapshot
	registry  *store.SQLiteRegistry
}

// New loads settings, opens the log and the registry and captures the
// host environment for opts.Product.
func New(ctx context.Context, opts Options) (*App, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Product))
	e, ok := products[name]
	if !ok {
		return nil, apperrors.ValidationError(apperrors.CodeValidationGeneric,
			"unknown product "+opts.Product+", expected one of "+strings.Join(Products(), ", "), nil).
			WithModule("installer").
			WithOperation("installer.New")
	}

	settings, err := config.Load(opts.SettingsPath)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeSettingsFile, "failed to load installer settings", err).
			WithModule("installer").
			WithOperation("installer.New").
			WithField("path", opts.SettingsPath)
	}
	if opts.StagingRoot != "" {
		settings.StagingRoot = opts.StagingRoot
	}

	a := &App{
		opts:      opts,
		entry:     e,
		settings:  settings,
		output:    opts.Output,
		sessionID: uuid.NewString(),
	}
	if a.output == nil {
		a.output = os.Stdout
	}
	a.printer = ui.NewPrinter(a.output)
	a.openLog()

	a.vars = opts.Variables
	if a.vars == nil {
		a.vars = env.NewOSStore()
	}
	a.svc = opts.Services
	if a.svc == nil {
		a.svc = service.NewKardianosManager(a.log)
	}

	a.detect = opts.Detect
	if a.detect == nil {
		a.detect = func(names ...string) (*env.Snapshot, error) {
			return env.Detect(a.vars, names...)
		}
	}
	if err := a.refreshEnvironment(); err != nil {
		a.Close()
		return nil, err
	}

	registryPath := opts.RegistryPath
	if registryPath == "" {
		registryPath = filepath.Join(a.snapshot.ProgramData, "Elastic", "Installer", "registry.db")
	}
	if err := os.MkdirAll(filepath.Dir(registryPath), 0o755); err != nil {
		a.Close()
		return nil, apperrors.SystemError(apperrors.CodeFileOperation, "failed to create registry directory", err).
			WithModule("installer").
			WithOperation("installer.New").
			WithField("path", registryPath)
	}
	a.registry, err = store.OpenSQLite(ctx, registryPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.log.Debug("Session %s for %s opened, registry %s", a.sessionID, e.desc.DisplayName, registryPath)
	return a, nil
}

// refreshEnvironment captures the host and the product variables again, so
// a session sees the variables written by an earlier run.
func (a *App) refreshEnvironment() error {
	snap, err := a.detect(a.entry.desc.Variables.Names()...)
	if err != nil {
		return apperrors.SystemError(apperrors.CodeSystemGeneric, "failed to inspect the host environment", err).
			WithModule("installer").
			WithOperation("installer.refreshEnvironment")
	}
	a.snapshot = snap
	return nil
}

func (a *App) openLog() {
	if a.opts.Logger != nil {
		a.log = a.opts.Logger
		a.closeLog = func() error { return nil }
		return
	}

	level := logger.ParseLevel(a.settings.Log.Level)
	if a.opts.Verbose {
		level = logger.LevelDebug
	}
	options := []logger.Option{logger.WithLevel(level)}

	path := a.opts.LogFile
	if path == "" {
		path = a.settings.Log.File
	}
	if path != "" {
		options = append(options, logger.WithRotatingFile(path, a.settings.Log.MaxSizeMB, a.settings.Log.MaxBackups))
	}

	colored := logger.NewColoredLogger(options...)
	a.closeLog = colored.Close
	a.log = colored.With(logger.String("session", a.sessionID), logger.String("product", a.entry.desc.Name))
}

// Close releases the registry and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.registry != nil {
		firstErr = a.registry.Close()
		a.registry = nil
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.closeLog = nil
	}
	return firstErr
}

// Logger returns the session logger.
func (a *App) Logger() logger.Logger {
	return a.log
}

// Printer returns the terminal printer.
func (a *App) Printer() *ui.Printer {
	return a.printer
}

// Settings returns the effective installer settings.
func (a *App) Settings() *config.Settings {
	return a.settings
}

// Registry returns the installation registry.
func (a *App) Registry() store.Registry {
	return a.registry
}

// Timing derives task timeouts from the settings.
func (a *App) Timing() product.Timing {
	t := product.DefaultTiming()
	if d := a.settings.Service.StartTimeout; d > 0 {
		t.StartTimeout = d
	}
	if d := a.settings.Service.StopTimeout; d > 0 {
		t.StopTimeout = d
	}
	if d := a.settings.Service.PollInterval; d > 0 {
		t.PollInterval = d
	}
	if n := a.settings.Plugins.InstallTicks; n > 0 {
		t.PluginTicks = n
	}
	return t
}

func (a *App) version() string {
	if a.opts.Version != "" {
		return a.opts.Version
	}
	return a.settings.ProductVersion(a.entry.desc.Name)
}

// Session reconstructs the product state for op from the registry.
func (a *App) Session(ctx context.Context, op product.Operation) (product.Session, error) {
	ver := a.version()
	if ver == "" {
		return product.Session{}, apperrors.ConfigError(apperrors.CodeSettingsFile,
			"no version configured for "+a.entry.desc.Name, nil).
			WithModule("installer").
			WithOperation("installer.Session")
	}

	if err := a.refreshEnvironment(); err != nil {
		return product.Session{}, err
	}
	installed, err := a.registry.Installations(ctx, a.entry.desc.Name)
	if err != nil {
		return product.Session{}, err
	}
	older, err := a.registry.OlderVersionInstalled(ctx, a.entry.desc.Name, ver)
	if err != nil {
		return product.Session{}, err
	}

	session := product.Session{
		Snapshot:              a.snapshot,
		Version:               ver,
		Operation:             op,
		StagingRoot:           a.settings.StagingRoot,
		Installed:             installed,
		OlderVersionInstalled: older,
	}
	if op == product.Install {
		session.PreviousPlugins, err = a.previousPlugins(ctx, session)
		if err != nil {
			return product.Session{}, err
		}
	}
	return session, nil
}

// previousPlugins returns the plugins selected for the installation being
// upgraded, falling back to the ones found in its plugins directory.
func (a *App) previousPlugins(ctx context.Context, session product.Session) ([]string, error) {
	prev, ok := session.Previous()
	if !ok {
		return nil, nil
	}
	records, err := a.registry.Plugins(ctx, a.entry.desc.Name)
	if err != nil {
		return nil, err
	}
	var selected []string
	for _, r := range records {
		if r.Selected {
			selected = append(selected, r.Identifier)
		}
	}
	if len(selected) > 0 {
		return selected, nil
	}

	live, err := a.PluginRunner().ListInstalled(ctx, prev.InstallDir, prev.ConfigDir)
	if err != nil {
		a.log.Warn("Could not list the plugins of %s %s: %v", a.entry.desc.DisplayName, prev.Version, err)
		return nil, nil
	}
	return live, nil
}

// Load builds the product model for op and applies args onto it.
func (a *App) Load(ctx context.Context, op product.Operation, args map[string]string) (Installer, error) {
	session, err := a.Session(ctx, op)
	if err != nil {
		return nil, err
	}
	inst, err := a.entry.build(session, product.WithModelLogger(a.log))
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := inst.Apply(args); err != nil {
			return nil, err
		}
	}
	a.log.Info("Loaded %s %s for %s (%d existing installations, older version remains: %t)",
		a.entry.desc.DisplayName, session.Version, op, len(session.Installed), session.OlderVersionInstalled)
	return inst, nil
}

// PluginRunner creates the plugin script runner for this product.
func (a *App) PluginRunner() *plugin.Runner {
	options := []plugin.Option{plugin.WithLogger(a.log)}
	if d := a.settings.Plugins.ProcessTimeout; d > 0 {
		options = append(options, plugin.WithTimeout(d))
	}
	if a.opts.Starter != nil {
		options = append(options, plugin.WithStarter(a.opts.Starter))
	}
	return plugin.NewRunner(a.entry.desc.Plugin, options...)
}

func (a *App) collaborators(inst Installer) task.Collaborators {
	return task.Collaborators{
		FS:        fsys.OS{},
		Services:  a.svc,
		Plugins:   a.PluginRunner(),
		Preserver: inst.Base().NewPreserver(preserve.WithLogger(a.log)),
		Variables: a.vars,
		Env:       a.snapshot,
		Registry:  a.registry,
	}
}

// RunRequest describes one operation.
type RunRequest struct {
	Operation   product.Operation
	Arguments   map[string]string
	Interactive bool
}

// Run loads the model, optionally walks the wizard and executes the
// operation's task sequence.
func (a *App) Run(ctx context.Context, req RunRequest) (task.Outcome, error) {
	ctx = logger.ContextWithTrace(ctx, logger.TraceContext{
		SessionID: a.sessionID,
		Product:   a.entry.desc.Name,
		Operation: req.Operation.String(),
	})

	inst, err := a.Load(ctx, req.Operation, req.Arguments)
	if err != nil {
		return task.Failed, err
	}
	a.printer.PrintBanner(a.entry.desc.DisplayName, inst.Base().Session.Version, req.Operation.String())

	wf := inst.Workflow()
	if req.Interactive && req.Operation == product.Install {
		if err := ui.NewWizard(inst, a.opts.Prompter, a.printer).Run(); err != nil {
			return task.Cancelled, err
		}
	} else if inst.ValidationSummary() != nil {
		a.printer.PrintFailures(wf.AllFailures(), wf.IsPrerequisite)
	}

	started := time.Now()
	runner := task.NewRunner(
		task.WithCollaborators(a.collaborators(inst)),
		task.WithReporter(ui.NewConsole(a.log, a.output)),
		task.WithLogger(a.log),
		task.WithStateDump(inst.Arguments),
	)
	outcome, err := runner.Run(ctx, inst, inst.Tasks(a.Timing()))
	a.log.InfoContext(ctx, "Run finished",
		logger.String("outcome", outcome.String()),
		logger.String("elapsed", time.Since(started).Round(time.Millisecond).String()))
	a.printer.PrintOutcome(outcome, err)
	return outcome, err
}

// InstalledPlugins lists the plugins of the installed product together with
// the selections recorded by earlier runs.
func (a *App) InstalledPlugins(ctx context.Context) (live []string, recorded []string, err error) {
	inst, err := a.Load(ctx, product.Install, nil)
	if err != nil {
		return nil, nil, err
	}
	layout := inst.Layout()
	live, err = a.PluginRunner().ListInstalled(ctx, layout.InstallDir, layout.ConfigDir)
	if err != nil {
		return nil, nil, err
	}

	records, err := a.registry.Plugins(ctx, a.entry.desc.Name)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range records {
		recorded = append(recorded, r.Identifier)
	}
	return live, recorded, nil
}
