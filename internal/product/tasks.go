package product

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"EWI/internal/env"
	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
	"EWI/internal/plugin"
	"EWI/internal/preserve"
	"EWI/internal/service"
	"EWI/internal/store"
	"EWI/internal/task"
)

// Timing bounds the waits performed by the service and plugin tasks.
type Timing struct {
	StartTimeout time.Duration
	StopTimeout  time.Duration
	PollInterval time.Duration
	PluginTicks  int
}

// DefaultTiming matches the installer's base settings.
func DefaultTiming() Timing {
	return Timing{
		StartTimeout: 60 * time.Second,
		StopTimeout:  60 * time.Second,
		PollInterval: 250 * time.Millisecond,
		PluginTicks:  2000,
	}
}

// InstallTasks is the install sequence. configure writes the product's
// settings files and runs after the directories exist.
func (m *Model) InstallTasks(t Timing, configure ...task.Task) []task.Task {
	tasks := []task.Task{
		m.StopServiceTask(t),
		m.PreserveTask(),
		m.CreateDirectoriesTask(),
	}
	tasks = append(tasks, configure...)
	return append(tasks,
		m.SetEnvironmentVariablesTask(),
		m.InstallServiceTask(),
		m.InstallPluginsTask(t),
		m.SetServiceStartTypeTask(),
		m.StartServiceTask(t),
		m.RegisterInstallationTask(),
		m.CleanupTask(),
	)
}

// UninstallTasks is the uninstall sequence.
func (m *Model) UninstallTasks(t Timing) []task.Task {
	return []task.Task{
		m.StopServiceTask(t),
		m.UninstallServiceTask(),
		m.RemovePluginsTask(t),
		m.RemoveEnvironmentVariablesTask(),
		m.DeleteDirectoriesTask(),
		m.UnregisterInstallationTask(),
		m.CleanupTask(),
	}
}

// RollbackTasks undoes a failed install. Preserved state is restored when
// an older version remains installed, otherwise the new state is deleted.
func (m *Model) RollbackTasks(t Timing) []task.Task {
	return []task.Task{
		m.StopServiceTask(t),
		m.UninstallServiceTask(),
		m.RemoveEnvironmentVariablesTask(),
		m.DeleteDirectoriesTask(),
		m.RestorePreservedTask(),
		m.UnregisterInstallationTask(),
		m.CleanupTask(),
	}
}

// Tasks returns the sequence for the session's operation.
func (m *Model) Tasks(t Timing, configure ...task.Task) []task.Task {
	switch m.Session.Operation {
	case Uninstall:
		return m.UninstallTasks(t)
	case Rollback:
		return m.RollbackTasks(t)
	default:
		return m.InstallTasks(t, configure...)
	}
}

// keepsSharedState reports whether directories and variables belong to an
// older version that stays installed.
func (m *Model) keepsSharedState() bool {
	return m.Session.Operation != Uninstall && m.Session.OlderVersionInstalled
}

// PreserveSource is the previous installation's directory when upgrading
// into a different one, otherwise "".
func (m *Model) PreserveSource() string {
	prev, ok := m.Session.Previous()
	if !ok || prev.InstallDir == "" || fsys.SamePath(prev.InstallDir, m.Layout().InstallDir) {
		return ""
	}
	return prev.InstallDir
}

// NewPreserver creates a preservation manager confined to this model's
// directories.
func (m *Model) NewPreserver(options ...preserve.Option) *preserve.Manager {
	roots := m.Layout().Roots()
	if src := m.PreserveSource(); src != "" {
		roots = append(roots, src)
	}
	return preserve.NewManager(roots, options...)
}

// StopServiceTask stops a running service and waits for it to stop.
func (m *Model) StopServiceTask(t Timing) task.Task {
	return task.Func{
		TaskName:  "StopService",
		TaskTicks: 10,
		Short:     "Stopping service",
		Long:      "Stopping the " + m.Desc.DisplayName + " service",
		Run: func(tc *task.Context) (bool, error) {
			name := m.Desc.ServiceName
			exists, err := tc.Services.Exists(name)
			if err != nil {
				return false, serviceFailure("StopService", name, err)
			}
			if !exists {
				tc.Progress(10, "No service to stop")
				return true, nil
			}
			status, err := tc.Services.Status(name)
			if err != nil {
				return false, serviceFailure("StopService", name, err)
			}
			if status != service.StatusStopped {
				if err := tc.Services.Stop(name); err != nil {
					return false, serviceFailure("StopService", name, err)
				}
				if err := service.WaitForStatus(tc, tc.Services, name, service.StatusStopped, t.PollInterval, t.StopTimeout); err != nil {
					return false, err
				}
			}
			tc.Progress(10, "Service stopped")
			return true, nil
		},
	}
}

// PreserveTask stages the current install directory, and an external
// config directory, so a rollback can restore them.
func (m *Model) PreserveTask() task.Task {
	return task.Func{
		TaskName:  "PreserveInstall",
		TaskTicks: 10,
		Short:     "Preserving existing installation",
		Long:      "Moving the existing installation aside",
		Run: func(tc *task.Context) (bool, error) {
			layout := m.Layout()
			if src := m.PreserveSource(); src != "" {
				if err := tc.Preserver.Preserve(src, layout.PreservedInstallDir()); err != nil {
					return false, err
				}
			}
			tc.Progress(5, "Preserved install directory")
			if layout.ConfigIsExternal() {
				if err := tc.Preserver.Copy(layout.ConfigDir, layout.PreservedConfigDir()); err != nil {
					return false, err
				}
			}
			tc.Progress(5, "Preserved config directory")
			return true, nil
		},
	}
}

// CreateDirectoriesTask creates the writable directories and adds bundled
// config files missing from the config directory.
func (m *Model) CreateDirectoriesTask() task.Task {
	return task.Func{
		TaskName:  "CreateDirectories",
		TaskTicks: 20,
		Short:     "Creating directories",
		Long:      "Creating the data, logs and config directories",
		Run: func(tc *task.Context) (bool, error) {
			layout := m.Layout()
			for _, dir := range []string{layout.InstallDir, layout.DataDir, layout.LogsDir, layout.ConfigDir} {
				if dir == "" {
					continue
				}
				if err := tc.EnsureDirectory(dir); err != nil {
					return false, err
				}
			}
			tc.Progress(10, "Directories created")

			// Operator files from the previous version win over bundled ones.
			if prev, ok := m.Session.Previous(); ok && fsys.Within(prev.InstallDir, prev.ConfigDir) {
				if _, err := tc.SyncDirectory(filepath.Join(layout.PreservedInstallDir(), "config"), layout.ConfigDir); err != nil {
					return false, err
				}
			}
			copied, err := tc.SyncDirectory(layout.BundledConfigDir(), layout.ConfigDir)
			if err != nil {
				return false, err
			}
			tc.Progress(10, "Added "+strconv.Itoa(len(copied))+" config files")
			return true, nil
		},
	}
}

// SetEnvironmentVariablesTask sets the machine home and config variables
// and removes the legacy config variable.
func (m *Model) SetEnvironmentVariablesTask() task.Task {
	return task.Func{
		TaskName:  "SetEnvironmentVariables",
		TaskTicks: 5,
		Short:     "Setting environment variables",
		Long:      "Setting the " + m.Desc.Variables.Home + " and " + m.Desc.Variables.Config + " environment variables",
		Run: func(tc *task.Context) (bool, error) {
			layout := m.Layout()
			vars := m.Desc.Variables
			if err := tc.Variables.Set(vars.Home, layout.InstallDir, env.ScopeMachine); err != nil {
				return false, variableFailure("SetEnvironmentVariables", vars.Home, err)
			}
			if err := tc.Variables.Set(vars.Config, layout.ConfigDir, env.ScopeMachine); err != nil {
				return false, variableFailure("SetEnvironmentVariables", vars.Config, err)
			}
			if vars.LegacyConfig != "" {
				if _, legacy, ok := m.Session.Snapshot.ConfigDirectory(vars); ok && legacy {
					tc.Log.Info("Migrating %s to %s", vars.LegacyConfig, vars.Config)
				}
				if err := tc.Variables.Delete(vars.LegacyConfig, env.ScopeMachine); err != nil {
					return false, variableFailure("SetEnvironmentVariables", vars.LegacyConfig, err)
				}
			}
			tc.Progress(5, "Environment variables set")
			return true, nil
		},
	}
}

// RemoveEnvironmentVariablesTask deletes the product variables unless an
// older version still uses them.
func (m *Model) RemoveEnvironmentVariablesTask() task.Task {
	return task.Func{
		TaskName:  "RemoveEnvironmentVariables",
		TaskTicks: 5,
		Short:     "Removing environment variables",
		Long:      "Removing the " + m.Desc.DisplayName + " environment variables",
		Run: func(tc *task.Context) (bool, error) {
			if m.keepsSharedState() {
				tc.Progress(5, "Older version installed, keeping environment variables")
				return true, nil
			}
			for _, name := range m.Desc.Variables.Names() {
				if err := tc.Variables.Delete(name, env.ScopeMachine); err != nil {
					return false, variableFailure("RemoveEnvironmentVariables", name, err)
				}
			}
			tc.Progress(5, "Environment variables removed")
			return true, nil
		},
	}
}

// InstallServiceTask registers the service, replacing an existing one.
func (m *Model) InstallServiceTask() task.Task {
	return task.Func{
		TaskName:  "InstallService",
		TaskTicks: 20,
		Short:     "Installing service",
		Long:      "Installing " + m.Desc.DisplayName + " as a Windows service",
		Run: func(tc *task.Context) (bool, error) {
			if !m.Service.InstallAsService {
				tc.Progress(20, "Not installing as a service")
				return true, nil
			}
			name := m.Desc.ServiceName
			exists, err := tc.Services.Exists(name)
			if err != nil {
				return false, serviceFailure("InstallService", name, err)
			}
			if exists {
				if err := tc.Services.Uninstall(name); err != nil {
					return false, serviceFailure("InstallService", name, err)
				}
				tc.Progress(5, "Removed existing service")
			}
			if err := tc.Services.Install(m.serviceConfig()); err != nil {
				return false, serviceFailure("InstallService", name, err)
			}
			tc.Progress(15, "Service installed")
			return true, nil
		},
	}
}

func (m *Model) serviceConfig() service.Config {
	layout := m.Layout()
	user, password := m.Service.Account()
	return service.Config{
		Name:             m.Desc.ServiceName,
		DisplayName:      m.Desc.DisplayName + " " + m.Session.Version,
		Description:      m.Desc.DisplayName + " " + m.Session.Version,
		Executable:       filepath.Join(layout.InstallDir, m.Desc.ServiceExecutable),
		WorkingDirectory: layout.InstallDir,
		UserName:         user,
		Password:         password,
		StartType:        service.StartManual,
		EnvVars: map[string]string{
			m.Desc.Variables.Home:   layout.InstallDir,
			m.Desc.Variables.Config: layout.ConfigDir,
		},
	}
}

// UninstallServiceTask removes the service if registered.
func (m *Model) UninstallServiceTask() task.Task {
	return task.Func{
		TaskName:  "UninstallService",
		TaskTicks: 10,
		Short:     "Removing service",
		Long:      "Removing the " + m.Desc.DisplayName + " Windows service",
		Run: func(tc *task.Context) (bool, error) {
			name := m.Desc.ServiceName
			exists, err := tc.Services.Exists(name)
			if err != nil {
				return false, serviceFailure("UninstallService", name, err)
			}
			if exists {
				if err := tc.Services.Uninstall(name); err != nil {
					return false, serviceFailure("UninstallService", name, err)
				}
			}
			tc.Progress(10, "Service removed")
			return true, nil
		},
	}
}

// InstallPluginsTask installs the selected plugins not yet installed and
// records them in the registry.
func (m *Model) InstallPluginsTask(t Timing) task.Task {
	return task.Func{
		TaskName:  "InstallPlugins",
		TaskTicks: t.PluginTicks,
		Short:     "Installing plugins",
		Long:      "Installing the selected " + m.Desc.DisplayName + " plugins",
		Run: func(tc *task.Context) (bool, error) {
			selected := m.Plugins.Plugins
			if len(selected) == 0 {
				tc.Progress(t.PluginTicks, "No plugins selected")
				return true, nil
			}
			layout := m.Layout()
			installed, err := tc.Plugins.ListInstalled(tc, layout.InstallDir, layout.ConfigDir)
			if err != nil {
				return false, err
			}
			have := make(map[string]struct{}, len(installed))
			for _, p := range installed {
				have[strings.ToLower(p)] = struct{}{}
			}

			budget := t.PluginTicks / len(selected)
			proxy := m.Plugins.ProxyEnv(m.Desc.JavaOptionsVariable)
			for _, id := range selected {
				if _, ok := have[strings.ToLower(id)]; ok {
					tc.Progress(budget, "Plugin "+id+" already installed")
					continue
				}
				req := plugin.Request{
					TicksBudget: budget,
					InstallDir:  layout.InstallDir,
					ConfigDir:   layout.ConfigDir,
					Plugin:      id,
					Env:         proxy,
					Progress:    tc.Progress,
				}
				if err := tc.Plugins.Install(tc, req); err != nil {
					return false, err
				}
				if tc.Registry != nil {
					rec := store.PluginRecord{Product: m.Desc.Name, Identifier: id, Selected: true, Ticks: budget}
					if err := tc.Registry.RecordPlugin(tc, rec); err != nil {
						return false, err
					}
				}
			}
			return true, nil
		},
	}
}

// RemovePluginsTask removes every installed plugin with the plugin script,
// purging its configuration. Plugins are kept while an older version still
// uses the install directory.
func (m *Model) RemovePluginsTask(t Timing) task.Task {
	return task.Func{
		TaskName:  "RemovePlugins",
		TaskTicks: t.PluginTicks,
		Short:     "Removing plugins",
		Long:      "Removing the installed " + m.Desc.DisplayName + " plugins",
		Run: func(tc *task.Context) (bool, error) {
			if m.keepsSharedState() {
				tc.Progress(t.PluginTicks, "Older version installed, keeping plugins")
				return true, nil
			}
			layout := m.Layout()
			installed, err := tc.Plugins.ListInstalled(tc, layout.InstallDir, layout.ConfigDir)
			if err != nil {
				return false, err
			}
			if len(installed) == 0 {
				tc.Progress(t.PluginTicks, "No plugins installed")
				return true, nil
			}

			budget := t.PluginTicks / len(installed)
			for _, id := range installed {
				req := plugin.Request{
					TicksBudget: budget,
					InstallDir:  layout.InstallDir,
					ConfigDir:   layout.ConfigDir,
					Plugin:      id,
					Purge:       true,
					Progress:    tc.Progress,
				}
				if err := tc.Plugins.Remove(tc, req); err != nil {
					return false, err
				}
				if tc.Registry != nil {
					if err := tc.Registry.RemovePlugin(tc, m.Desc.Name, id); err != nil {
						return false, err
					}
				}
			}
			return true, nil
		},
	}
}

// SetServiceStartTypeTask applies the start-with-Windows choice.
func (m *Model) SetServiceStartTypeTask() task.Task {
	return task.Func{
		TaskName:  "SetServiceStartType",
		TaskTicks: 5,
		Short:     "Configuring service",
		Long:      "Configuring the service start type",
		Run: func(tc *task.Context) (bool, error) {
			if !m.Service.InstallAsService {
				tc.Progress(5, "Not installed as a service")
				return true, nil
			}
			startType := service.StartManual
			if m.Service.StartWhenWindowsStarts {
				startType = service.StartAutomatic
			}
			if err := tc.Services.SetStartType(m.Desc.ServiceName, startType); err != nil {
				return false, serviceFailure("SetServiceStartType", m.Desc.ServiceName, err)
			}
			tc.Progress(5, "Start type set to "+string(startType))
			return true, nil
		},
	}
}

// StartServiceTask starts the service and waits until it runs.
func (m *Model) StartServiceTask(t Timing) task.Task {
	return task.Func{
		TaskName:  "StartService",
		TaskTicks: 20,
		Short:     "Starting service",
		Long:      "Starting the " + m.Desc.DisplayName + " service",
		Run: func(tc *task.Context) (bool, error) {
			if !m.Service.InstallAsService || !m.Service.StartAfterInstall {
				tc.Progress(20, "Not starting the service")
				return true, nil
			}
			name := m.Desc.ServiceName
			if err := tc.Services.Start(name); err != nil {
				return false, serviceFailure("StartService", name, err)
			}
			if err := service.WaitForStatus(tc, tc.Services, name, service.StatusRunning, t.PollInterval, t.StartTimeout); err != nil {
				return false, err
			}
			tc.Progress(20, "Service started")
			return true, nil
		},
	}
}

// RegisterInstallationTask records the installation in the registry.
func (m *Model) RegisterInstallationTask() task.Task {
	return task.Func{
		TaskName:  "RegisterInstallation",
		TaskTicks: 5,
		Short:     "Registering installation",
		Long:      "Recording " + m.Desc.DisplayName + " " + m.Session.Version,
		Run: func(tc *task.Context) (bool, error) {
			if tc.Registry == nil {
				return true, nil
			}
			layout := m.Layout()
			inst := store.Installation{
				Product:    m.Desc.Name,
				Version:    m.Session.Version,
				InstallDir: layout.InstallDir,
				ConfigDir:  layout.ConfigDir,
			}
			if err := tc.Registry.RecordInstallation(tc, inst); err != nil {
				return false, err
			}
			// The replaced version was staged or overwritten and is gone once
			// the install succeeds.
			if prev, ok := m.Session.Previous(); ok {
				if err := tc.Registry.RemoveInstallation(tc, prev.Product, prev.Version); err != nil {
					return false, err
				}
				tc.Log.Info("Replaced %s %s", m.Desc.DisplayName, prev.Version)
			}
			tc.Progress(5, "Installation registered")
			return true, nil
		},
	}
}

// UnregisterInstallationTask removes the installation and its plugin
// records from the registry.
func (m *Model) UnregisterInstallationTask() task.Task {
	return task.Func{
		TaskName:  "UnregisterInstallation",
		TaskTicks: 5,
		Short:     "Unregistering installation",
		Long:      "Removing " + m.Desc.DisplayName + " " + m.Session.Version + " from the registry",
		Run: func(tc *task.Context) (bool, error) {
			if tc.Registry == nil {
				return true, nil
			}
			if err := tc.Registry.RemoveInstallation(tc, m.Desc.Name, m.Session.Version); err != nil {
				return false, err
			}
			if m.keepsSharedState() {
				return true, nil
			}
			records, err := tc.Registry.Plugins(tc, m.Desc.Name)
			if err != nil {
				return false, err
			}
			for _, rec := range records {
				if err := tc.Registry.RemovePlugin(tc, rec.Product, rec.Identifier); err != nil {
					return false, err
				}
			}
			tc.Progress(5, "Installation unregistered")
			return true, nil
		},
	}
}

// DeleteDirectoriesTask removes the install directory and the writable
// directories below it. Writable directories elsewhere are only removed
// when empty, so operator data survives. Nothing is deleted while an older
// version still uses the directories.
func (m *Model) DeleteDirectoriesTask() task.Task {
	return task.Func{
		TaskName:  "DeleteDirectories",
		TaskTicks: 20,
		Short:     "Deleting directories",
		Long:      "Deleting the " + m.Desc.DisplayName + " directories",
		Run: func(tc *task.Context) (bool, error) {
			if m.keepsSharedState() {
				tc.Progress(20, "Older version installed, keeping directories")
				return true, nil
			}
			layout := m.Layout()
			var result *multierror.Error
			for _, dir := range []string{layout.ConfigDir, layout.LogsDir, layout.DataDir} {
				if dir == "" || fsys.Within(layout.InstallDir, dir) {
					continue
				}
				if !tc.DirectoryIsEmpty(dir) {
					tc.Log.Info("Keeping %s, it is not empty", dir)
					continue
				}
				if err := tc.RemoveDirectory(dir); err != nil {
					result = multierror.Append(result, err)
				}
			}
			if err := tc.RemoveDirectory(layout.InstallDir); err != nil {
				result = multierror.Append(result, err)
			}
			if err := result.ErrorOrNil(); err != nil {
				return false, err
			}
			tc.Progress(20, "Directories deleted")
			return true, nil
		},
	}
}

// RestorePreservedTask puts staged state back when rolling back to an
// older version that is still installed.
func (m *Model) RestorePreservedTask() task.Task {
	return task.Func{
		TaskName:  "RestorePreserved",
		TaskTicks: 20,
		Short:     "Restoring previous installation",
		Long:      "Restoring the preserved configuration and plugins",
		Run: func(tc *task.Context) (bool, error) {
			if !m.keepsSharedState() {
				tc.Progress(20, "Nothing to restore")
				return true, nil
			}
			layout := m.Layout()
			if src := m.PreserveSource(); src != "" {
				if err := tc.Preserver.Restore(layout.PreservedInstallDir(), src); err != nil {
					return false, err
				}
			}
			tc.Progress(10, "Install directory restored")
			if layout.ConfigIsExternal() {
				if err := tc.Preserver.Restore(layout.PreservedConfigDir(), layout.ConfigDir); err != nil {
					return false, err
				}
			}
			tc.Progress(10, "Config directory restored")
			return true, nil
		},
	}
}

// CleanupTask removes the staging directory.
func (m *Model) CleanupTask() task.Task {
	return task.Func{
		TaskName:  "Cleanup",
		TaskTicks: 5,
		Short:     "Cleaning up",
		Long:      "Removing temporary files",
		Run: func(tc *task.Context) (bool, error) {
			if err := tc.Preserver.Discard(m.Layout().StagingDir); err != nil {
				return false, err
			}
			tc.Progress(5, "Temporary files removed")
			return true, nil
		},
	}
}

func serviceFailure(operation, name string, err error) error {
	return apperrors.ServiceError(apperrors.CodeServiceControl, "service "+name+" could not be controlled", err).
		WithModule("product").
		WithOperation(operation).
		WithField("service", name)
}

func variableFailure(operation, name string, err error) error {
	return apperrors.SystemError(apperrors.CodeEnvironmentVariable, "environment variable "+name+" could not be updated", err).
		WithModule("product").
		WithOperation(operation).
		WithField("variable", name)
}

// SettingsFailure wraps a settings file error for the task runner.
func SettingsFailure(operation, path string, err error) error {
	return apperrors.ConfigError(apperrors.CodeSettingsFile, "settings file "+path+" could not be written", err).
		WithModule("product").
		WithOperation(operation).
		WithField("path", path)
}
