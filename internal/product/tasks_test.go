package product

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EWI/internal/env"
	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
	"EWI/internal/plugin"
	"EWI/internal/service"
	"EWI/internal/store"
	"EWI/internal/task"
)

var fastTiming = Timing{
	StartTimeout: time.Second,
	StopTimeout:  time.Second,
	PollInterval: time.Millisecond,
	PluginTicks:  100,
}

type harness struct {
	services  *service.Fake
	starter   *plugin.FakeStarter
	variables *env.MemoryStore
	registry  *store.SQLiteRegistry
	recorder  *task.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return &harness{
		services:  service.NewFake(),
		starter:   &plugin.FakeStarter{},
		variables: env.NewMemoryStore(),
		registry:  reg,
		recorder:  &task.Recorder{},
	}
}

func (h *harness) run(t *testing.T, m *Model, tasks []task.Task) (task.Outcome, error) {
	t.Helper()
	runner := task.NewRunner(
		task.WithCollaborators(task.Collaborators{
			FS:        fsys.OS{},
			Services:  h.services,
			Plugins:   plugin.NewRunner(m.Desc.Plugin, plugin.WithStarter(h.starter)),
			Preserver: m.NewPreserver(),
			Variables: h.variables,
			Env:       m.Session.Snapshot,
			Registry:  h.registry,
		}),
		task.WithReporter(h.recorder),
	)
	return runner.Run(context.Background(), m, tasks)
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInstallSequence(t *testing.T) {
	h := newHarness(t)
	m := newTestModel(t, testSession(t, Install))

	outcome, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)
	assert.Equal(t, task.Succeeded, outcome)

	assert.Equal(t, []string{
		"StopService",
		"PreserveInstall",
		"CreateDirectories",
		"SetEnvironmentVariables",
		"InstallService",
		"InstallPlugins",
		"SetServiceStartType",
		"StartService",
		"RegisterInstallation",
		"Cleanup",
	}, h.recorder.Started())

	layout := m.Layout()
	for _, dir := range []string{layout.InstallDir, layout.ConfigDir, layout.LogsDir, layout.DataDir} {
		assert.DirExists(t, dir)
	}

	home, ok, _ := h.variables.Get("SEARCH_HOME", env.ScopeMachine)
	assert.True(t, ok)
	assert.Equal(t, layout.InstallDir, home)
	conf, _, _ := h.variables.Get("SEARCH_PATH_CONF", env.ScopeMachine)
	assert.Equal(t, layout.ConfigDir, conf)

	cfg, ok := h.services.Config("search-service")
	require.True(t, ok)
	assert.Equal(t, service.StartAutomatic, cfg.StartType)
	assert.Equal(t, filepath.Join(layout.InstallDir, "bin", "search-service.exe"), cfg.Executable)
	status, _ := h.services.Status("search-service")
	assert.Equal(t, service.StatusRunning, status)

	installs, err := h.registry.Installations(context.Background(), "search")
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "7.17.0", installs[0].Version)
	assert.NoDirExists(t, layout.StagingDir)
}

func TestInstallKeepsOperatorConfigFiles(t *testing.T) {
	h := newHarness(t)
	m := newTestModel(t, testSession(t, Install))
	layout := m.Layout()

	writeTestFile(t, filepath.Join(layout.ConfigDir, "search.yml"), "cluster.name: operator\n")
	writeTestFile(t, filepath.Join(layout.BundledConfigDir(), "search.yml"), "cluster.name: bundled\n")
	writeTestFile(t, filepath.Join(layout.BundledConfigDir(), "log4j2.properties"), "status = error\n")

	for i := 0; i < 2; i++ {
		_, err := h.run(t, m, m.InstallTasks(fastTiming))
		require.NoError(t, err)
	}

	assert.Equal(t, "cluster.name: operator\n", readTestFile(t, filepath.Join(layout.ConfigDir, "search.yml")))
	assert.Equal(t, "status = error\n", readTestFile(t, filepath.Join(layout.ConfigDir, "log4j2.properties")))
}

func TestInstallMigratesLegacyConfigVariable(t *testing.T) {
	h := newHarness(t)
	session := testSession(t, Install)
	legacy := filepath.Join(t.TempDir(), "legacy-config")
	session.Snapshot.WithVariable(env.ScopeMachine, "SEARCH_CONFIG", legacy)
	require.NoError(t, h.variables.Set("SEARCH_CONFIG", legacy, env.ScopeMachine))

	m := newTestModel(t, session)
	assert.Equal(t, legacy, m.Layout().ConfigDir)

	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)

	_, ok, _ := h.variables.Get("SEARCH_CONFIG", env.ScopeMachine)
	assert.False(t, ok)
	conf, _, _ := h.variables.Get("SEARCH_PATH_CONF", env.ScopeMachine)
	assert.Equal(t, legacy, conf)
}

func TestInstallPluginsRecordsSelection(t *testing.T) {
	h := newHarness(t)
	h.starter.Respond = func(cmd plugin.Command) plugin.Script {
		return plugin.Script{Stdout: []string{"-> Installed " + cmd.Args[len(cmd.Args)-1]}}
	}
	m := newTestModel(t, testSession(t, Install))
	require.NoError(t, m.Apply(map[string]string{"PLUGINS": "analysis-icu,repository-s3"}))

	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)

	assert.Equal(t, []string{"install --batch analysis-icu", "install --batch repository-s3"}, h.starter.Calls())
	assert.Equal(t, m.Layout().ConfigDir, h.starter.Commands[0].Env["SEARCH_PATH_CONF"])

	recs, err := h.registry.Plugins(context.Background(), "search")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestServiceNotInstalledWhenDeclined(t *testing.T) {
	h := newHarness(t)
	m := newTestModel(t, testSession(t, Install))
	require.NoError(t, m.Apply(map[string]string{"INSTALLASSERVICE": "false"}))

	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)

	exists, _ := h.services.Exists("search-service")
	assert.False(t, exists)
}

func TestStartServiceTimesOut(t *testing.T) {
	h := newHarness(t)
	m := newTestModel(t, testSession(t, Install))
	require.NoError(t, h.services.Install(service.Config{Name: "search-service"}))
	h.services.Hang("search-service")

	timing := fastTiming
	timing.StartTimeout = 20 * time.Millisecond
	outcome, err := h.run(t, m, []task.Task{m.StartServiceTask(timing)})

	assert.Equal(t, task.Failed, outcome)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServiceWait))
}

func TestRollbackToOlderVersionRestoresPreserved(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	prev := store.Installation{
		Product:    "search",
		Version:    "7.10.0",
		InstallDir: filepath.Join(root, "7.10.0"),
		ConfigDir:  filepath.Join(root, "7.10.0", "config"),
	}
	writeTestFile(t, filepath.Join(prev.InstallDir, "lib", "search.jar"), "old jar")
	writeTestFile(t, filepath.Join(prev.InstallDir, "plugins", "icu", "plugin.jar"), "icu")
	writeTestFile(t, filepath.Join(prev.ConfigDir, "search.yml"), "cluster.name: old\n")

	install := testSession(t, Install, prev)
	install.OlderVersionInstalled = true
	m := newTestModel(t, install)

	_, err := h.run(t, m, []task.Task{m.PreserveTask(), m.CreateDirectoriesTask()})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(prev.InstallDir, "lib", "search.jar"))
	assert.FileExists(t, filepath.Join(m.Layout().PreservedInstallDir(), "lib", "search.jar"))
	assert.FileExists(t, filepath.Join(prev.ConfigDir, "search.yml"), "config stays live")

	rollback := install
	rollback.Operation = Rollback
	rm := newTestModel(t, rollback)
	h.recorder = &task.Recorder{}
	_, err = h.run(t, rm, rm.RollbackTasks(fastTiming))
	require.NoError(t, err)

	assert.Equal(t, "old jar", readTestFile(t, filepath.Join(prev.InstallDir, "lib", "search.jar")))
	assert.Equal(t, "icu", readTestFile(t, filepath.Join(prev.InstallDir, "plugins", "icu", "plugin.jar")))
	assert.Equal(t, "cluster.name: old\n", readTestFile(t, filepath.Join(prev.ConfigDir, "search.yml")))
	assert.NoDirExists(t, rm.Layout().StagingDir)
}

func TestUninstallRemovesInstallAndKeepsOperatorData(t *testing.T) {
	h := newHarness(t)
	m := newTestModel(t, testSession(t, Install))
	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)
	layout := m.Layout()
	writeTestFile(t, filepath.Join(layout.ConfigDir, "search.yml"), "cluster.name: prod\n")

	session := m.Session
	session.Operation = Uninstall
	um := newTestModel(t, session)
	require.NoError(t, um.Apply(map[string]string{"INSTALLDIR": layout.InstallDir}))
	_, err = h.run(t, um, um.UninstallTasks(fastTiming))
	require.NoError(t, err)

	assert.NoDirExists(t, layout.InstallDir)
	assert.NoDirExists(t, layout.LogsDir)
	assert.FileExists(t, filepath.Join(layout.ConfigDir, "search.yml"))

	exists, _ := h.services.Exists("search-service")
	assert.False(t, exists)
	_, ok, _ := h.variables.Get("SEARCH_HOME", env.ScopeMachine)
	assert.False(t, ok)
	installs, err := h.registry.Installations(context.Background(), "search")
	require.NoError(t, err)
	assert.Empty(t, installs)
}

func TestRollbackWithOlderVersionKeepsVariables(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.variables.Set("SEARCH_HOME", `C:\old`, env.ScopeMachine))

	session := testSession(t, Rollback, store.Installation{Product: "search", Version: "7.10.0"})
	session.OlderVersionInstalled = true
	m := newTestModel(t, session)

	_, err := h.run(t, m, m.RollbackTasks(fastTiming))
	require.NoError(t, err)

	home, ok, _ := h.variables.Get("SEARCH_HOME", env.ScopeMachine)
	assert.True(t, ok)
	assert.Equal(t, `C:\old`, home)
}

func TestUpgradeReplacesOlderInstallationRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	root := t.TempDir()
	prev := store.Installation{
		Product:    "search",
		Version:    "7.10.0",
		InstallDir: filepath.Join(root, "7.10.0"),
		ConfigDir:  filepath.Join(root, "7.10.0", "config"),
	}
	writeTestFile(t, filepath.Join(prev.InstallDir, "lib", "search.jar"), "old jar")
	require.NoError(t, h.registry.RecordInstallation(ctx, prev))

	session := testSession(t, Install, prev)
	session.OlderVersionInstalled = true
	m := newTestModel(t, session)

	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(prev.InstallDir, "lib", "search.jar"))

	older, err := h.registry.OlderVersionInstalled(ctx, "search", "7.17.0")
	require.NoError(t, err)
	assert.False(t, older)
	installs, err := h.registry.Installations(ctx, "search")
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "7.17.0", installs[0].Version)

	next := newTestModel(t, testSession(t, Install, installs...))
	assert.True(t, next.Locations.IsRelevant())
}

func TestUninstallRemovesPlugins(t *testing.T) {
	h := newHarness(t)
	h.starter.Respond = func(cmd plugin.Command) plugin.Script {
		switch cmd.Args[0] {
		case "list":
			return plugin.Script{Stdout: []string{"analysis-icu", "repository-s3"}}
		case "install":
			return plugin.Script{Stdout: []string{"-> Installed " + cmd.Args[len(cmd.Args)-1]}}
		default:
			return plugin.Script{}
		}
	}
	m := newTestModel(t, testSession(t, Install))
	require.NoError(t, m.Apply(map[string]string{"PLUGINS": "analysis-icu,repository-s3"}))
	_, err := h.run(t, m, m.InstallTasks(fastTiming))
	require.NoError(t, err)

	layout := m.Layout()
	writeTestFile(t, filepath.Join(layout.PluginsDir(), "analysis-icu", "plugin.jar"), "icu")
	writeTestFile(t, filepath.Join(layout.PluginsDir(), "repository-s3", "plugin.jar"), "s3")

	session := m.Session
	session.Operation = Uninstall
	um := newTestModel(t, session)
	require.NoError(t, um.Apply(map[string]string{"INSTALLDIR": layout.InstallDir}))
	h.recorder = &task.Recorder{}
	h.starter.Commands = nil
	_, err = h.run(t, um, um.UninstallTasks(fastTiming))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"StopService",
		"UninstallService",
		"RemovePlugins",
		"RemoveEnvironmentVariables",
		"DeleteDirectories",
		"UnregisterInstallation",
		"Cleanup",
	}, h.recorder.Started())
	assert.Equal(t, []string{
		"list",
		"remove analysis-icu --purge",
		"remove repository-s3 --purge",
	}, h.starter.Calls())
	assert.Equal(t, layout.ConfigDir, h.starter.Commands[1].Env["SEARCH_PATH_CONF"])

	recs, err := h.registry.Plugins(context.Background(), "search")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRemovePluginsKeepsSharedInstall(t *testing.T) {
	h := newHarness(t)
	session := testSession(t, Rollback, store.Installation{Product: "search", Version: "7.10.0"})
	session.OlderVersionInstalled = true
	m := newTestModel(t, session)
	writeTestFile(t, filepath.Join(m.Layout().PluginsDir(), "analysis-icu", "plugin.jar"), "icu")

	_, err := h.run(t, m, []task.Task{m.RemovePluginsTask(fastTiming)})
	require.NoError(t, err)
	assert.Empty(t, h.starter.Calls())
}
