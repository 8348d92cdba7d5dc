package installer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EWI/internal/env"
	apperrors "EWI/internal/errors"
	"EWI/internal/logger"
	"EWI/internal/plugin"
	"EWI/internal/product"
	"EWI/internal/service"
	"EWI/internal/store"
	"EWI/internal/task"
	"EWI/internal/ui"
)

const fastSettings = `
service:
  start_timeout: 1s
  stop_timeout: 1s
  poll_interval: 1ms
plugins:
  install_ticks: 100
`

type fixture struct {
	root      string
	services  *service.Fake
	variables *env.MemoryStore
	starter   *plugin.FakeStarter
	log       *logger.MockLogger
	out       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		root:      t.TempDir(),
		services:  service.NewFake(),
		variables: env.NewMemoryStore(),
		starter:   &plugin.FakeStarter{},
		log:       logger.NewMockLogger(),
		out:       &bytes.Buffer{},
	}
}

func (f *fixture) options(t *testing.T, productName string) Options {
	t.Helper()
	settingsPath := filepath.Join(f.root, "settings.yaml")
	require.NoError(t, os.WriteFile(settingsPath, []byte(fastSettings), 0o644))

	return Options{
		Product:      productName,
		SettingsPath: settingsPath,
		RegistryPath: filepath.Join(f.root, "registry", "registry.db"),
		Output:       f.out,
		Logger:       f.log,
		Services:     f.services,
		Variables:    f.variables,
		Starter:      f.starter,
		Detect: func(names ...string) (*env.Snapshot, error) {
			snap := &env.Snapshot{
				MachineName:  "HOST1",
				TotalMemory:  16 << 30,
				TempDir:      filepath.Join(f.root, "temp"),
				ProgramFiles: filepath.Join(f.root, "Program Files"),
				ProgramData:  filepath.Join(f.root, "ProgramData"),
			}
			for _, name := range names {
				if v, ok, _ := f.variables.Get(name, env.ScopeMachine); ok {
					snap.WithVariable(env.ScopeMachine, name, v)
				}
			}
			return snap, nil
		},
	}
}

func open(t *testing.T, opts Options) *App {
	t.Helper()
	a, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestUnknownProduct(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, "logstash")

	_, err := New(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.ErrCategoryValidation))
	assert.Contains(t, err.Error(), "elasticsearch, kibana")
}

func TestTimingFromSettings(t *testing.T) {
	f := newFixture(t)
	a := open(t, f.options(t, "kibana"))

	timing := a.Timing()
	assert.Equal(t, "1s", timing.StartTimeout.String())
	assert.Equal(t, "1ms", timing.PollInterval.String())
	assert.Equal(t, 100, timing.PluginTicks)
}

func TestInstallThenUninstallKibana(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, "kibana")
	a := open(t, opts)
	ctx := context.Background()

	outcome, err := a.Run(ctx, RunRequest{
		Operation: product.Install,
		Arguments: map[string]string{"SERVERPORT": "8601"},
	})
	require.NoError(t, err)
	assert.Equal(t, task.Succeeded, outcome)
	assert.Contains(t, f.out.String(), "completed")

	status, err := f.services.Status("kibana")
	require.NoError(t, err)
	assert.Equal(t, service.StatusRunning, status)
	home, ok, _ := f.variables.Get("KIBANA_HOME", env.ScopeMachine)
	require.True(t, ok)

	session, err := a.Session(ctx, product.Uninstall)
	require.NoError(t, err)
	require.Len(t, session.Installed, 1)
	assert.Equal(t, home, session.Installed[0].InstallDir)

	outcome, err = a.Run(ctx, RunRequest{Operation: product.Uninstall})
	require.NoError(t, err)
	assert.Equal(t, task.Succeeded, outcome)
	assert.NoDirExists(t, home)

	exists, _ := f.services.Exists("kibana")
	assert.False(t, exists)
}

func TestInvalidArgumentsRefuseToRun(t *testing.T) {
	f := newFixture(t)
	a := open(t, f.options(t, "kibana"))

	outcome, err := a.Run(context.Background(), RunRequest{
		Operation: product.Install,
		Arguments: map[string]string{"ELASTICSEARCHHOSTS": "es1:9200"},
	})
	assert.Equal(t, task.Failed, outcome)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidModel))
	assert.Contains(t, f.out.String(), "ElasticsearchHosts")

	exists, _ := f.services.Exists("kibana")
	assert.False(t, exists)
}

type refusingPrompter struct{}

func (refusingPrompter) Select(string, []string) (int, error) { return 0, errors.New("interrupted") }
func (refusingPrompter) Input(string, string, bool) (string, error) {
	return "", errors.New("interrupted")
}

func TestInteractiveCancel(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t, "kibana")
	opts.Prompter = refusingPrompter{}
	a := open(t, opts)

	outcome, err := a.Run(context.Background(), RunRequest{Operation: product.Install, Interactive: true})
	assert.Equal(t, task.Cancelled, outcome)
	assert.ErrorIs(t, err, ui.ErrAborted)
	assert.Empty(t, f.services.Calls)
}

func TestInstalledPluginsWithoutInstall(t *testing.T) {
	f := newFixture(t)
	a := open(t, f.options(t, "elasticsearch"))

	live, recorded, err := a.InstalledPlugins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Empty(t, recorded)
	assert.Empty(t, f.starter.Calls())
}

func TestUpgradePreselectsRecordedPlugins(t *testing.T) {
	f := newFixture(t)
	a := open(t, f.options(t, "elasticsearch"))
	ctx := context.Background()

	require.NoError(t, a.Registry().RecordInstallation(ctx, store.Installation{
		Product:    "elasticsearch",
		Version:    "7.10.0",
		InstallDir: filepath.Join(f.root, "es-7.10.0"),
		ConfigDir:  filepath.Join(f.root, "es-7.10.0", "config"),
	}))
	require.NoError(t, a.Registry().RecordPlugin(ctx, store.PluginRecord{
		Product: "elasticsearch", Identifier: "analysis-icu", Selected: true,
	}))

	inst, err := a.Load(ctx, product.Install, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis-icu"}, inst.Base().Plugins.Plugins)
	assert.Empty(t, f.starter.Calls())
}

func TestUpgradePreselectsListedPlugins(t *testing.T) {
	f := newFixture(t)
	f.starter.Respond = func(plugin.Command) plugin.Script {
		return plugin.Script{Stdout: []string{"analysis-nori"}}
	}
	a := open(t, f.options(t, "elasticsearch"))
	ctx := context.Background()

	prevDir := filepath.Join(f.root, "es-7.10.0")
	require.NoError(t, os.MkdirAll(filepath.Join(prevDir, "plugins", "analysis-nori"), 0o755))
	require.NoError(t, a.Registry().RecordInstallation(ctx, store.Installation{
		Product:    "elasticsearch",
		Version:    "7.10.0",
		InstallDir: prevDir,
		ConfigDir:  filepath.Join(prevDir, "config"),
	}))

	inst, err := a.Load(ctx, product.Install, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"analysis-nori"}, inst.Base().Plugins.Plugins)
	assert.Equal(t, []string{"list"}, f.starter.Calls())
	assert.Equal(t, prevDir, f.starter.Commands[0].Dir)
}
