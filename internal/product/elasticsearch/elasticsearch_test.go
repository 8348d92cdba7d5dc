package elasticsearch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EWI/internal/env"
	"EWI/internal/fsys"
	"EWI/internal/product"
	"EWI/internal/task"
)

func newSession(t *testing.T, totalMemory uint64) product.Session {
	t.Helper()
	root := t.TempDir()
	return product.Session{
		Snapshot: &env.Snapshot{
			MachineName:  "NODE1",
			TotalMemory:  totalMemory,
			TempDir:      filepath.Join(root, "temp"),
			ProgramFiles: filepath.Join(root, "Program Files"),
			ProgramData:  filepath.Join(root, "ProgramData"),
		},
		Version:   "7.17.0",
		Operation: product.Install,
	}
}

func newInstaller(t *testing.T, totalMemory uint64) *Installer {
	t.Helper()
	i, err := New(newSession(t, totalMemory))
	require.NoError(t, err)
	return i
}

func TestDefaults(t *testing.T) {
	i := newInstaller(t, 16<<30)

	assert.Equal(t, "elasticsearch", i.Config.ClusterName)
	assert.Equal(t, "NODE1", i.Config.NodeName)
	assert.Equal(t, uint64(8192), i.Config.MaxMemory)
	assert.Equal(t, uint64(DefaultHeapMB), i.Config.SelectedMemory)
	assert.Equal(t, []string{"master", "data", "ingest"}, i.Config.Roles())
	assert.NoError(t, i.ValidationSummary())

	args := i.Arguments()
	assert.Equal(t, env.MachineNameExpression, args["NODENAME"])
	assert.NotContains(t, args, "CLUSTERNAME")
	assert.NotContains(t, args, "HTTPPORT")
	assert.Equal(t, "true", args["USELOCALSYSTEM"])
}

func TestEmptyClusterNameGatesNavigation(t *testing.T) {
	i := newInstaller(t, 16<<30)
	wf := i.Workflow()

	require.NoError(t, i.Set("ClusterName", ""))

	failures := i.Config.ValidationFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "ClusterName", failures[0].Field)
	assert.Equal(t, 2, wf.TabSelectionMax())

	wf.Select(2)
	assert.False(t, wf.NavigateForward())
	assert.Equal(t, 2, wf.ActiveIndex())
}

func TestSelectedMemoryBoundedByDerivedMaximum(t *testing.T) {
	i := newInstaller(t, 16<<30)

	require.NoError(t, i.Set("SelectedMemory", "9000"))
	require.Len(t, i.Config.ValidationFailures(), 1)
	assert.Equal(t, "SelectedMemory", i.Config.ValidationFailures()[0].Field)
	assert.Contains(t, i.Config.ValidationFailures()[0].Message, "8192MB")

	i.Config.TotalMemory = 64 << 30
	i.Workflow().Changed(PropTotalMemory)
	assert.Equal(t, uint64(CompressedOopsLimitMB), i.Config.MaxMemory)
	assert.True(t, i.Config.IsValid())
}

func TestLowMemoryIsPrerequisiteFailure(t *testing.T) {
	i := newInstaller(t, 768<<20)

	failures := i.Workflow().PrerequisiteFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, product.FieldPhysicalMemory, failures[0].Failure.Field)
}

func TestComputedNodeNameResolvesOnThisMachine(t *testing.T) {
	i := newInstaller(t, 16<<30)

	require.NoError(t, i.Apply(map[string]string{"NODENAME": env.MachineNameExpression}))
	assert.Equal(t, "NODE1", i.Config.NodeName)

	require.NoError(t, i.Apply(map[string]string{"NODENAME": "data-1"}))
	assert.Equal(t, "data-1", i.Arguments()["NODENAME"])
}

func TestSeedHostsRoundTrip(t *testing.T) {
	i := newInstaller(t, 16<<30)
	i.Config.SeedHosts = []string{"a:9200", "", "  b:9300  "}

	args := i.Arguments()
	assert.Equal(t, "a:9200,b:9300", args["SEEDHOSTS"])

	fresh := newInstaller(t, 16<<30)
	require.NoError(t, fresh.Apply(args))
	assert.Equal(t, []string{"a:9200", "b:9300"}, fresh.Config.SeedHosts)
}

func TestInstallTasksIncludeConfigurationWriters(t *testing.T) {
	i := newInstaller(t, 16<<30)

	var names []string
	for _, tk := range i.Tasks(product.DefaultTiming()) {
		names = append(names, task.NameOf(tk))
	}
	assert.Equal(t, []string{"CreateDirectories", "WriteConfiguration", "WriteJvmOptions", "SetEnvironmentVariables"}, names[2:6])
}

func TestWriteConfigurationKeepsOperatorSettings(t *testing.T) {
	i := newInstaller(t, 16<<30)
	require.NoError(t, i.Apply(map[string]string{
		"CLUSTERNAME":    "prod",
		"SEEDHOSTS":      "10.0.0.1:9300,10.0.0.2:9300",
		"SELECTEDMEMORY": "4096",
		"LOCKMEMORY":     "true",
		"INGESTNODE":     "false",
	}))

	layout := i.Layout()
	require.NoError(t, os.MkdirAll(layout.ConfigDir, 0o755))
	ymlPath := filepath.Join(layout.ConfigDir, ConfigFile)
	require.NoError(t, os.WriteFile(ymlPath, []byte("# operator notes\nxpack.security.enabled: true\n"), 0o644))
	jvmPath := filepath.Join(layout.ConfigDir, JVMOptionsFile)
	require.NoError(t, os.WriteFile(jvmPath, []byte("-Xms1g\r\n-Xmx1g\r\n-XX:+UseG1GC\r\n"), 0o644))

	runner := task.NewRunner(task.WithCollaborators(task.Collaborators{FS: fsys.OS{}}))
	outcome, err := runner.Run(context.Background(), i, []task.Task{i.WriteConfigurationTask(), i.WriteJVMOptionsTask()})
	require.NoError(t, err)
	assert.Equal(t, task.Succeeded, outcome)

	yml, err := os.ReadFile(ymlPath)
	require.NoError(t, err)
	text := string(yml)
	assert.Contains(t, text, "xpack.security.enabled: true")
	assert.Contains(t, text, "cluster.name: prod")
	assert.Contains(t, text, "bootstrap.memory_lock: true")
	assert.Contains(t, text, "10.0.0.2:9300")
	assert.NotContains(t, text, "ingest")

	jvm, err := os.ReadFile(jvmPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(string(jvm), "\r\n", "\n")), "\n")
	assert.Equal(t, []string{"-Xms4096m", "-Xmx4096m", "-XX:+UseG1GC"}, lines)
}
