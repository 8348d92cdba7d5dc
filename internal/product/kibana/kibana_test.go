package kibana

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EWI/internal/env"
	"EWI/internal/fsys"
	"EWI/internal/product"
	"EWI/internal/task"
)

func newInstaller(t *testing.T) *Installer {
	t.Helper()
	root := t.TempDir()
	i, err := New(product.Session{
		Snapshot: &env.Snapshot{
			MachineName:  "DASH1",
			TotalMemory:  8 << 30,
			TempDir:      filepath.Join(root, "temp"),
			ProgramFiles: filepath.Join(root, "Program Files"),
			ProgramData:  filepath.Join(root, "ProgramData"),
		},
		Version:   "7.17.0",
		Operation: product.Install,
	})
	require.NoError(t, err)
	return i
}

func TestDefaults(t *testing.T) {
	i := newInstaller(t)

	assert.NoError(t, i.ValidationSummary())
	assert.Equal(t, "DASH1", i.Config.ServerName)
	assert.Empty(t, i.Layout().DataDir)

	args := i.Arguments()
	assert.Equal(t, env.MachineNameExpression, args["SERVERNAME"])
	assert.NotContains(t, args, "ELASTICSEARCHHOSTS")
	assert.NotContains(t, args, "DATADIRECTORY")
	assert.NotContains(t, args, "USELOCALSYSTEM")
}

func TestElasticsearchHostsValidation(t *testing.T) {
	cases := []struct {
		name  string
		hosts string
		valid bool
	}{
		{"single http", "http://es1:9200", true},
		{"https list", "https://es1:9200,https://es2:9200", true},
		{"missing scheme", "es1:9200", false},
		{"bad port", "http://es1:99999", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			i := newInstaller(t)
			require.NoError(t, i.Apply(map[string]string{"ELASTICSEARCHHOSTS": tc.hosts}))
			if tc.valid {
				assert.True(t, i.Config.IsValid())
				return
			}
			require.False(t, i.Config.IsValid())
			assert.Equal(t, "ElasticsearchHosts", i.Config.ValidationFailures()[0].Field)
		})
	}
}

func TestWriteConfiguration(t *testing.T) {
	i := newInstaller(t)
	require.NoError(t, i.Apply(map[string]string{
		"SERVERHOST":         "0.0.0.0",
		"SERVERPORT":         "8601",
		"ELASTICSEARCHHOSTS": "https://es1:9200,https://es2:9200",
	}))

	runner := task.NewRunner(task.WithCollaborators(task.Collaborators{FS: fsys.OS{}}))
	_, err := runner.Run(context.Background(), i, []task.Task{i.WriteConfigurationTask()})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(i.Layout().ConfigDir, ConfigFile))
	require.NoError(t, err)
	text := string(data)
	assert.Regexp(t, `server\.host: "?0\.0\.0\.0"?`, text)
	assert.Contains(t, text, "server.port: 8601")
	assert.Contains(t, text, "server.name: DASH1")
	assert.Contains(t, text, `["https://es1:9200", "https://es2:9200"]`)
	assert.Contains(t, text, "kibana.log")
}
