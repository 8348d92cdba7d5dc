package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSettingsDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, s.Service.StartTimeout)
	assert.Equal(t, 250*time.Millisecond, s.Service.PollInterval)
	assert.Equal(t, 2000, s.Plugins.InstallTicks)
	assert.Equal(t, "7.17.0", s.ProductVersion("Elasticsearch"))
	assert.Equal(t, "", s.ProductVersion("logstash"))
}

func TestLoadOverlaysOperatorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := []byte("service:\n  start_timeout: 90s\nproducts:\n  - name: kibana\n    version: 7.17.9\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, s.Service.StartTimeout)
	assert.Equal(t, 60*time.Second, s.Service.StopTimeout)
	assert.Equal(t, "7.17.9", s.ProductVersion("kibana"))
	assert.Equal(t, "7.17.0", s.ProductVersion("elasticsearch"))
	assert.Len(t, s.Products, 2)
}

func TestParseSettingsRejectsMalformedYAML(t *testing.T) {
	_, err := ParseSettings([]byte("service: [unterminated"))
	assert.Error(t, err)
}

func TestMergeSettingsRequiresInput(t *testing.T) {
	_, err := MergeSettings()
	assert.Error(t, err)
}
