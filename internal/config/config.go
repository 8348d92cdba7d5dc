package config

import (
	"embed"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings holds operator-tunable installer behaviour. None of it is part
// of the argument catalog: these values never travel through the packaging
// layer.
type Settings struct {
	StagingRoot string          `yaml:"staging_root"`
	Service     ServiceSettings `yaml:"service"`
	Plugins     PluginSettings  `yaml:"plugins"`
	Log         LogSettings     `yaml:"log"`
	Products    []ProductEntry  `yaml:"products"`
}

// ServiceSettings bounds the waits performed around service start and stop.
type ServiceSettings struct {
	StartTimeout time.Duration `yaml:"start_timeout"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PluginSettings bounds the plugin-management child process.
type PluginSettings struct {
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	InstallTicks   int           `yaml:"install_ticks"`
}

// LogSettings configures the installer log file.
type LogSettings struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ProductEntry names the version this installer build carries for a product.
type ProductEntry struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ProductVersion returns the configured version for product, or "".
func (s *Settings) ProductVersion(product string) string {
	for _, p := range s.Products {
		if strings.EqualFold(p.Name, product) {
			return p.Version
		}
	}
	return ""
}

//go:embed base-settings.yaml
var embeddedBase embed.FS

// BaseSettings returns the embedded defaults.
func BaseSettings() (*Settings, error) {
	data, err := embeddedBase.ReadFile("base-settings.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embedded base settings")
	}
	return decodeSettings(data)
}

// LoadSettings reads an operator settings file from disk.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read settings file: %s", path)
	}
	return ParseSettings(data)
}

// ParseSettings decodes settings from bytes; empty input yields zero settings.
func ParseSettings(data []byte) (*Settings, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return &Settings{}, nil
	}
	return decodeSettings(data)
}

// Load returns the embedded defaults overlaid with the file at path, when
// path is non-empty.
func Load(path string) (*Settings, error) {
	base, err := BaseSettings()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return MergeSettings(base)
	}

	overlay, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return MergeSettings(base, overlay)
}

// MergeSettings merges settings together, later non-zero values overriding
// earlier ones. Products merge by name.
func MergeSettings(all ...*Settings) (*Settings, error) {
	if len(all) == 0 {
		return nil, errors.New("no settings provided")
	}

	var result Settings
	productIndex := make(map[string]int)

	for _, s := range all {
		if s == nil {
			continue
		}

		if trimmed := strings.TrimSpace(s.StagingRoot); trimmed != "" {
			result.StagingRoot = trimmed
		}
		if s.Service.StartTimeout > 0 {
			result.Service.StartTimeout = s.Service.StartTimeout
		}
		if s.Service.StopTimeout > 0 {
			result.Service.StopTimeout = s.Service.StopTimeout
		}
		if s.Service.PollInterval > 0 {
			result.Service.PollInterval = s.Service.PollInterval
		}
		if s.Plugins.ProcessTimeout > 0 {
			result.Plugins.ProcessTimeout = s.Plugins.ProcessTimeout
		}
		if s.Plugins.InstallTicks > 0 {
			result.Plugins.InstallTicks = s.Plugins.InstallTicks
		}
		if trimmed := strings.TrimSpace(s.Log.File); trimmed != "" {
			result.Log.File = trimmed
		}
		if trimmed := strings.TrimSpace(s.Log.Level); trimmed != "" {
			result.Log.Level = trimmed
		}
		if s.Log.MaxSizeMB > 0 {
			result.Log.MaxSizeMB = s.Log.MaxSizeMB
		}
		if s.Log.MaxBackups > 0 {
			result.Log.MaxBackups = s.Log.MaxBackups
		}

		for _, p := range s.Products {
			key := strings.ToLower(strings.TrimSpace(p.Name))
			if key == "" {
				continue
			}
			if idx, ok := productIndex[key]; ok {
				result.Products[idx] = p
			} else {
				productIndex[key] = len(result.Products)
				result.Products = append(result.Products, p)
			}
		}
	}

	if result.Service.StartTimeout == 0 {
		result.Service.StartTimeout = 60 * time.Second
	}
	if result.Service.StopTimeout == 0 {
		result.Service.StopTimeout = 60 * time.Second
	}
	if result.Service.PollInterval == 0 {
		result.Service.PollInterval = 250 * time.Millisecond
	}
	if result.Plugins.ProcessTimeout == 0 {
		result.Plugins.ProcessTimeout = 10 * time.Minute
	}
	if result.Plugins.InstallTicks == 0 {
		result.Plugins.InstallTicks = 2000
	}
	if result.Log.Level == "" {
		result.Log.Level = "info"
	}

	return &result, nil
}

func decodeSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse installer settings")
	}
	return &s, nil
}
