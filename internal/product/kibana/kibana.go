// Package kibana assembles the dashboard installer.
package kibana

import (
	"path/filepath"

	"EWI/internal/env"
	"EWI/internal/plugin"
	"EWI/internal/product"
	"EWI/internal/settings"
	"EWI/internal/task"
)

const ConfigFile = "kibana.yml"

// Descriptor describes the dashboard product.
var Descriptor = product.Descriptor{
	Name:        "kibana",
	DisplayName: "Kibana",
	Folder:      "Kibana",
	Variables: env.ProductVariables{
		Home:         "KIBANA_HOME",
		Config:       "KIBANA_PATH_CONF",
		LegacyConfig: "CONFIG_PATH",
	},
	Plugin: plugin.Product{
		Name:           "kibana",
		Script:         "kibana-plugin.bat",
		ConfigVariable: "KIBANA_PATH_CONF",
		Patterns:       plugin.KibanaPatterns,
	},
	ServiceName:       "kibana",
	ServiceExecutable: filepath.Join("bin", "kibana-service.exe"),
	ConfigFile:        ConfigFile,
}

// Installer is the dashboard model.
type Installer struct {
	*product.Model
	Config *ConfigurationStep
}

// New builds the dashboard workflow for session.
func New(session product.Session, options ...product.ModelOption) (*Installer, error) {
	cfg := NewConfigurationStep(session.Snapshot)
	m, err := product.NewModel(Descriptor, session, cfg, options...)
	if err != nil {
		return nil, err
	}
	return &Installer{Model: m, Config: cfg}, nil
}

// Tasks returns the sequence for the session's operation.
func (i *Installer) Tasks(t product.Timing) []task.Task {
	return i.Model.Tasks(t, i.WriteConfigurationTask())
}

// WriteConfigurationTask writes the server settings into kibana.yml.
func (i *Installer) WriteConfigurationTask() task.Task {
	return task.Func{
		TaskName:  "WriteConfiguration",
		TaskTicks: 10,
		Short:     "Writing configuration",
		Long:      "Writing " + ConfigFile,
		Run: func(tc *task.Context) (bool, error) {
			layout := i.Layout()
			path := filepath.Join(layout.ConfigDir, ConfigFile)
			f, err := settings.LoadYAML(tc.FS, path)
			if err != nil {
				return false, product.SettingsFailure("WriteConfiguration", path, err)
			}

			c := i.Config
			f.Set("server.host", c.ServerHost)
			f.SetInt("server.port", c.ServerPort)
			f.Set("server.name", c.ServerName)
			f.SetList("elasticsearch.hosts", c.ElasticsearchHosts)
			f.Set("logging.dest", filepath.Join(layout.LogsDir, "kibana.log"))

			if err := f.Save(); err != nil {
				return false, product.SettingsFailure("WriteConfiguration", path, err)
			}
			tc.Progress(10, "Wrote "+path)
			return true, nil
		},
	}
}
