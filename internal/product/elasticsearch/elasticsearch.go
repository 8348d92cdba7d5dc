// Package elasticsearch assembles the search node installer: its steps,
// argument catalog and task sequences.
package elasticsearch

import (
	"path/filepath"

	"EWI/internal/env"
	"EWI/internal/plugin"
	"EWI/internal/product"
	"EWI/internal/settings"
	"EWI/internal/task"
)

const (
	ConfigFile     = "elasticsearch.yml"
	JVMOptionsFile = "jvm.options"
)

// Descriptor describes the search node product.
var Descriptor = product.Descriptor{
	Name:        "elasticsearch",
	DisplayName: "Elasticsearch",
	Folder:      "Elasticsearch",
	Variables: env.ProductVariables{
		Home:         "ES_HOME",
		Config:       "ES_PATH_CONF",
		LegacyConfig: "ES_CONFIG",
	},
	Plugin: plugin.Product{
		Name:           "elasticsearch",
		Script:         "elasticsearch-plugin.bat",
		ConfigVariable: "ES_PATH_CONF",
		InstallFlags:   []string{"--batch"},
		Patterns:       plugin.ElasticsearchPatterns,
	},
	ServiceName:       "elasticsearch-service-x64",
	ServiceExecutable: filepath.Join("bin", "elasticsearch-service-x64.exe"),
	ConfigFile:        ConfigFile,
	AvailablePlugins: []string{
		"analysis-icu",
		"analysis-kuromoji",
		"analysis-nori",
		"analysis-phonetic",
		"analysis-smartcn",
		"analysis-stempel",
		"analysis-ukrainian",
		"discovery-azure-classic",
		"discovery-ec2",
		"discovery-gce",
		"ingest-attachment",
		"mapper-annotated-text",
		"mapper-murmur3",
		"mapper-size",
		"repository-azure",
		"repository-gcs",
		"repository-hdfs",
		"repository-s3",
		"store-smb",
	},
	HasDataDirectory:    true,
	JavaOptionsVariable: "ES_JAVA_OPTS",
}

// Installer is the search node model.
type Installer struct {
	*product.Model
	Config *ConfigurationStep
}

// New builds the search node workflow for session.
func New(session product.Session, options ...product.ModelOption) (*Installer, error) {
	cfg := NewConfigurationStep(session.Snapshot)
	options = append([]product.ModelOption{
		product.WithServiceAccount(),
		product.WithPrerequisiteFields(product.FieldPhysicalMemory),
	}, options...)

	m, err := product.NewModel(Descriptor, session, cfg, options...)
	if err != nil {
		return nil, err
	}
	return &Installer{Model: m, Config: cfg}, nil
}

// Tasks returns the sequence for the session's operation.
func (i *Installer) Tasks(t product.Timing) []task.Task {
	return i.Model.Tasks(t, i.WriteConfigurationTask(), i.WriteJVMOptionsTask())
}

// WriteConfigurationTask writes the node settings into elasticsearch.yml,
// keeping every other key the operator set.
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
			f.Set("cluster.name", c.ClusterName)
			f.Set("node.name", c.NodeName)
			f.SetList("node.roles", c.Roles())
			f.SetBool("bootstrap.memory_lock", c.LockMemory)
			f.SetInt("http.port", c.HTTPPort)
			f.SetInt("transport.port", c.TransportPort)
			f.SetList("discovery.seed_hosts", c.SeedHosts)
			f.SetList("cluster.initial_master_nodes", c.InitialMasterNodes)
			f.Set("path.data", layout.DataDir)
			f.Set("path.logs", layout.LogsDir)

			if err := f.Save(); err != nil {
				return false, product.SettingsFailure("WriteConfiguration", path, err)
			}
			tc.Progress(10, "Wrote "+path)
			return true, nil
		},
	}
}

// WriteJVMOptionsTask sets the heap size in jvm.options.
func (i *Installer) WriteJVMOptionsTask() task.Task {
	return task.Func{
		TaskName:  "WriteJvmOptions",
		TaskTicks: 5,
		Short:     "Setting heap size",
		Long:      "Writing the heap size to " + JVMOptionsFile,
		Run: func(tc *task.Context) (bool, error) {
			path := filepath.Join(i.Layout().ConfigDir, JVMOptionsFile)
			opts, err := settings.LoadJVMOptions(tc.FS, path)
			if err != nil {
				return false, product.SettingsFailure("WriteJvmOptions", path, err)
			}
			opts.SetHeapSize(i.Config.SelectedMemory)
			if err := opts.Save(); err != nil {
				return false, product.SettingsFailure("WriteJvmOptions", path, err)
			}
			tc.Progress(5, "Heap size set")
			return true, nil
		},
	}
}
