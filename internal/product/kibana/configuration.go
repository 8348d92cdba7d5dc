package kibana

import (
	"net/url"
	"strconv"
	"strings"

	"EWI/internal/argument"
	"EWI/internal/env"
	"EWI/internal/workflow"
)

const (
	DefaultServerHost        = "localhost"
	DefaultServerPort        = 5601
	DefaultElasticsearchHost = "http://localhost:9200"
)

// ConfigurationStep holds the server settings written to kibana.yml.
type ConfigurationStep struct {
	*workflow.StepBase

	snapshot *env.Snapshot

	ServerHost         string
	ServerPort         int
	ServerName         string
	ElasticsearchHosts []string
}

// NewConfigurationStep creates the step with defaults from snapshot.
func NewConfigurationStep(snapshot *env.Snapshot) *ConfigurationStep {
	s := &ConfigurationStep{StepBase: workflow.NewStepBase("Configuration"), snapshot: snapshot}
	s.OnRefresh(s.defaults)
	s.defaults()

	s.SetValidator(workflow.Rules{
		{Field: "ServerHost", Check: workflow.Required(func() string { return s.ServerHost }, "Server host is required")},
		{Field: "ServerPort", Check: func() string {
			if s.ServerPort < 1 || s.ServerPort > 65535 {
				return "Server port must be between 1 and 65535"
			}
			return ""
		}},
		{Field: "ServerName", Check: workflow.Required(func() string { return s.ServerName }, "Server name is required")},
		{Field: "ElasticsearchHosts", Check: s.checkHosts},
	})
	return s
}

func (s *ConfigurationStep) defaults() {
	s.ServerHost = DefaultServerHost
	s.ServerPort = DefaultServerPort
	s.ServerName = s.snapshot.MachineName
	s.ElasticsearchHosts = []string{DefaultElasticsearchHost}
}

func (s *ConfigurationStep) checkHosts() string {
	if len(s.ElasticsearchHosts) == 0 {
		return "At least one Elasticsearch host is required"
	}
	for _, h := range s.ElasticsearchHosts {
		u, err := url.Parse(h)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "Elasticsearch host " + h + " must be an http or https URL"
		}
		if p := u.Port(); p != "" {
			if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 65535 {
				return "Elasticsearch host " + h + " has an invalid port"
			}
		}
	}
	return ""
}

// Register satisfies product.ConfigurationStep. Nothing here is derived.
func (s *ConfigurationStep) Register(*workflow.Graph) error { return nil }

// StepType satisfies argument.Provider.
func (s *ConfigurationStep) StepType() string { return "KibanaConfigurationStep" }

// Arguments satisfies argument.Provider.
func (s *ConfigurationStep) Arguments() []argument.Descriptor {
	return []argument.Descriptor{
		argument.StringArg("ServerHost", func() string { return s.ServerHost }, func(v string) { s.ServerHost = strings.TrimSpace(v) }).
			WithStaticDefault(DefaultServerHost),
		argument.IntArg("ServerPort", func() int { return s.ServerPort }, func(v int) { s.ServerPort = v }).
			WithStaticDefault(DefaultServerPort),
		argument.StringArg("ServerName", func() string { return s.ServerName }, func(v string) { s.ServerName = strings.TrimSpace(v) }).
			WithComputedDefault(env.MachineNameExpression),
		argument.ListArg("ElasticsearchHosts", func() []string { return s.ElasticsearchHosts }, func(v []string) { s.ElasticsearchHosts = v }).
			WithStaticDefault([]string{DefaultElasticsearchHost}),
	}
}
