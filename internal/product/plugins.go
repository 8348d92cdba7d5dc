package product

import (
	"net"
	"strconv"
	"strings"

	"EWI/internal/argument"
	"EWI/internal/workflow"
)

// PluginsStep selects the plugins to install and the proxy used to fetch them.
type PluginsStep struct {
	*workflow.StepBase

	available map[string]struct{}
	previous  []string

	Plugins        []string
	HTTPSProxyHost string
	HTTPSProxyPort *int
}

// NewPluginsStep creates the step offering the descriptor's plugins. An
// upgrade starts with the previous installation's plugins selected.
func NewPluginsStep(desc Descriptor, session Session) *PluginsStep {
	s := &PluginsStep{
		StepBase:  workflow.NewStepBase("Plugins"),
		available: make(map[string]struct{}),
		previous:  session.PreviousPlugins,
	}
	for _, p := range desc.AvailablePlugins {
		s.available[strings.ToLower(p)] = struct{}{}
	}
	s.OnRefresh(s.defaults)
	s.defaults()

	s.SetValidator(workflow.Rules{
		{Field: "Plugins", Check: s.checkPlugins},
		{Field: "HttpsProxyHost", Check: func() string {
			if s.HTTPSProxyPort != nil && strings.TrimSpace(s.HTTPSProxyHost) == "" {
				return "A proxy host is required when a proxy port is set"
			}
			return ""
		}},
		{Field: "HttpsProxyPort", Check: func() string {
			if s.HTTPSProxyPort != nil && (*s.HTTPSProxyPort < 1 || *s.HTTPSProxyPort > 65535) {
				return "Proxy port must be between 1 and 65535"
			}
			return ""
		}},
	})
	return s
}

func (s *PluginsStep) defaults() {
	s.Plugins = nil
	if len(s.previous) > 0 {
		s.Plugins = append([]string(nil), s.previous...)
	}
	s.HTTPSProxyHost = ""
	s.HTTPSProxyPort = nil
}

func (s *PluginsStep) checkPlugins() string {
	for _, p := range s.Plugins {
		if _, ok := s.available[strings.ToLower(p)]; ok || IsPluginLocation(p) {
			continue
		}
		return "Unknown plugin " + p
	}
	return ""
}

// IsPluginLocation reports whether id points at an archive rather than
// naming an official plugin.
func IsPluginLocation(id string) bool {
	lower := strings.ToLower(id)
	return strings.HasPrefix(lower, "file:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasSuffix(lower, ".zip")
}

// ProxyEnv returns the variables that route the plugin script through the
// configured proxy. javaOptsVar names the JVM options variable, if any.
func (s *PluginsStep) ProxyEnv(javaOptsVar string) map[string]string {
	out := map[string]string{}
	host := strings.TrimSpace(s.HTTPSProxyHost)
	if host == "" {
		return out
	}
	port := 443
	if s.HTTPSProxyPort != nil {
		port = *s.HTTPSProxyPort
	}
	if javaOptsVar != "" {
		out[javaOptsVar] = "-Dhttps.proxyHost=" + host + " -Dhttps.proxyPort=" + strconv.Itoa(port)
	}
	out["HTTPS_PROXY"] = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	return out
}

// StepType satisfies argument.Provider.
func (s *PluginsStep) StepType() string { return "PluginsStep" }

// Arguments satisfies argument.Provider.
func (s *PluginsStep) Arguments() []argument.Descriptor {
	return []argument.Descriptor{
		argument.ListArg("Plugins", func() []string { return s.Plugins }, func(v []string) { s.Plugins = v }),
		argument.StringArg("HttpsProxyHost", func() string { return s.HTTPSProxyHost }, func(v string) { s.HTTPSProxyHost = v }).
			WithStaticDefault(""),
		argument.NullableIntArg("HttpsProxyPort", func() *int { return s.HTTPSProxyPort }, func(v *int) { s.HTTPSProxyPort = v }),
	}
}
