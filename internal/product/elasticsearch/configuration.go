package elasticsearch

import (
	"strconv"
	"strings"

	"EWI/internal/argument"
	"EWI/internal/env"
	"EWI/internal/product"
	"EWI/internal/workflow"
)

// Graph property names owned by the configuration step.
const (
	PropTotalMemory    = "TotalMemory"
	PropMaxMemory      = "MaxMemory"
	PropSelectedMemory = "SelectedMemory"
	PropMemoryMessage  = "SelectedMemoryMessage"
)

const (
	mib = 1024 * 1024

	// CompressedOopsLimitMB is the largest heap that keeps compressed
	// object pointers.
	CompressedOopsLimitMB = 31 * 1024
	// MinimumHeapMB is the smallest heap the node starts with.
	MinimumHeapMB = 512
	// DefaultHeapMB is offered when the machine allows it.
	DefaultHeapMB = 2048

	DefaultClusterName   = "elasticsearch"
	DefaultHTTPPort      = 9200
	DefaultTransportPort = 9300
)

// ConfigurationStep holds the node settings written to elasticsearch.yml
// and jvm.options.
type ConfigurationStep struct {
	*workflow.StepBase

	snapshot *env.Snapshot

	ClusterName        string
	NodeName           string
	MasterNode         bool
	DataNode           bool
	IngestNode         bool
	SelectedMemory     uint64
	LockMemory         bool
	HTTPPort           int
	TransportPort      int
	SeedHosts          []string
	InitialMasterNodes []string

	// TotalMemory is the physical memory in bytes.
	TotalMemory uint64
	// MaxMemory is derived from TotalMemory, in megabytes.
	MaxMemory uint64

	memoryMessage string
}

// NewConfigurationStep creates the step with defaults from snapshot.
func NewConfigurationStep(snapshot *env.Snapshot) *ConfigurationStep {
	s := &ConfigurationStep{StepBase: workflow.NewStepBase("Configuration"), snapshot: snapshot}
	s.OnRefresh(s.defaults)
	s.defaults()

	s.SetValidator(workflow.Rules{
		{Field: "ClusterName", Check: workflow.Required(func() string { return s.ClusterName }, "Cluster name is required")},
		{Field: "NodeName", Check: workflow.Required(func() string { return s.NodeName }, "Node name is required")},
		{Field: product.FieldPhysicalMemory, Check: func() string {
			if s.MaxMemory < MinimumHeapMB {
				return "At least " + strconv.Itoa(2*MinimumHeapMB) + "MB of physical memory is required"
			}
			return ""
		}},
		{Field: "SelectedMemory", Check: func() string { return s.memoryMessage }},
		{Field: "HttpPort", Check: portRule(func() int { return s.HTTPPort }, "HTTP port")},
		{Field: "TransportPort", Check: portRule(func() int { return s.TransportPort }, "Transport port")},
		{Field: "TransportPort", Check: func() string {
			if s.HTTPPort == s.TransportPort {
				return "HTTP and transport ports must differ"
			}
			return ""
		}},
		{Field: "InitialMasterNodes", Check: func() string {
			if len(s.InitialMasterNodes) > 0 && !s.MasterNode && len(s.SeedHosts) == 0 {
				return "Initial master nodes need seed hosts when this node is not master eligible"
			}
			return ""
		}},
	})
	return s
}

func (s *ConfigurationStep) defaults() {
	s.ClusterName = DefaultClusterName
	s.NodeName = s.snapshot.MachineName
	s.MasterNode = true
	s.DataNode = true
	s.IngestNode = true
	s.LockMemory = false
	s.HTTPPort = DefaultHTTPPort
	s.TransportPort = DefaultTransportPort
	s.SeedHosts = nil
	s.InitialMasterNodes = nil
	s.TotalMemory = s.snapshot.TotalMemory

	s.ComputeMaxMemory()
	s.SelectedMemory = DefaultHeapMB
	if s.MaxMemory < DefaultHeapMB {
		s.SelectedMemory = s.MaxMemory
	}
	s.ComputeMemoryMessage()
}

// ComputeMaxMemory sets MaxMemory to half the physical memory, capped
// below the compressed oops limit.
func (s *ConfigurationStep) ComputeMaxMemory() {
	half := s.TotalMemory / 2 / mib
	if half > CompressedOopsLimitMB {
		half = CompressedOopsLimitMB
	}
	s.MaxMemory = half
}

// ComputeMemoryMessage derives the validation message of SelectedMemory.
func (s *ConfigurationStep) ComputeMemoryMessage() {
	switch {
	case s.SelectedMemory < MinimumHeapMB:
		s.memoryMessage = "Selected memory must be at least " + strconv.Itoa(MinimumHeapMB) + "MB"
	case s.SelectedMemory > s.MaxMemory:
		s.memoryMessage = "Selected memory must not exceed " + strconv.FormatUint(s.MaxMemory, 10) + "MB"
	default:
		s.memoryMessage = ""
	}
}

// Register wires the memory derivations into g.
func (s *ConfigurationStep) Register(g *workflow.Graph) error {
	if err := g.Derive(PropMaxMemory, s.ComputeMaxMemory, PropTotalMemory); err != nil {
		return err
	}
	return g.Derive(PropMemoryMessage, s.ComputeMemoryMessage, PropSelectedMemory, PropMaxMemory)
}

// Roles lists the node roles in elasticsearch.yml order.
func (s *ConfigurationStep) Roles() []string {
	var roles []string
	if s.MasterNode {
		roles = append(roles, "master")
	}
	if s.DataNode {
		roles = append(roles, "data")
	}
	if s.IngestNode {
		roles = append(roles, "ingest")
	}
	return roles
}

// StepType satisfies argument.Provider.
func (s *ConfigurationStep) StepType() string { return "ConfigurationStep" }

// Arguments satisfies argument.Provider.
func (s *ConfigurationStep) Arguments() []argument.Descriptor {
	return []argument.Descriptor{
		argument.StringArg("ClusterName", func() string { return s.ClusterName }, func(v string) { s.ClusterName = strings.TrimSpace(v) }).
			WithStaticDefault(DefaultClusterName),
		argument.StringArg("NodeName", func() string { return s.NodeName }, func(v string) { s.NodeName = strings.TrimSpace(v) }).
			WithComputedDefault(env.MachineNameExpression),
		argument.BoolArg("MasterNode", func() bool { return s.MasterNode }, func(v bool) { s.MasterNode = v }),
		argument.BoolArg("DataNode", func() bool { return s.DataNode }, func(v bool) { s.DataNode = v }),
		argument.BoolArg("IngestNode", func() bool { return s.IngestNode }, func(v bool) { s.IngestNode = v }),
		argument.Uint64Arg("SelectedMemory", func() uint64 { return s.SelectedMemory }, func(v uint64) { s.SelectedMemory = v }),
		argument.BoolArg("LockMemory", func() bool { return s.LockMemory }, func(v bool) { s.LockMemory = v }).
			WithStaticDefault(false),
		argument.IntArg("HttpPort", func() int { return s.HTTPPort }, func(v int) { s.HTTPPort = v }).
			WithStaticDefault(DefaultHTTPPort),
		argument.IntArg("TransportPort", func() int { return s.TransportPort }, func(v int) { s.TransportPort = v }).
			WithStaticDefault(DefaultTransportPort),
		argument.ListArg("SeedHosts", func() []string { return s.SeedHosts }, func(v []string) { s.SeedHosts = v }),
		argument.ListArg("InitialMasterNodes", func() []string { return s.InitialMasterNodes }, func(v []string) { s.InitialMasterNodes = v }),
	}
}

func portRule(get func() int, label string) func() string {
	return func() string {
		if p := get(); p < 1 || p > 65535 {
			return label + " must be between 1 and 65535"
		}
		return ""
	}
}
