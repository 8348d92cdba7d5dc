package argument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "EWI/internal/errors"
	"EWI/internal/env"
)

type clusterStep struct {
	clusterName string
	nodeName    string
	seedHosts   []string
	httpPort    *int
	master      bool
}

func (s *clusterStep) StepType() string { return "ConfigurationStep" }

func (s *clusterStep) Arguments() []Descriptor {
	return []Descriptor{
		StringArg("ClusterName", func() string { return s.clusterName }, func(v string) { s.clusterName = v }).
			WithStaticDefault("elasticsearch"),
		StringArg("NodeName", func() string { return s.nodeName }, func(v string) { s.nodeName = v }).
			WithComputedDefault(env.MachineNameExpression),
		ListArg("SeedHosts", func() []string { return s.seedHosts }, func(v []string) { s.seedHosts = v }),
		NullableIntArg("HttpPort", func() *int { return s.httpPort }, func(v *int) { s.httpPort = v }),
		BoolArg("MasterNode", func() bool { return s.master }, func(v bool) { s.master = v }),
	}
}

type locationsStep struct {
	installDir string
}

func (s *locationsStep) StepType() string { return "LocationsStep" }

func (s *locationsStep) Arguments() []Descriptor {
	return []Descriptor{
		StringArg("InstallDir", func() string { return s.installDir }, func(v string) { s.installDir = v }),
	}
}

type clashingStep struct{}

func (clashingStep) StepType() string { return "PluginsStep" }

func (clashingStep) Arguments() []Descriptor {
	return []Descriptor{
		StringArg("installdir", func() string { return "" }, func(string) {}),
	}
}

func newSnapshot() *env.Snapshot {
	return &env.Snapshot{MachineName: "NODE-01", TotalMemory: 8 << 30}
}

func TestBuildRejectsCaseInsensitiveCollision(t *testing.T) {
	_, err := Build(&locationsStep{}, clashingStep{})
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeDuplicateArgument))
	assert.Contains(t, err.Error(), "installdir")
	assert.Contains(t, err.Error(), "LocationsStep")
	assert.Contains(t, err.Error(), "PluginsStep")
}

func TestSeedHostsListRoundTrip(t *testing.T) {
	src := &clusterStep{seedHosts: []string{"a:9200", "", "  b:9300  "}}
	args := MustBuild(src).WithResolver(newSnapshot()).Serialize()
	assert.Equal(t, "a:9200,b:9300", args["SEEDHOSTS"])

	dst := &clusterStep{}
	require.NoError(t, MustBuild(dst).WithResolver(newSnapshot()).Deserialize(args))
	assert.Equal(t, []string{"a:9200", "b:9300"}, dst.seedHosts)
}

func TestSerializeOmitsUnchangedStaticDefault(t *testing.T) {
	step := &clusterStep{clusterName: "elasticsearch"}
	args := MustBuild(step).Serialize()
	assert.NotContains(t, args, "CLUSTERNAME")

	step.clusterName = "prod"
	args = MustBuild(step).Serialize()
	assert.Equal(t, "prod", args["CLUSTERNAME"])
}

func TestComputedDefaultSerializesExpression(t *testing.T) {
	step := &clusterStep{nodeName: "NODE-01"}
	args := MustBuild(step).WithResolver(newSnapshot()).Serialize()
	assert.Equal(t, env.MachineNameExpression, args["NODENAME"])

	other := &env.Snapshot{MachineName: "NODE-02"}
	dst := &clusterStep{}
	require.NoError(t, MustBuild(dst).WithResolver(other).Deserialize(args))
	assert.Equal(t, "NODE-02", dst.nodeName)

	step.nodeName = "custom"
	args = MustBuild(step).WithResolver(newSnapshot()).Serialize()
	assert.Equal(t, "custom", args["NODENAME"])
}

func TestRoundTripPreservesValues(t *testing.T) {
	port := 9201
	src := &clusterStep{
		clusterName: "prod",
		nodeName:    "node-a",
		seedHosts:   []string{"x:9300"},
		httpPort:    &port,
		master:      true,
	}
	args := MustBuild(src).WithResolver(newSnapshot()).Serialize()

	dst := &clusterStep{}
	require.NoError(t, MustBuild(dst).WithResolver(newSnapshot()).Deserialize(args))
	assert.Equal(t, src, dst)
}

func TestDeserializeIgnoresUnknownAndMatchesCase(t *testing.T) {
	dst := &clusterStep{}
	err := MustBuild(dst).Deserialize(map[string]string{
		"clustername": "lower",
		"MASTERNODE":  "True",
		"NOTAFIELD":   "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "lower", dst.clusterName)
	assert.True(t, dst.master)
}

func TestDeserializeReportsConversionFailure(t *testing.T) {
	err := MustBuild(&clusterStep{}).Deserialize(map[string]string{"HTTPPORT": "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPPORT")
	assert.Contains(t, err.Error(), "abc")
}

func TestForAndLookup(t *testing.T) {
	c := MustBuild(&locationsStep{}, &clusterStep{})

	assert.Len(t, c.For("ConfigurationStep"), 5)
	assert.Len(t, c.For("LocationsStep"), 1)

	d, ok := c.Lookup("seedhosts")
	require.True(t, ok)
	assert.Equal(t, "ConfigurationStep", d.Owner)
	assert.Equal(t, KindStringList, d.Value)

	assert.Equal(t, "INSTALLDIR", c.Names()[0])
}

func TestPropertyStringAndCommandLine(t *testing.T) {
	c := MustBuild(&locationsStep{}, &clusterStep{})
	s := c.PropertyString(map[string]string{"SEEDHOSTS": "a,b", "INSTALLDIR": `C:\es`, "extra": "1"})
	assert.Equal(t, `INSTALLDIR="C:\es" SEEDHOSTS="a,b" EXTRA="1"`, s)

	args, rest := ParseCommandLine([]string{`installdir="C:\es"`, "SEEDHOSTS=a,b", "/quiet"})
	assert.Equal(t, map[string]string{"INSTALLDIR": `C:\es`, "SEEDHOSTS": "a,b"}, args)
	assert.Equal(t, []string{"/quiet"}, rest)
}
