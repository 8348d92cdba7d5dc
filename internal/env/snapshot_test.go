package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var esVars = ProductVariables{Home: "ES_HOME", Config: "ES_PATH_CONF", LegacyConfig: "ES_CONFIG"}

func TestLookupPrefersMostSpecificScope(t *testing.T) {
	s := (&Snapshot{}).
		WithVariable(ScopeMachine, "ES_HOME", `C:\machine`).
		WithVariable(ScopeUser, "es_home", `C:\user`)

	v, scope, ok := s.Lookup("ES_HOME")
	require.True(t, ok)
	assert.Equal(t, `C:\user`, v)
	assert.Equal(t, ScopeUser, scope)

	s.WithVariable(ScopeProcess, "ES_HOME", `C:\process`)
	v, _ = s.HomeDirectory(esVars)
	assert.Equal(t, `C:\process`, v)
}

func TestConfigDirectoryFallsBackToLegacyName(t *testing.T) {
	s := (&Snapshot{}).WithVariable(ScopeMachine, "ES_CONFIG", `C:\legacy`)

	dir, legacy, ok := s.ConfigDirectory(esVars)
	require.True(t, ok)
	assert.True(t, legacy)
	assert.Equal(t, `C:\legacy`, dir)

	s.WithVariable(ScopeMachine, "ES_PATH_CONF", `C:\current`)
	dir, legacy, ok = s.ConfigDirectory(esVars)
	require.True(t, ok)
	assert.False(t, legacy)
	assert.Equal(t, `C:\current`, dir)
}

func TestResolveExpressions(t *testing.T) {
	s := &Snapshot{MachineName: "NODE-1", TotalMemory: 8 * 1024 * 1024 * 1024}

	v, ok := s.Resolve(MachineNameExpression)
	require.True(t, ok)
	assert.Equal(t, "NODE-1", v)

	v, ok = s.Resolve(TotalMemoryExpression)
	require.True(t, ok)
	assert.Equal(t, "8192", v)

	_, ok = s.Resolve("${UNKNOWN}")
	assert.False(t, ok)
}

func TestDetectReadsStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("ES_PATH_CONF", `D:\conf`, ScopeMachine))

	s, err := Detect(store, esVars.Names()...)
	require.NoError(t, err)
	assert.NotEmpty(t, s.MachineName)
	assert.NotZero(t, s.TotalMemory)

	dir, _, ok := s.ConfigDirectory(esVars)
	require.True(t, ok)
	assert.Equal(t, `D:\conf`, dir)
}

func TestMemoryStoreIsCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("Kibana_Home", "x", ScopeUser))

	v, ok, err := store.Get("KIBANA_HOME", ScopeUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	require.NoError(t, store.Delete("kibana_home", ScopeUser))
	_, ok, _ = store.Get("KIBANA_HOME", ScopeUser)
	assert.False(t, ok)
}
