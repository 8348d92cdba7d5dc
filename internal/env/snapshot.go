package env

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

// Default expressions understood by Resolve. They are serialized in place
// of values that must be computed on the machine running the tasks.
const (
	MachineNameExpression = "${MACHINE_NAME}"
	TotalMemoryExpression = "${TOTAL_MEMORY_MB}"
)

// ProductVariables names the variables a product reads and writes.
type ProductVariables struct {
	Home         string
	Config       string
	LegacyConfig string
}

// Names lists every variable name, legacy included.
func (v ProductVariables) Names() []string {
	names := []string{v.Home, v.Config}
	if v.LegacyConfig != "" {
		names = append(names, v.LegacyConfig)
	}
	return names
}

// Snapshot is the environment captured once at session start. Components
// receive it explicitly and never read ambient state themselves.
type Snapshot struct {
	MachineName  string
	TotalMemory  uint64
	TempDir      string
	ProgramFiles string
	ProgramData  string

	variables map[Scope]map[string]string
}

// Detect captures the host environment and the given variables in every scope.
func Detect(store Store, names ...string) (*Snapshot, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read machine name")
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read physical memory")
	}

	s := &Snapshot{
		MachineName:  strings.ToUpper(host),
		TotalMemory:  vm.Total,
		TempDir:      os.TempDir(),
		ProgramFiles: firstNonEmpty(os.Getenv("ProgramW6432"), os.Getenv("ProgramFiles"), filepath.Join(string(filepath.Separator), "Program Files")),
		ProgramData:  firstNonEmpty(os.Getenv("ProgramData"), filepath.Join(string(filepath.Separator), "ProgramData")),
	}

	for _, name := range names {
		for _, scope := range Scopes {
			v, ok, err := store.Get(name, scope)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s variable %s", scope, name)
			}
			if ok {
				s.WithVariable(scope, name, v)
			}
		}
	}

	return s, nil
}

// WithVariable records a variable value in the snapshot and returns it for chaining.
func (s *Snapshot) WithVariable(scope Scope, name, value string) *Snapshot {
	if s.variables == nil {
		s.variables = make(map[Scope]map[string]string)
	}
	if s.variables[scope] == nil {
		s.variables[scope] = make(map[string]string)
	}
	s.variables[scope][strings.ToUpper(name)] = value
	return s
}

// Lookup returns the value of name from the most specific scope holding a
// non-empty value.
func (s *Snapshot) Lookup(name string) (string, Scope, bool) {
	key := strings.ToUpper(name)
	for i := len(Scopes) - 1; i >= 0; i-- {
		scope := Scopes[i]
		if v := strings.TrimSpace(s.variables[scope][key]); v != "" {
			return v, scope, true
		}
	}
	return "", ScopeMachine, false
}

// HomeDirectory resolves the product home variable.
func (s *Snapshot) HomeDirectory(vars ProductVariables) (string, bool) {
	v, _, ok := s.Lookup(vars.Home)
	return v, ok
}

// ConfigDirectory resolves the product config variable, falling back to the
// legacy name. legacy reports whether the value came from the legacy name.
func (s *Snapshot) ConfigDirectory(vars ProductVariables) (dir string, legacy bool, ok bool) {
	if v, _, found := s.Lookup(vars.Config); found {
		return v, false, true
	}
	if vars.LegacyConfig == "" {
		return "", false, false
	}
	if v, _, found := s.Lookup(vars.LegacyConfig); found {
		return v, true, true
	}
	return "", false, false
}

// Resolve maps a default expression to its value on this machine.
func (s *Snapshot) Resolve(expression string) (string, bool) {
	switch strings.TrimSpace(expression) {
	case MachineNameExpression:
		return s.MachineName, s.MachineName != ""
	case TotalMemoryExpression:
		if s.TotalMemory == 0 {
			return "", false
		}
		return strconv.FormatUint(s.TotalMemory/(1024*1024), 10), true
	default:
		return "", false
	}
}

// StagingDirectory is the per-product preserve area under the temp path.
func (s *Snapshot) StagingDirectory(root, product string) string {
	if root == "" {
		root = s.TempDir
	}
	return filepath.Join(root, product)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
