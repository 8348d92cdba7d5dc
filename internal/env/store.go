package env

import (
	"os"
	"strings"
	"sync"
)

// Scope selects which environment block a variable lives in. A more
// specific scope overrides a less specific one when resolving.
type Scope int

const (
	ScopeMachine Scope = iota
	ScopeUser
	ScopeProcess
)

// String renders the scope name used in logs.
func (s Scope) String() string {
	switch s {
	case ScopeMachine:
		return "machine"
	case ScopeUser:
		return "user"
	case ScopeProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Scopes lists every scope from least to most specific.
var Scopes = []Scope{ScopeMachine, ScopeUser, ScopeProcess}

// Store reads and writes environment variables in a given scope.
type Store interface {
	Get(name string, scope Scope) (string, bool, error)
	Set(name, value string, scope Scope) error
	Delete(name string, scope Scope) error
}

// MemoryStore is an in-memory Store. Names are case-insensitive, matching
// the Windows environment block.
type MemoryStore struct {
	mu   sync.Mutex
	vars map[Scope]map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vars: make(map[Scope]map[string]string)}
}

// Get satisfies Store.
func (m *MemoryStore) Get(name string, scope Scope) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vars[scope][strings.ToUpper(name)]
	return v, ok, nil
}

// Set satisfies Store.
func (m *MemoryStore) Set(name, value string, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars[scope] == nil {
		m.vars[scope] = make(map[string]string)
	}
	m.vars[scope][strings.ToUpper(name)] = value
	return nil
}

// Delete satisfies Store. Deleting a missing variable is not an error.
func (m *MemoryStore) Delete(name string, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars[scope], strings.ToUpper(name))
	return nil
}

// processGet and friends back the process scope of the OS stores.
func processGet(name string) (string, bool, error) {
	v, ok := os.LookupEnv(name)
	return v, ok, nil
}

func processSet(name, value string) error {
	return os.Setenv(name, value)
}

func processDelete(name string) error {
	return os.Unsetenv(name)
}
