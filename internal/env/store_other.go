//go:build !windows

package env

// OSStore keeps machine and user scopes in memory on hosts without a
// registry, so dry runs on build machines stay side-effect free. The
// process scope is the real process environment.
type OSStore struct {
	persistent *MemoryStore
}

// NewOSStore returns the in-memory fallback store.
func NewOSStore() Store {
	return &OSStore{persistent: NewMemoryStore()}
}

// Get satisfies Store.
func (s *OSStore) Get(name string, scope Scope) (string, bool, error) {
	if scope == ScopeProcess {
		return processGet(name)
	}
	return s.persistent.Get(name, scope)
}

// Set satisfies Store.
func (s *OSStore) Set(name, value string, scope Scope) error {
	if scope == ScopeProcess {
		return processSet(name, value)
	}
	return s.persistent.Set(name, value, scope)
}

// Delete satisfies Store.
func (s *OSStore) Delete(name string, scope Scope) error {
	if scope == ScopeProcess {
		return processDelete(name)
	}
	return s.persistent.Delete(name, scope)
}
