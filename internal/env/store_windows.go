//go:build windows

package env

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows/registry"
)

const (
	machineEnvironmentKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`
	userEnvironmentKey    = `Environment`
)

// OSStore persists machine and user variables in the registry and process
// variables in the current process block.
type OSStore struct{}

// NewOSStore returns the registry-backed store.
func NewOSStore() Store {
	return OSStore{}
}

func openScope(scope Scope, access uint32) (registry.Key, error) {
	switch scope {
	case ScopeMachine:
		return registry.OpenKey(registry.LOCAL_MACHINE, machineEnvironmentKey, access)
	case ScopeUser:
		return registry.OpenKey(registry.CURRENT_USER, userEnvironmentKey, access)
	default:
		return 0, errors.Errorf("scope %s is not registry backed", scope)
	}
}

// Get satisfies Store.
func (OSStore) Get(name string, scope Scope) (string, bool, error) {
	if scope == ScopeProcess {
		return processGet(name)
	}
	k, err := openScope(scope, registry.QUERY_VALUE)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to open %s environment", scope)
	}
	defer k.Close()

	v, _, err := k.GetStringValue(name)
	if err == registry.ErrNotExist {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read %s variable %s", scope, name)
	}
	return v, true, nil
}

// Set satisfies Store.
func (OSStore) Set(name, value string, scope Scope) error {
	if scope == ScopeProcess {
		return processSet(name, value)
	}
	k, err := openScope(scope, registry.SET_VALUE)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s environment", scope)
	}
	defer k.Close()

	if err := k.SetStringValue(name, value); err != nil {
		return errors.Wrapf(err, "failed to write %s variable %s", scope, name)
	}
	return nil
}

// Delete satisfies Store.
func (OSStore) Delete(name string, scope Scope) error {
	if scope == ScopeProcess {
		return processDelete(name)
	}
	k, err := openScope(scope, registry.SET_VALUE)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s environment", scope)
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil && err != registry.ErrNotExist {
		return errors.Wrapf(err, "failed to delete %s variable %s", scope, name)
	}
	return nil
}
