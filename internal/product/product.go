package product

import (
	"path/filepath"
	"strings"

	"EWI/internal/env"
	"EWI/internal/fsys"
	"EWI/internal/plugin"
	"EWI/internal/store"
)

// Descriptor is the static description of one installable product.
type Descriptor struct {
	Name        string
	DisplayName string
	// Folder is the directory name below the Elastic program and data folders.
	Folder      string
	Variables   env.ProductVariables
	Plugin      plugin.Product
	ServiceName string
	// ServiceExecutable is relative to the install directory.
	ServiceExecutable string
	ConfigFile        string
	// Plugins offered for selection.
	AvailablePlugins []string
	HasDataDirectory bool
	// JavaOptionsVariable carries proxy settings to the plugin script's JVM.
	JavaOptionsVariable string
}

// Operation is what the task sequence is being run for.
type Operation int

const (
	Install Operation = iota
	Uninstall
	Rollback
)

// String renders the operation name.
func (o Operation) String() string {
	switch o {
	case Install:
		return "install"
	case Uninstall:
		return "uninstall"
	case Rollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// ParseOperation maps a command name to an Operation.
func ParseOperation(s string) (Operation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "install":
		return Install, true
	case "uninstall":
		return Uninstall, true
	case "rollback":
		return Rollback, true
	default:
		return Install, false
	}
}

// Session is everything known about the machine when the installer starts.
type Session struct {
	Snapshot    *env.Snapshot
	Version     string
	Operation   Operation
	StagingRoot string
	// Installed lists the product's existing installations, newest first.
	Installed []store.Installation
	// OlderVersionInstalled is true when a version lower than Version remains.
	OlderVersionInstalled bool
	// PreviousPlugins are the plugins of the installation being upgraded.
	PreviousPlugins []string
}

// Previous returns the newest installation of a version other than the
// one being installed.
func (s Session) Previous() (store.Installation, bool) {
	for _, inst := range s.Installed {
		if inst.Version != s.Version {
			return inst, true
		}
	}
	return store.Installation{}, false
}

// Upgrading reports whether an installation of another version exists.
func (s Session) Upgrading() bool {
	_, ok := s.Previous()
	return ok
}

// Layout is the set of directories an installation occupies.
type Layout struct {
	InstallDir string
	ConfigDir  string
	LogsDir    string
	DataDir    string
	StagingDir string
}

// BundledConfigDir is the config directory shipped inside the install directory.
func (l Layout) BundledConfigDir() string {
	return filepath.Join(l.InstallDir, "config")
}

// PluginsDir is the plugins directory below the install directory.
func (l Layout) PluginsDir() string {
	return filepath.Join(l.InstallDir, "plugins")
}

// PreservedInstallDir is where the install directory is staged.
func (l Layout) PreservedInstallDir() string {
	return filepath.Join(l.StagingDir, "install")
}

// PreservedConfigDir is where an external config directory is staged.
func (l Layout) PreservedConfigDir() string {
	return filepath.Join(l.StagingDir, "config")
}

// Roots are the directories preserve and restore may touch.
func (l Layout) Roots() []string {
	roots := []string{l.InstallDir, l.StagingDir, l.ConfigDir}
	out := roots[:0]
	for _, r := range roots {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// ConfigIsExternal reports whether the config directory lives outside
// the install directory.
func (l Layout) ConfigIsExternal() bool {
	return !fsys.Within(l.InstallDir, l.ConfigDir)
}
