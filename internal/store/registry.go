package store

import (
	"context"
	"time"
)

// Installation is one installed product version.
type Installation struct {
	Product     string
	Version     string
	InstallDir  string
	ConfigDir   string
	InstalledAt time.Time
}

// PluginRecord tracks one plugin of a product installation. Records are
// unique by product and identifier.
type PluginRecord struct {
	Product     string
	Identifier  string
	Selected    bool
	Ticks       int
	InstalledAt time.Time
}

// Registry persists what the installer has put on this machine.
type Registry interface {
	// Bootstrap prepares the backing store.
	Bootstrap(ctx context.Context) error
	RecordInstallation(ctx context.Context, inst Installation) error
	RemoveInstallation(ctx context.Context, product, version string) error
	// Installations lists a product's installations, newest version first.
	Installations(ctx context.Context, product string) ([]Installation, error)
	// OlderVersionInstalled reports whether a version lower than current remains.
	OlderVersionInstalled(ctx context.Context, product, current string) (bool, error)
	RecordPlugin(ctx context.Context, rec PluginRecord) error
	RemovePlugin(ctx context.Context, product, identifier string) error
	Plugins(ctx context.Context, product string) ([]PluginRecord, error)
	Close() error
}
