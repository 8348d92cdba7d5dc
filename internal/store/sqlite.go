package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"

	apperrors "EWI/internal/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS installations (
	product      TEXT NOT NULL,
	version      TEXT NOT NULL,
	install_dir  TEXT NOT NULL,
	config_dir   TEXT NOT NULL,
	installed_at TEXT NOT NULL,
	PRIMARY KEY (product, version)
);
CREATE TABLE IF NOT EXISTS plugins (
	product      TEXT NOT NULL,
	identifier   TEXT NOT NULL,
	selected     INTEGER NOT NULL DEFAULT 1,
	ticks        INTEGER NOT NULL DEFAULT 0,
	installed_at TEXT NOT NULL,
	PRIMARY KEY (product, identifier)
);`

// SQLiteRegistry persists the registry in a SQLite database file.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the registry at path. Use
// ":memory:" for a throwaway registry.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRegistry, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, dbFailure("store.Open", "failed to create registry directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dbFailure("store.Open", "failed to open registry", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, dbFailure("store.Open", "failed to set busy timeout", err)
	}

	r := &SQLiteRegistry{db: db}
	if err := r.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Bootstrap creates the schema.
func (r *SQLiteRegistry) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return dbFailure("store.Bootstrap", "failed to initialize schema", err)
	}
	return nil
}

// Close releases the database.
func (r *SQLiteRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// RecordInstallation inserts or replaces inst.
func (r *SQLiteRegistry) RecordInstallation(ctx context.Context, inst Installation) error {
	if _, err := version.NewVersion(inst.Version); err != nil {
		return dbFailure("store.RecordInstallation", "invalid version "+inst.Version, err)
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO installations (product, version, install_dir, config_dir, installed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(product, version) DO UPDATE SET
	install_dir = excluded.install_dir,
	config_dir = excluded.config_dir,
	installed_at = excluded.installed_at`,
		inst.Product, inst.Version, inst.InstallDir, inst.ConfigDir, inst.InstalledAt.Format(time.RFC3339Nano))
	if err != nil {
		return dbFailure("store.RecordInstallation", "failed to record installation", err)
	}
	return nil
}

// RemoveInstallation deletes one installation. Missing rows are not an error.
func (r *SQLiteRegistry) RemoveInstallation(ctx context.Context, product, ver string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM installations WHERE product = ? AND version = ?`, product, ver); err != nil {
		return dbFailure("store.RemoveInstallation", "failed to remove installation", err)
	}
	return nil
}

// Installations satisfies Registry.
func (r *SQLiteRegistry) Installations(ctx context.Context, product string) ([]Installation, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT product, version, install_dir, config_dir, installed_at
FROM installations WHERE product = ?`, product)
	if err != nil {
		return nil, dbFailure("store.Installations", "failed to list installations", err)
	}
	defer rows.Close()

	out := make([]Installation, 0)
	for rows.Next() {
		var inst Installation
		var installedAt string
		if err := rows.Scan(&inst.Product, &inst.Version, &inst.InstallDir, &inst.ConfigDir, &installedAt); err != nil {
			return nil, dbFailure("store.Installations", "failed to scan installation", err)
		}
		inst.InstalledAt, _ = time.Parse(time.RFC3339Nano, installedAt)
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure("store.Installations", "failed to iterate installations", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return compareVersions(out[i].Version, out[j].Version) > 0
	})
	return out, nil
}

// OlderVersionInstalled satisfies Registry.
func (r *SQLiteRegistry) OlderVersionInstalled(ctx context.Context, product, current string) (bool, error) {
	cur, err := version.NewVersion(current)
	if err != nil {
		return false, dbFailure("store.OlderVersionInstalled", "invalid version "+current, err)
	}
	installs, err := r.Installations(ctx, product)
	if err != nil {
		return false, err
	}
	for _, inst := range installs {
		v, err := version.NewVersion(inst.Version)
		if err != nil {
			continue
		}
		if v.LessThan(cur) {
			return true, nil
		}
	}
	return false, nil
}

// RecordPlugin inserts or updates rec.
func (r *SQLiteRegistry) RecordPlugin(ctx context.Context, rec PluginRecord) error {
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now().UTC()
	}
	selected := 0
	if rec.Selected {
		selected = 1
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO plugins (product, identifier, selected, ticks, installed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(product, identifier) DO UPDATE SET
	selected = excluded.selected,
	ticks = excluded.ticks,
	installed_at = excluded.installed_at`,
		rec.Product, rec.Identifier, selected, rec.Ticks, rec.InstalledAt.Format(time.RFC3339Nano))
	if err != nil {
		return dbFailure("store.RecordPlugin", "failed to record plugin", err)
	}
	return nil
}

// RemovePlugin deletes one plugin record.
func (r *SQLiteRegistry) RemovePlugin(ctx context.Context, product, identifier string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM plugins WHERE product = ? AND identifier = ?`, product, identifier); err != nil {
		return dbFailure("store.RemovePlugin", "failed to remove plugin", err)
	}
	return nil
}

// Plugins lists a product's plugin records ordered by identifier.
func (r *SQLiteRegistry) Plugins(ctx context.Context, product string) ([]PluginRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT product, identifier, selected, ticks, installed_at
FROM plugins WHERE product = ? ORDER BY identifier`, product)
	if err != nil {
		return nil, dbFailure("store.Plugins", "failed to list plugins", err)
	}
	defer rows.Close()

	out := make([]PluginRecord, 0)
	for rows.Next() {
		var rec PluginRecord
		var selected int
		var installedAt string
		if err := rows.Scan(&rec.Product, &rec.Identifier, &selected, &rec.Ticks, &installedAt); err != nil {
			return nil, dbFailure("store.Plugins", "failed to scan plugin", err)
		}
		rec.Selected = selected != 0
		rec.InstalledAt, _ = time.Parse(time.RFC3339Nano, installedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbFailure("store.Plugins", "failed to iterate plugins", err)
	}
	return out, nil
}

// compareVersions orders semantic versions, falling back to text order for
// values go-version cannot parse.
func compareVersions(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return va.Compare(vb)
}

func dbFailure(operation, message string, err error) error {
	return apperrors.DatabaseError(apperrors.CodeRegistry, message, errors.WithStack(err)).
		WithModule("store").
		WithOperation(operation)
}

var _ Registry = (*SQLiteRegistry)(nil)
