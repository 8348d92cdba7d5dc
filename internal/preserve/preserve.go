package preserve

import (
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
	"EWI/internal/logger"
)

// Manager moves product directories aside before destructive operations
// and puts them back on rollback. It only operates beneath its roots.
type Manager struct {
	fs     fsys.FileSystem
	log    logger.Logger
	roots  []string
	copied map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem overrides the filesystem implementation.
func WithFileSystem(fs fsys.FileSystem) Option {
	return func(m *Manager) {
		if fs != nil {
			m.fs = fs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithCopiedEntries names the entries that are copied instead of moved on
// Preserve. The default is the config directory.
func WithCopiedEntries(names ...string) Option {
	return func(m *Manager) {
		m.copied = make(map[string]struct{}, len(names))
		for _, n := range names {
			m.copied[strings.ToLower(n)] = struct{}{}
		}
	}
}

// NewManager creates a Manager restricted to the given product roots,
// typically the install directory and the product staging directory.
func NewManager(roots []string, options ...Option) *Manager {
	m := &Manager{
		fs:     fsys.OS{},
		log:    logger.Discard(),
		roots:  roots,
		copied: map[string]struct{}{"config": {}},
	}
	for _, opt := range options {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Preserve deletes any leftover stagingDir, then moves the immediate
// entries of sourceDir into it. Copied entries stay live in sourceDir.
func (m *Manager) Preserve(sourceDir, stagingDir string) error {
	if err := m.checkRoots("preserve.Preserve", sourceDir, stagingDir); err != nil {
		return err
	}

	if fsys.Exists(m.fs, stagingDir) {
		m.log.Warn("Removing leftover staging directory %s", stagingDir)
		if err := m.fs.RemoveAll(stagingDir); err != nil {
			return m.failure("preserve.Preserve", "failed to clear staging directory", err, stagingDir)
		}
	}

	if !fsys.IsDir(m.fs, sourceDir) {
		m.log.Debug("Nothing to preserve in %s", sourceDir)
		return nil
	}

	entries, err := m.fs.ReadDir(sourceDir)
	if err != nil {
		return m.failure("preserve.Preserve", "failed to list source directory", err, sourceDir)
	}
	if err := m.fs.MkdirAll(stagingDir, 0o755); err != nil {
		return m.failure("preserve.Preserve", "failed to create staging directory", err, stagingDir)
	}

	for _, entry := range entries {
		from := filepath.Join(sourceDir, entry.Name())
		to := filepath.Join(stagingDir, entry.Name())

		if _, keep := m.copied[strings.ToLower(entry.Name())]; keep {
			if err := m.copyEntry(entry.IsDir(), from, to); err != nil {
				return m.failure("preserve.Preserve", "failed to copy "+entry.Name(), err, from)
			}
			m.log.Debug("Copied %s to %s", from, to)
			continue
		}

		if err := m.move(entry.IsDir(), from, to); err != nil {
			return m.failure("preserve.Preserve", "failed to move "+entry.Name(), err, from)
		}
		m.log.Debug("Moved %s to %s", from, to)
	}

	m.log.Info("Preserved %d entries from %s", len(entries), sourceDir)
	return nil
}

// Copy replaces stagingDir with a full copy of sourceDir, leaving
// sourceDir live. A missing sourceDir only clears stagingDir.
func (m *Manager) Copy(sourceDir, stagingDir string) error {
	if err := m.checkRoots("preserve.Copy", sourceDir, stagingDir); err != nil {
		return err
	}
	if err := m.fs.RemoveAll(stagingDir); err != nil {
		return m.failure("preserve.Copy", "failed to clear staging directory", err, stagingDir)
	}
	if !fsys.IsDir(m.fs, sourceDir) {
		return nil
	}
	copied, err := fsys.CopyTree(m.fs, sourceDir, stagingDir, true)
	if err != nil {
		return m.failure("preserve.Copy", "failed to copy source directory", err, sourceDir)
	}
	m.log.Info("Copied %d files from %s", len(copied), sourceDir)
	return nil
}

// Restore replaces targetDir with the content of stagingDir and removes
// stagingDir. It does nothing when stagingDir does not exist.
func (m *Manager) Restore(stagingDir, targetDir string) error {
	if err := m.checkRoots("preserve.Restore", stagingDir, targetDir); err != nil {
		return err
	}

	if !fsys.Exists(m.fs, stagingDir) {
		m.log.Debug("No staging directory at %s, nothing to restore", stagingDir)
		return nil
	}

	if err := m.fs.RemoveAll(targetDir); err != nil {
		return m.failure("preserve.Restore", "failed to remove target directory", err, targetDir)
	}
	if _, err := fsys.CopyTree(m.fs, stagingDir, targetDir, true); err != nil {
		return m.failure("preserve.Restore", "failed to copy staging directory", err, stagingDir)
	}
	if err := m.fs.RemoveAll(stagingDir); err != nil {
		return m.failure("preserve.Restore", "failed to remove staging directory", err, stagingDir)
	}

	m.log.Info("Restored %s from %s", targetDir, stagingDir)
	return nil
}

// Discard removes stagingDir if present.
func (m *Manager) Discard(stagingDir string) error {
	if err := m.checkRoots("preserve.Discard", stagingDir); err != nil {
		return err
	}
	if err := m.fs.RemoveAll(stagingDir); err != nil {
		return m.failure("preserve.Discard", "failed to remove staging directory", err, stagingDir)
	}
	return nil
}

func (m *Manager) copyEntry(isDir bool, from, to string) error {
	if isDir {
		_, err := fsys.CopyTree(m.fs, from, to, true)
		return err
	}
	return fsys.CopyFile(m.fs, from, to)
}

// move renames, falling back to copy and delete across volumes.
func (m *Manager) move(isDir bool, from, to string) error {
	if err := m.fs.Rename(from, to); err == nil {
		return nil
	}
	if err := m.copyEntry(isDir, from, to); err != nil {
		return err
	}
	return errors.Wrapf(m.fs.RemoveAll(from), "failed to remove %s after copy", from)
}

func (m *Manager) checkRoots(operation string, paths ...string) error {
	var result *multierror.Error
	for _, p := range paths {
		if !m.withinRoots(p) {
			result = multierror.Append(result, errors.Errorf("%s is outside the product directories", p))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return apperrors.SystemError(apperrors.CodePathOutsideRoot, "refusing to touch paths outside the product tree", err).
			WithModule("preserve").
			WithOperation(operation).
			WithField("roots", strings.Join(m.roots, ";"))
	}
	return nil
}

func (m *Manager) withinRoots(path string) bool {
	for _, root := range m.roots {
		if fsys.Within(root, path) {
			return true
		}
	}
	return false
}

func (m *Manager) failure(operation, message string, err error, path string) error {
	return apperrors.SystemError(apperrors.CodeFileOperation, message, err).
		WithModule("preserve").
		WithOperation(operation).
		WithField("path", path)
}
