package task

import (
	"os"

	apperrors "EWI/internal/errors"
	"EWI/internal/fsys"
)

// EnsureDirectory creates dir if missing. An existing directory is success.
func (tc *Context) EnsureDirectory(dir string) error {
	if fsys.IsDir(tc.FS, dir) {
		tc.Log.Debug("Directory %s already exists", dir)
		return nil
	}
	if err := tc.FS.MkdirAll(dir, 0o755); err != nil {
		return fileFailure("task.EnsureDirectory", "failed to create directory", dir, err)
	}
	tc.Log.Info("Created directory %s", dir)
	return nil
}

// SyncDirectory copies files from src that are missing in dst. Files
// already in dst are never overwritten. A missing src is success.
func (tc *Context) SyncDirectory(src, dst string) ([]string, error) {
	if !fsys.IsDir(tc.FS, src) || fsys.SamePath(src, dst) {
		return nil, nil
	}
	copied, err := fsys.CopyTree(tc.FS, src, dst, false)
	if err != nil {
		return copied, fileFailure("task.SyncDirectory", "failed to synchronize directory", dst, err)
	}
	for _, f := range copied {
		tc.Log.Debug("Added %s", f)
	}
	return copied, nil
}

// RemoveDirectory deletes dir and its content. A missing dir is success.
func (tc *Context) RemoveDirectory(dir string) error {
	if !fsys.Exists(tc.FS, dir) {
		return nil
	}
	if err := tc.FS.RemoveAll(dir); err != nil {
		return fileFailure("task.RemoveDirectory", "failed to remove directory", dir, err)
	}
	tc.Log.Info("Removed directory %s", dir)
	return nil
}

// SamePath compares paths the way Windows does.
func SamePath(a, b string) bool {
	return fsys.SamePath(a, b)
}

// DirectoryIsEmpty reports whether dir is missing or has no entries.
func (tc *Context) DirectoryIsEmpty(dir string) bool {
	entries, err := tc.FS.ReadDir(dir)
	if err != nil {
		return os.IsNotExist(err)
	}
	return len(entries) == 0
}

func fileFailure(operation, message, path string, err error) error {
	return apperrors.SystemError(apperrors.CodeFileOperation, message, err).
		WithModule("task").
		WithOperation(operation).
		WithField("path", path)
}
