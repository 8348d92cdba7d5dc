package fsys

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileSystem abstracts filesystem operations to improve testability.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	RemoveAll(path string) error
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
}

// OS implements FileSystem using the local OS.
type OS struct{}

func (OS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (OS) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OS) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (OS) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (OS) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (OS) Create(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Exists reports whether path exists. Errors other than not-exist count as
// existing so callers do not silently recreate unreadable paths.
func Exists(fsys FileSystem, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// IsDir reports whether path is an existing directory.
func IsDir(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// CopyFile copies one regular file, creating parent directories.
func CopyFile(fsys FileSystem, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(dst))
	}

	out, err := fsys.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to copy %s to %s", src, dst)
	}
	return errors.Wrapf(out.Close(), "failed to close %s", dst)
}

// CopyTree copies src into dst recursively. When overwrite is false,
// files already present in dst are left untouched.
func CopyTree(fsys FileSystem, src, dst string, overwrite bool) (copied []string, err error) {
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", src)
	}
	if err := fsys.MkdirAll(dst, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dst)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			sub, err := CopyTree(fsys, from, to, overwrite)
			copied = append(copied, sub...)
			if err != nil {
				return copied, err
			}
			continue
		}

		if !overwrite && Exists(fsys, to) {
			continue
		}
		if err := CopyFile(fsys, from, to); err != nil {
			return copied, err
		}
		copied = append(copied, to)
	}
	return copied, nil
}

// SamePath compares two paths after cleaning, ignoring case and trailing
// separators as the Windows filesystem does.
func SamePath(a, b string) bool {
	return normalize(a) == normalize(b)
}

// Within reports whether path equals root or lies beneath it.
func Within(root, path string) bool {
	r, p := normalize(root), normalize(path)
	if r == "" || p == "" {
		return false
	}
	if r == p {
		return true
	}
	return strings.HasPrefix(p, r+"/")
}

func normalize(p string) string {
	if strings.TrimSpace(p) == "" {
		return ""
	}
	cleaned := filepath.ToSlash(filepath.Clean(strings.ReplaceAll(p, `\`, "/")))
	return strings.ToLower(strings.TrimSuffix(cleaned, "/"))
}
