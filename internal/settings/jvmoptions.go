package settings

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"EWI/internal/fsys"
)

// JVMOptions edits a jvm.options file line by line.
type JVMOptions struct {
	path  string
	fs    fsys.FileSystem
	lines []string
}

// LoadJVMOptions reads path. A missing file yields no lines.
func LoadJVMOptions(fs fsys.FileSystem, path string) (*JVMOptions, error) {
	o := &JVMOptions{path: path, fs: fs}

	r, err := fs.Open(path)
	if os.IsNotExist(errors.Cause(err)) {
		return o, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		o.lines = append(o.lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return o, errors.Wrapf(scanner.Err(), "failed to scan %s", path)
}

// Lines returns the current content.
func (o *JVMOptions) Lines() []string {
	return append([]string(nil), o.lines...)
}

// HeapSize returns the -Xmx value in megabytes, if set in megabytes or gigabytes.
func (o *JVMOptions) HeapSize() (uint64, bool) {
	for _, l := range o.lines {
		if v, ok := strings.CutPrefix(strings.TrimSpace(l), "-Xmx"); ok {
			return parseSize(v)
		}
	}
	return 0, false
}

// SetHeapSize replaces or appends -Xms and -Xmx with sizeMB megabytes.
func (o *JVMOptions) SetHeapSize(sizeMB uint64) {
	size := strconv.FormatUint(sizeMB, 10) + "m"
	o.setFlag("-Xms", size)
	o.setFlag("-Xmx", size)
}

// setFlag replaces the line starting with prefix or appends prefix+value.
func (o *JVMOptions) setFlag(prefix, value string) {
	for i, l := range o.lines {
		if strings.HasPrefix(strings.TrimSpace(l), prefix) {
			o.lines[i] = prefix + value
			return
		}
	}
	o.lines = append(o.lines, prefix+value)
}

// Save writes the options back with Windows line endings.
func (o *JVMOptions) Save() error {
	data := strings.Join(o.lines, "\r\n")
	if len(o.lines) > 0 {
		data += "\r\n"
	}
	return writeFile(o.fs, o.path, []byte(data))
}

func parseSize(v string) (uint64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(v, "g"):
		mult = 1024
		v = strings.TrimSuffix(v, "g")
	case strings.HasSuffix(v, "m"):
		v = strings.TrimSuffix(v, "m")
	default:
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}
