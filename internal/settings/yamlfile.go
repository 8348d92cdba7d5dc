package settings

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"EWI/internal/fsys"
)

// YAMLFile edits a flat-keyed settings file such as elasticsearch.yml.
// Keys are dotted names stored at the top level. Keys the installer does
// not set, and their comments, are kept as written by the operator.
type YAMLFile struct {
	path string
	fs   fsys.FileSystem
	doc  *yaml.Node
}

// LoadYAML reads path. A missing file yields an empty document.
func LoadYAML(fs fsys.FileSystem, path string) (*YAMLFile, error) {
	f := &YAMLFile{path: path, fs: fs}

	r, err := fs.Open(path)
	if os.IsNotExist(errors.Cause(err)) {
		f.doc = emptyDocument()
		return f, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		f.doc = emptyDocument()
		return f, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		if len(doc.Content) == 0 || (doc.Content[0].Kind == yaml.ScalarNode && doc.Content[0].Tag == "!!null") {
			f.doc = emptyDocument()
			f.doc.HeadComment = doc.HeadComment
			return f, nil
		}
		return nil, errors.Errorf("%s does not contain a mapping", path)
	}
	f.doc = &doc
	return f, nil
}

func emptyDocument() *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

func (f *YAMLFile) root() *yaml.Node {
	return f.doc.Content[0]
}

// Path returns the file location.
func (f *YAMLFile) Path() string {
	return f.path
}

// Get returns the scalar value of key.
func (f *YAMLFile) Get(key string) (string, bool) {
	root := f.root()
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key && root.Content[i+1].Kind == yaml.ScalarNode {
			return root.Content[i+1].Value, true
		}
	}
	return "", false
}

// GetList returns the sequence value of key.
func (f *YAMLFile) GetList(key string) ([]string, bool) {
	root := f.root()
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != key {
			continue
		}
		v := root.Content[i+1]
		switch v.Kind {
		case yaml.SequenceNode:
			out := make([]string, 0, len(v.Content))
			for _, item := range v.Content {
				out = append(out, item.Value)
			}
			return out, true
		case yaml.ScalarNode:
			return []string{v.Value}, true
		}
	}
	return nil, false
}

// Set assigns a scalar, replacing an existing value in place.
func (f *YAMLFile) Set(key, value string) {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if needsQuoting(value) {
		node.Style = yaml.DoubleQuotedStyle
	}
	f.put(key, node)
}

// SetBool assigns a boolean.
func (f *YAMLFile) SetBool(key string, value bool) {
	v := "false"
	if value {
		v = "true"
	}
	f.put(key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v})
}

// SetInt assigns an integer.
func (f *YAMLFile) SetInt(key string, value int) {
	f.put(key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(value)})
}

// SetList assigns a flow sequence. An empty list deletes the key.
func (f *YAMLFile) SetList(key string, values []string) {
	if len(values) == 0 {
		f.Delete(key)
		return
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle})
	}
	f.put(key, seq)
}

// Delete removes key if present.
func (f *YAMLFile) Delete(key string) {
	root := f.root()
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content = append(root.Content[:i], root.Content[i+2:]...)
			return
		}
	}
}

func (f *YAMLFile) put(key string, value *yaml.Node) {
	root := f.root()
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			old := root.Content[i+1]
			value.LineComment = old.LineComment
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// Bytes renders the document.
func (f *YAMLFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.doc); err != nil {
		return nil, errors.Wrap(err, "failed to encode settings")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode settings")
	}
	if len(f.root().Content) == 0 {
		return []byte{}, nil
	}
	return buf.Bytes(), nil
}

// Save writes the document back to its path.
func (f *YAMLFile) Save() error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	return writeFile(f.fs, f.path, data)
}

func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no", "on", "off", "null", "~":
		return true
	}
	return strings.ContainsAny(v, ":#{}[],&*!|>'\"%@`\\") || strings.TrimSpace(v) != v
}

func writeFile(fs fsys.FileSystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	w, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(w.Close(), "failed to close %s", path)
}
