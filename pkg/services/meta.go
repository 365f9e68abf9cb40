package services

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// MetaFileName is the per-directory sidecar mapping content keys to titles.
const MetaFileName = "_meta.json"

const metaIndent = "    "

// metaFile is a _meta.json object that remembers its key order.
type metaFile struct {
	keys   []string
	values map[string]json.RawMessage
}

func newMeta() *metaFile {
	return &metaFile{values: map[string]json.RawMessage{}}
}

// Set stores title under key, appending key if it is new.
func (m *metaFile) Set(key, title string) {
	raw, _ := json.MarshalNoEscape(title)
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = raw
}

// Title returns the string stored under key.
func (m *metaFile) Title(key string) (string, bool) {
	raw, ok := m.values[key]
	if !ok {
		return "", false
	}
	var title string
	if err := json.Unmarshal(raw, &title); err != nil {
		return "", false
	}
	return title, true
}

func parseMeta(data []byte) (*metaFile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return newMeta(), nil
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetaFileName, err)
	}
	return &metaFile{keys: metaKeyOrder(data, values), values: values}, nil
}

// metaKeyOrder recovers the document order of the object's keys. JSON is
// YAML, and yaml.v3 nodes keep mapping keys in source order.
func metaKeyOrder(data []byte, values map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode {
		m := doc.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			k := m.Content[i].Value
			if _, ok := values[k]; ok && !seen[k] {
				keys = append(keys, k)
				seen[k] = true
			}
		}
	}

	var rest []string
	for k := range values {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// encode writes the object with four space indentation and a trailing newline.
func (m *metaFile) encode() ([]byte, error) {
	if len(m.keys) == 0 {
		return []byte("{}\n"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range m.keys {
		key, err := json.MarshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		var val bytes.Buffer
		if err := json.Indent(&val, m.values[k], metaIndent, metaIndent); err != nil {
			return nil, fmt.Errorf("encode %s key %q: %w", MetaFileName, k, err)
		}
		buf.WriteString(metaIndent)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val.Bytes())
		if i < len(m.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func readMeta(path string) (*metaFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return newMeta(), nil
	}
	if err != nil {
		return nil, err
	}
	return parseMeta(data)
}

func writeMeta(path string, m *metaFile) error {
	data, err := m.encode()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}

// UpdateMeta sets key to title in the _meta.json of the directory that
// contains p, creating the sidecar when it does not exist yet. The sidecar
// is an annotation only; key is not checked against the directory.
func (s *Service) UpdateMeta(p, key, title string) error {
	if err := s.guard(); err != nil {
		return err
	}
	full, err := SafeJoin(s.root, p)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key required", ErrBadRequest)
	}

	dir := filepath.Dir(full)
	if !isDir(dir) {
		return fmt.Errorf("directory of %s: %w", p, ErrNotFound)
	}
	metaPath := filepath.Join(dir, MetaFileName)
	meta, err := readMeta(metaPath)
	if err != nil {
		return err
	}
	meta.Set(key, title)
	if err := writeMeta(metaPath, meta); err != nil {
		return fmt.Errorf("write %s: %w", metaPath, err)
	}
	s.log.Info().Str("path", p).Str("key", key).Str("title", title).Msg("meta updated")
	return nil
}
