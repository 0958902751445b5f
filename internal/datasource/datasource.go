// Package datasource builds root values for executions from documents on
// disk and from SQLite databases.
package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Mapping is the keyed lookup protocol the default resolver understands.
type Mapping interface {
	Lookup(key string) (any, bool)
}

// Document is a decoded YAML or JSON object.
type Document map[string]any

func (d Document) Lookup(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// LoadFile decodes the document at path. Files ending in .json are read as
// JSON; anything else as YAML.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeJSON(data)
	}
	return DecodeYAML(data)
}

func DecodeJSON(data []byte) (Document, error) {
	var doc map[string]any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return Document(doc), nil
}

func DecodeYAML(data []byte) (Document, error) {
	var raw any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return Document{}, nil
	}
	v, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be a mapping, got %T", raw)
	}
	return Document(v), nil
}

// normalize rewrites mappings with non-string keys so that every nested
// object supports keyed lookup.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	}
	return v
}

// Overlay looks keys up in each layer in turn.
type Overlay []Mapping

func (o Overlay) Lookup(key string) (any, bool) {
	for _, m := range o {
		if v, ok := m.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}
