package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config describes where a root value comes from.
//
//	data: root.yaml
//	sqlite:
//	  dsn: app.db
//	  queries:
//	    viewer: {sql: "SELECT name FROM users LIMIT 1"}
type Config struct {
	Data   string        `yaml:"data,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

type SQLiteConfig struct {
	DSN     string           `yaml:"dsn"`
	Queries map[string]Query `yaml:"queries"`
}

// LoadConfig reads a config file. Relative paths in it are resolved against
// the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	base := filepath.Dir(path)
	if cfg.Data != "" && !filepath.IsAbs(cfg.Data) {
		cfg.Data = filepath.Join(base, cfg.Data)
	}
	if cfg.SQLite != nil {
		if cfg.SQLite.DSN == "" {
			return nil, errors.New("sqlite: dsn is required")
		}
		if cfg.SQLite.DSN != ":memory:" && !filepath.IsAbs(cfg.SQLite.DSN) {
			cfg.SQLite.DSN = filepath.Join(base, cfg.SQLite.DSN)
		}
	}
	return &cfg, nil
}

// Open builds the root value cfg describes. SQLite queries shadow document
// keys of the same name. The returned close function releases the database.
func Open(ctx context.Context, cfg *Config) (Mapping, func() error, error) {
	var layers Overlay
	closeFn := func() error { return nil }
	if cfg.SQLite != nil {
		src, err := OpenSQLite(ctx, cfg.SQLite.DSN, cfg.SQLite.Queries)
		if err != nil {
			return nil, nil, err
		}
		layers = append(layers, src)
		closeFn = src.Close
	}
	if cfg.Data != "" {
		doc, err := LoadFile(cfg.Data)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		layers = append(layers, doc)
	}
	return layers, closeFn, nil
}
