package easydb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlOptions mirrors Options' user-settable fields in YAML-friendly
// form; SQLLogger is a func value and cannot be decoded from config.
type yamlOptions struct {
	DisableAutoMigrate bool `yaml:"disableAutoMigrate"`
	AutoDropColumns    bool `yaml:"autoDropColumns"`
	MaxReadConns       int  `yaml:"maxReadConns"`
	BusyTimeoutMillis  int  `yaml:"busyTimeoutMillis"`
}

// LoadOptionsYAML reads Options from a YAML config file, for deployments
// that bootstrap Open from a config file rather than constructing
// Options in code. SQLLogger is not configurable this way and stays nil
// (NopLogger applies).
func LoadOptionsYAML(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("easydb: reading options file %s: %w", path, err)
	}
	var y yamlOptions
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return Options{}, fmt.Errorf("easydb: parsing options file %s: %w", path, err)
	}
	return Options{
		DisableAutoMigrate: y.DisableAutoMigrate,
		AutoDropColumns:    y.AutoDropColumns,
		MaxReadConns:       y.MaxReadConns,
		BusyTimeoutMillis:  y.BusyTimeoutMillis,
	}, nil
}
