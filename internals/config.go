package internals

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, loaded once at startup.
// AutoSync gates whether change-feed events reach the registry at all;
// AutoRefresh is the default refresh behavior of bulk calls when the
// caller sets none.
type Config struct {
	AutoSync    bool `yaml:"auto_sync"`
	AutoRefresh bool `yaml:"auto_refresh"`

	DefaultIn  string                    `yaml:"default_in"`
	In         map[string]map[string]any `yaml:"in"`
	DefaultOut []string                  `yaml:"default_out"`
	Out        map[string]map[string]any `yaml:"out"`

	Mappings []*MappingConfig `yaml:"mappings"`
}

// MappingConfig declares one table-backed document: which table feeds
// which index, how rows are referenced and which related tables force a
// re-derivation.
type MappingConfig struct {
	Index          string   `yaml:"index"`
	Table          string   `yaml:"table"`
	ReferenceField string   `yaml:"reference_field"`
	ChunkSize      int      `yaml:"chunk_size"`
	IgnoreSignals  bool     `yaml:"ignore_signals"`
	AutoRefresh    bool     `yaml:"auto_refresh"`
	In             string   `yaml:"in"`
	Out            []string `yaml:"out"`

	Settings   map[string]any `yaml:"settings"`
	EsMappings map[string]any `yaml:"es_mappings"`

	Relations []*RelationConfig `yaml:"relations"`
}

// RelationConfig declares that rows of Table feed into the mapped
// document: when a row of Table changes, every mapped row whose
// ForeignKey column points at it is re-indexed.
type RelationConfig struct {
	Table          string `yaml:"table"`
	ReferenceField string `yaml:"reference_field"`
	ForeignKey     string `yaml:"foreign_key"`
}

func (config *Config) LoadFromYaml(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot find config file %s - UID %d", path, os.Getuid())
	}
	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return fmt.Errorf("cannot parse config file %s", path)
	}
	return nil
}
