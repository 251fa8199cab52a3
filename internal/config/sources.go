package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LJTian/GovNewsHub/internal/collector"
)

//go:embed sources.yaml
var defaultSources []byte

type sourceFile struct {
	Sources []collector.SourceConfig `yaml:"sources"`
}

// LoadSources reads the source catalog from path, or the built-in catalog
// when path is empty.
func LoadSources(path string) ([]collector.SourceConfig, error) {
	raw := defaultSources
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read sources: %w", err)
		}
		raw = b
	}
	return ParseSources(raw)
}

// ParseSources decodes and validates a YAML source catalog. Unknown keys are
// rejected so a typo in a selector name does not silently disable a field.
func ParseSources(raw []byte) ([]collector.SourceConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f sourceFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("config: decode sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("config: no sources configured")
	}

	names := make(map[string]bool, len(f.Sources))
	tables := make(map[string]string, len(f.Sources))
	for _, s := range f.Sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("config: duplicate source %q", s.Name)
		}
		names[s.Name] = true
		if other, ok := tables[s.TableName()]; ok {
			return nil, fmt.Errorf("config: sources %q and %q write the same table %q", other, s.Name, s.TableName())
		}
		tables[s.TableName()] = s.Name
	}
	return f.Sources, nil
}
