package schema

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// LoadDefinition reads a schema definition file.
func LoadDefinition(path string) (*Definition, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	var d Definition
	if err := k.Unmarshal("", &d); err != nil {
		return nil, fmt.Errorf("decoding schema %s: %w", path, err)
	}
	return &d, nil
}

// Load reads and builds the schema at path.
func Load(path string) (*Schema, error) {
	d, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(d)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Save writes d to path as YAML.
func Save(path string, d *Definition) error {
	data, err := yamlv3.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
