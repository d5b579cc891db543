package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleSpec describes one study content module: how it is shown and how
// many items a generation produces by default. The catalog can be
// overridden from modules.yaml in the config directory.
type ModuleSpec struct {
	Key          string `yaml:"key"`
	Title        string `yaml:"title"`
	DefaultCount int    `yaml:"default_count"`
	Expandable   bool   `yaml:"expandable"` // supports add-more
}

// Catalog is the ordered module set.
type Catalog []ModuleSpec

// DefaultCatalog returns the built-in module set.
func DefaultCatalog() Catalog {
	return Catalog{
		{Key: "brief", Title: "Opening Brief", DefaultCount: 1, Expandable: false},
		{Key: "topics", Title: "Revision Topics", DefaultCount: 8, Expandable: true},
		{Key: "mcqs", Title: "Multiple Choice Questions", DefaultCount: 10, Expandable: true},
		{Key: "rapidfire", Title: "Rapid Fire Q&A", DefaultCount: 12, Expandable: true},
	}
}

// LoadCatalog reads the module catalog from path, falling back to the
// built-in catalog when the file doesn't exist.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("failed to read module catalog: %w", err)
	}

	var file struct {
		Modules Catalog `yaml:"modules"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse module catalog: %w", err)
	}
	if len(file.Modules) == 0 {
		return DefaultCatalog(), nil
	}
	return file.Modules, nil
}

// SaveCatalog writes the catalog to path.
func SaveCatalog(path string, catalog Catalog) error {
	raw, err := yaml.Marshal(struct {
		Modules Catalog `yaml:"modules"`
	}{Modules: catalog})
	if err != nil {
		return fmt.Errorf("failed to encode module catalog: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}

// Find returns the spec for key, or nil when unknown.
func (c Catalog) Find(key string) *ModuleSpec {
	for i := range c {
		if c[i].Key == key {
			return &c[i]
		}
	}
	return nil
}

// Keys returns the catalog's module keys in order.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, spec := range c {
		keys = append(keys, spec.Key)
	}
	return keys
}
