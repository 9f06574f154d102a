// Package catalog resolves stable exercise identifiers to display metadata.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

type Exercise struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	RestSeconds int    `yaml:"rest_seconds" json:"restSeconds"`
}

type file struct {
	Exercises []Exercise `yaml:"exercises"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	byID map[string]Exercise
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalog document. Unknown fields, duplicate ids and
// negative rest durations are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Exercise, len(doc.Exercises))}
	for i, ex := range doc.Exercises {
		if ex.ID == "" {
			return nil, fmt.Errorf("exercises[%d]: id is required", i)
		}
		if ex.RestSeconds < 0 {
			return nil, fmt.Errorf("exercise %q: rest_seconds must not be negative", ex.ID)
		}
		if _, dup := c.byID[ex.ID]; dup {
			return nil, fmt.Errorf("exercise %q: duplicate id", ex.ID)
		}
		if ex.Name == "" {
			ex.Name = ex.ID
		}
		c.byID[ex.ID] = ex
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

// List returns every exercise sorted by name.
func (c *Catalog) List() []Exercise {
	out := make([]Exercise, 0, len(c.byID))
	for _, ex := range c.byID {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
