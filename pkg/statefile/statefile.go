// Package statefile reads and writes per-scope state documents: the
// variables and arrays a world or plugin persists between sessions.
// Documents are YAML, written atomically via a temp file and rename.
package statefile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document is a scope's persisted state.
type Document struct {
	Variables []Pair  `yaml:"variables,omitempty"`
	Arrays    []Array `yaml:"arrays,omitempty"`
}

// Pair is one name/value entry. Order within the document is preserved.
type Pair struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Array is a named nested key/value collection.
type Array struct {
	Name  string `yaml:"name"`
	Items []Pair `yaml:"items,omitempty"`
}

// FromMaps builds a document with variables and array entries sorted by
// name, so repeated saves of the same state are byte-identical.
func FromMaps(variables map[string]string, arrays map[string]map[string]string) *Document {
	doc := &Document{}
	for _, name := range sortedKeys(variables) {
		doc.Variables = append(doc.Variables, Pair{Name: name, Value: variables[name]})
	}
	arrayNames := make([]string, 0, len(arrays))
	for name := range arrays {
		arrayNames = append(arrayNames, name)
	}
	sort.Strings(arrayNames)
	for _, name := range arrayNames {
		arr := Array{Name: name}
		for _, key := range sortedKeys(arrays[name]) {
			arr.Items = append(arr.Items, Pair{Name: key, Value: arrays[name][key]})
		}
		doc.Arrays = append(doc.Arrays, arr)
	}
	return doc
}

// VariableMap returns the variables section as a map.
func (d *Document) VariableMap() map[string]string {
	out := make(map[string]string, len(d.Variables))
	for _, p := range d.Variables {
		out[p.Name] = p.Value
	}
	return out
}

// ArrayMap returns the arrays section as nested maps.
func (d *Document) ArrayMap() map[string]map[string]string {
	out := make(map[string]map[string]string, len(d.Arrays))
	for _, a := range d.Arrays {
		inner := make(map[string]string, len(a.Items))
		for _, it := range a.Items {
			inner[it.Name] = it.Value
		}
		out[a.Name] = inner
	}
	return out
}

// Save writes the document atomically: the content lands in a temp file
// in the target directory and is renamed over the destination.
func Save(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("statefile: encoding %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("statefile: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("statefile: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("statefile: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statefile: closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("statefile: renaming into %s: %w", path, err)
	}
	return nil
}

// Load reads a state document. A missing file is empty state, not an
// error.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statefile: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("statefile: parsing %s: %w", path, err)
	}
	return &doc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
