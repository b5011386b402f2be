package statefile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "world.yaml")

	vars := map[string]string{
		"hp":     "120",
		"target": "orc",
	}
	arrays := map[string]map[string]string{
		"inventory": {"sword": "1", "potion": "3"},
	}

	if err := Save(path, FromMaps(vars, arrays)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	gotVars := doc.VariableMap()
	if gotVars["hp"] != "120" || gotVars["target"] != "orc" {
		t.Errorf("variables = %v, want %v", gotVars, vars)
	}
	gotArrays := doc.ArrayMap()
	if gotArrays["inventory"]["potion"] != "3" {
		t.Errorf("arrays = %v, want %v", gotArrays, arrays)
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if len(doc.Variables) != 0 || len(doc.Arrays) != 0 {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	vars := map[string]string{"z": "1", "a": "2", "m": "3"}

	if err := Save(a, FromMaps(vars, nil)); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := Save(b, FromMaps(vars, nil)); err != nil {
		t.Fatalf("Save b: %v", err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if string(da) != string(db) {
		t.Errorf("repeated saves differ:\n%s\nvs\n%s", da, db)
	}
}

func TestSaveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.yaml")
	if err := Save(path, FromMaps(map[string]string{"x": "old"}, nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(path, FromMaps(map[string]string{"x": "new"}, nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := doc.VariableMap()["x"]; got != "new" {
		t.Errorf("x = %q, want %q", got, "new")
	}
	// No leftover temp files.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}
