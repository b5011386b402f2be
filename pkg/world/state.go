package world

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crystal-mush/gotinyclient/pkg/statefile"
)

// statePath places a scope's state document under the state directory,
// named by plugin ID so renaming a plugin keeps its state.
func (w *World) statePath(p *Plugin) string {
	dir := w.stateDir
	if dir == "" {
		dir = "state"
	}
	if p == nil {
		return filepath.Join(dir, "world-"+sanitizeName(w.Scope.Name)+".yaml")
	}
	return filepath.Join(dir, "plugin-"+sanitizeName(p.ID)+".yaml")
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// SaveWorldState persists the world's variables and arrays.
func (w *World) SaveWorldState() error {
	return w.saveState(nil)
}

// SavePluginState persists a plugin's variables and arrays, giving its
// save-state callback a chance to update them first.
func (w *World) SavePluginState(p *Plugin) error {
	return w.saveState(p)
}

func (w *World) saveState(p *Plugin) error {
	w.dispatch(p, cbSaveState)
	sc := w.scopeOf(p)
	doc := statefile.FromMaps(sc.VariableMap(), sc.ArrayMap())
	if err := statefile.Save(w.statePath(p), doc); err != nil {
		return fmt.Errorf("state of %s: %w", scopeName(p), err)
	}
	return nil
}

// SaveAllState persists the world plus every plugin that asked for state
// saving. Failures are collected; scopes continue on their in-memory
// state either way.
func (w *World) SaveAllState() error {
	var firstErr error
	if err := w.SaveWorldState(); err != nil {
		firstErr = err
	}
	for _, p := range w.plugins {
		if !p.SaveState {
			continue
		}
		if err := w.SavePluginState(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadWorldState restores the world's variables and arrays. A missing
// document leaves the scope empty.
func (w *World) LoadWorldState() error {
	return w.loadState(nil)
}

// LoadPluginState restores a plugin's variables and arrays.
func (w *World) LoadPluginState(p *Plugin) error {
	return w.loadState(p)
}

func (w *World) loadState(p *Plugin) error {
	doc, err := statefile.Load(w.statePath(p))
	if err != nil {
		return fmt.Errorf("state of %s: %w", scopeName(p), err)
	}
	// Saved values overlay whatever the scope declared, so a plugin's
	// default variables survive a first run with no state file.
	sc := w.scopeOf(p)
	for _, pair := range doc.Variables {
		if err := sc.SetVariable(pair.Name, pair.Value); err != nil {
			return fmt.Errorf("state of %s: variable %q: %w", scopeName(p), pair.Name, err)
		}
	}
	for _, arr := range doc.Arrays {
		for _, item := range arr.Items {
			sc.SetArrayItem(arr.Name, item.Name, item.Value)
		}
	}
	return nil
}
