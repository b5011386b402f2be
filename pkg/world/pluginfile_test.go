package world

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const samplePlugin = `plugin:
  name: Health Bar
  id: hb-0001
  author: Nick
  version: "1.0"
  purpose: Tracks hit points
  sequence: -5
  save_state: true

script: |
  import "world"
  func OnHP(name, line string, wild map[string]string) {
      world.SetVariable("hp", wild["1"])
  }

triggers:
  - name: hp
    match: "HP: *"
    send_to: output
    script: OnHP
    omit_from_output: true
    keep_evaluating: true

aliases:
  - name: rest
    match: rest
    contents: sit and rest
    send_to: world

timers:
  - name: keepalive
    interval: 60s
    contents: look
    send_to: world
    active_when_disconnected: true

variables:
  hp: "0"
`

func writePlugin(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPluginFromFile(t *testing.T) {
	w, _ := newTestWorld(t, WithStateDir(t.TempDir()))
	p, err := w.LoadPlugin(writePlugin(t, samplePlugin))
	if err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}
	if p.Scope.Name != "Health Bar" || p.Sequence != -5 || !p.SaveState {
		t.Errorf("metadata = %+v", p)
	}
	if _, err := w.Trigger("hb-0001", "hp"); err != nil {
		t.Error("pre-declared trigger missing")
	}
	if _, err := w.Alias("hb-0001", "rest"); err != nil {
		t.Error("pre-declared alias missing")
	}
	tm, err := w.Timer("hb-0001", "keepalive")
	if err != nil {
		t.Fatal("pre-declared timer missing")
	}
	if tm.Interval != 60*time.Second {
		t.Errorf("interval = %v", tm.Interval)
	}
	if v, _ := w.GetVariable("hb-0001", "hp"); v != "0" {
		t.Errorf("hp = %q", v)
	}

	// The declared trigger calls into the plugin's script.
	res := w.ProcessLine("HP: 88")
	if !res.Handled || !res.Omit {
		t.Errorf("result = %+v", res)
	}
	if v, _ := w.GetVariable("hb-0001", "hp"); v != "88" {
		t.Errorf("hp after trigger = %q", v)
	}
}

func TestLoadPluginRejectsDuplicateID(t *testing.T) {
	w, _ := newTestWorld(t, WithStateDir(t.TempDir()))
	if _, err := w.LoadPlugin(writePlugin(t, samplePlugin)); err != nil {
		t.Fatal(err)
	}
	if _, err := w.LoadPlugin(writePlugin(t, samplePlugin)); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate load: %v", err)
	}
}

func TestLoadPluginRejectsMissingIdentity(t *testing.T) {
	w, _ := newTestWorld(t)
	_, err := w.LoadPlugin(writePlugin(t, "plugin:\n  name: anonymous\n"))
	if err == nil {
		t.Error("plugin without an id must be rejected")
	}
}

func TestLoadPluginBadSendTo(t *testing.T) {
	w, _ := newTestWorld(t)
	_, err := w.LoadPlugin(writePlugin(t, `plugin:
  name: broken
  id: b-1
triggers:
  - name: t
    match: x
    send_to: nowhere
`))
	if err == nil {
		t.Error("unknown destination name must be rejected")
	}
}

func TestUnloadPluginSavesStateAndTearsDown(t *testing.T) {
	stateDir := t.TempDir()
	w, _ := newTestWorld(t, WithStateDir(stateDir))
	p, err := w.LoadPlugin(writePlugin(t, samplePlugin))
	if err != nil {
		t.Fatal(err)
	}
	w.SetVariable("hb-0001", "hp", "55")

	if err := w.UnloadPlugin("hb-0001"); err != nil {
		t.Fatalf("UnloadPlugin: %v", err)
	}
	if len(w.Plugins()) != 0 {
		t.Error("plugin still listed after unload")
	}
	if p.Engine() != nil {
		t.Error("interpreter should be torn down")
	}

	// Reloading restores the saved variable over the declared default.
	q, err := w.LoadPlugin(writePlugin(t, samplePlugin))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := q.Scope.Variable("hp"); v != "55" {
		t.Errorf("hp after reload = %q, want saved value", v)
	}
}
