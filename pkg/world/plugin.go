package world

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// Cross-scope call and plugin lookup errors.
var (
	ErrNoSuchPlugin   = errors.New("no such plugin")
	ErrPluginDisabled = errors.New("plugin disabled")
	ErrNoSuchRoutine  = errors.New("no such routine")
	ErrRoutineFailed  = errors.New("plugin routine failed")
)

// Lifecycle callback names dispatched into scope interpreters.
const (
	cbInstall      = "OnPluginInstall"
	cbClose        = "OnPluginClose"
	cbEnable       = "OnPluginEnable"
	cbDisable      = "OnPluginDisable"
	cbConnect      = "OnPluginConnect"
	cbDisconnect   = "OnPluginDisconnect"
	cbLineReceived = "OnPluginLineReceived"
	cbSend         = "OnPluginSend"
	cbTick         = "OnPluginTick"
	cbSaveState    = "OnPluginSaveState"
	cbBroadcast    = "OnPluginBroadcast"
)

// Plugin is a loaded scope: its own rule set and interpreter plus the
// metadata and evaluation sequence that orders it against the world.
// Negative sequences evaluate before the world, non-negative after.
type Plugin struct {
	Scope

	ID      string
	Author  string
	Version string
	Purpose string

	Sequence  int
	Enabled   bool
	SaveState bool

	FilePath string
}

// findPlugin resolves a plugin by ID, falling back to name.
func (w *World) findPlugin(key string) *Plugin {
	if p, ok := w.pluginsByID[key]; ok {
		return p
	}
	for _, p := range w.plugins {
		if p.Scope.Name == key {
			return p
		}
	}
	return nil
}

// Plugins returns the loaded plugins in evaluation order.
func (w *World) Plugins() []*Plugin {
	return w.plugins
}

// addPlugin inserts a constructed plugin into the evaluation order and
// dispatches its install callbacks.
func (w *World) addPlugin(p *Plugin) error {
	if p.ID == "" || p.Scope.Name == "" {
		return errors.New("plugin needs a name and an id")
	}
	if w.findPlugin(p.ID) != nil {
		return fmt.Errorf("plugin %s: %w", p.ID, ErrDuplicateName)
	}
	w.plugins = append(w.plugins, p)
	w.pluginsByID[p.ID] = p
	w.sortPlugins()
	w.metrics.pluginLoaded(len(w.plugins))

	w.dispatch(p, cbInstall)
	if p.Enabled {
		w.dispatch(p, cbEnable)
		if w.transport != nil && w.transport.Connected() {
			w.dispatch(p, cbConnect)
		}
	}
	return nil
}

// UnloadPlugin saves the plugin's state if it asked for that, dispatches
// its close callback and tears down everything it owns, including its
// interpreter.
func (w *World) UnloadPlugin(key string) error {
	p := w.findPlugin(key)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchPlugin, key)
	}
	if p.SaveState {
		if err := w.SavePluginState(p); err != nil {
			log.Printf("PLUGIN: saving state of %s: %v", p.Scope.Name, err)
		}
	}
	w.dispatch(p, cbClose)

	delete(w.pluginsByID, p.ID)
	for i, q := range w.plugins {
		if q == p {
			w.plugins = append(w.plugins[:i], w.plugins[i+1:]...)
			break
		}
	}
	if p.engine != nil {
		p.engine.Close()
		p.engine = nil
	}
	w.metrics.pluginLoaded(len(w.plugins))
	return nil
}

// EnablePlugin flips a plugin's enabled flag, dispatching the enable or
// disable callback on an actual change.
func (w *World) EnablePlugin(key string, enabled bool) error {
	p := w.findPlugin(key)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchPlugin, key)
	}
	if p.Enabled == enabled {
		return nil
	}
	p.Enabled = enabled
	if enabled {
		w.dispatch(p, cbEnable)
	} else {
		w.dispatch(p, cbDisable)
	}
	return nil
}

// sortPlugins keeps the evaluation order: sequence ascending, then name
// for determinism between equal sequences.
func (w *World) sortPlugins() {
	sort.SliceStable(w.plugins, func(i, j int) bool {
		a, b := w.plugins[i], w.plugins[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.Scope.Name < b.Scope.Name
	})
}

// scopeName names a scope for diagnostics: "world" or the plugin name.
func scopeName(p *Plugin) string {
	if p == nil {
		return "world"
	}
	return "plugin " + p.Scope.Name
}

// CallPlugin invokes a routine in another scope's interpreter. Only nil,
// boolean, number and text values may cross the boundary in either
// direction. During the call the callee observes the caller's identity;
// the previous identity is restored afterwards, so calls nest.
func (w *World) CallPlugin(key, routine string, args ...scripting.Value) ([]scripting.Value, error) {
	p := w.findPlugin(key)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPlugin, key)
	}
	if !p.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrPluginDisabled, p.Scope.Name)
	}
	if p.engine == nil {
		return nil, fmt.Errorf("%w: %s has no interpreter", ErrPluginDisabled, p.Scope.Name)
	}
	if err := scripting.CheckScalars(args); err != nil {
		return nil, err
	}
	if !p.engine.Find(routine) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoSuchRoutine, routine, p.Scope.Name)
	}

	var results []scripting.Value
	var err error
	w.withScope(p, func() {
		results, err = p.engine.Call(routine, args)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", ErrRoutineFailed, routine, p.Scope.Name, err)
	}
	for i, r := range results {
		if !r.IsScalar() {
			return nil, &scripting.UnsupportedTypeError{Position: i + 1, Kind: r.Kind()}
		}
	}
	return results, nil
}

// BroadcastPlugin delivers a message code and text to every enabled scope
// except the sender, via its OnPluginBroadcast callback. Receiver errors
// are logged and do not halt delivery. It returns how many scopes
// received the message.
func (w *World) BroadcastPlugin(message int, text string) int {
	sender := w.currentPlugin
	senderID, senderName := "", "world"
	if sender != nil {
		senderID, senderName = sender.ID, sender.Scope.Name
	}
	args := []scripting.Value{
		scripting.MakeNumber(float64(message)),
		scripting.MakeText(senderID),
		scripting.MakeText(senderName),
		scripting.MakeText(text),
	}

	count := 0
	if sender != nil {
		if _, ok := w.dispatch(nil, cbBroadcast, args...); ok {
			count++
		}
	}
	for _, p := range w.plugins {
		if p == sender || !p.Enabled {
			continue
		}
		if _, ok := w.dispatch(p, cbBroadcast, args...); ok {
			count++
		}
	}
	return count
}

// withScope runs fn with p as the active scope, restoring the previous
// one on every exit path.
func (w *World) withScope(p *Plugin, fn func()) {
	prev := w.currentPlugin
	w.currentPlugin = p
	defer func() { w.currentPlugin = prev }()
	fn()
}

// scopeOf returns the scope container behind p, which is the world scope
// when p is nil.
func (w *World) scopeOf(p *Plugin) *Scope {
	if p == nil {
		return &w.Scope
	}
	return &p.Scope
}

// scopeFor resolves a scope selector used by the public API: empty means
// the world, anything else a plugin ID or name.
func (w *World) scopeFor(key string) (*Plugin, *Scope, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &w.Scope, nil
	}
	p := w.findPlugin(key)
	if p == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoSuchPlugin, key)
	}
	return p, &p.Scope, nil
}
