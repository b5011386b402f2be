package world

import (
	"io"
	"log"
	"time"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// Transport is the network collaborator: it carries bytes to the MUD and
// knows whether the session is connected. Received lines are delivered to
// the engine by the caller, not through this interface.
type Transport interface {
	// Send queues data for delivery.
	Send(data []byte) error
	// SendNow bypasses any queue.
	SendNow(data []byte) error
	// Connected reports whether the session is up.
	Connected() bool
}

// Result accumulates what one evaluation pass or tick produced. Output
// and Input are returned to the caller rather than side-effected, so the
// display layer decides what to do with them.
type Result struct {
	// Handled is true when any rule matched, even if scanning continued.
	Handled bool
	// Omit asks the caller not to display the line that triggered the pass.
	Omit bool
	// OmitLog asks the caller not to log it.
	OmitLog bool
	// Output is text routed to the output stream during the pass.
	Output []string
	// Input is text routed to the pending command input.
	Input []string
}

func (r *Result) note(text string)    { r.Output = append(r.Output, text) }
func (r *Result) command(text string) { r.Input = append(r.Input, text) }

// maxRecentLines bounds the window multi-line triggers can match over.
const maxRecentLines = 100

// World is the root scope and the engine around it: it owns the loaded
// plugins, drives evaluation passes and timer ticks, and routes actions.
// All methods must be called from one goroutine.
type World struct {
	Scope

	plugins     []*Plugin
	pluginsByID map[string]*Plugin

	transport Transport
	logw      io.Writer // session log destination, nil to discard
	metrics   *Metrics

	// outputSink receives output text produced outside any evaluation
	// pass, for example by a script run at plugin load time.
	outputSink func(string)

	// currentPlugin is the active scope pointer: nil when the world is
	// active. Saved and restored around every cross-scope call.
	currentPlugin *Plugin

	stopTriggers    bool
	stopTriggersAll bool

	// res is the result of the pass in flight; nested passes share it.
	res *Result

	executeDepth int

	recentLines []string
	history     []string

	stateDir string

	now func() time.Time
}

// Option configures a World at construction time.
type Option func(*World)

// WithTransport wires the network collaborator.
func WithTransport(t Transport) Option {
	return func(w *World) { w.transport = t }
}

// WithLog sets the session log destination used by log-routed actions.
func WithLog(lw io.Writer) Option {
	return func(w *World) { w.logw = lw }
}

// WithMetrics wires engine metrics.
func WithMetrics(m *Metrics) Option {
	return func(w *World) { w.metrics = m }
}

// WithOutputSink receives output text produced outside evaluation passes.
func WithOutputSink(fn func(string)) Option {
	return func(w *World) { w.outputSink = fn }
}

// WithStateDir sets where per-scope state documents are kept.
func WithStateDir(dir string) Option {
	return func(w *World) { w.stateDir = dir }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *World) { w.now = now }
}

// New creates a world with its own interpreter and no plugins.
func New(name string, opts ...Option) (*World, error) {
	w := &World{
		Scope:       *newScope(name),
		pluginsByID: make(map[string]*Plugin),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	engine, err := scripting.NewYaegi(w.exportsFor(nil))
	if err != nil {
		return nil, err
	}
	w.Scope.engine = engine
	return w, nil
}

// Close unloads every plugin and tears down the world interpreter.
func (w *World) Close() {
	for len(w.plugins) > 0 {
		if err := w.UnloadPlugin(w.plugins[0].ID); err != nil {
			log.Printf("WORLD: unloading %s: %v", w.plugins[0].Scope.Name, err)
			break
		}
	}
	if w.Scope.engine != nil {
		w.Scope.engine.Close()
		w.Scope.engine = nil
	}
}

// Connected reports the transport state; no transport means offline.
func (w *World) Connected() bool {
	return w.transport != nil && w.transport.Connected()
}

// NotifyConnect dispatches the connect callback to every enabled scope.
func (w *World) NotifyConnect() {
	w.metrics.connected(true)
	w.dispatch(nil, cbConnect)
	for _, p := range w.plugins {
		if p.Enabled {
			w.dispatch(p, cbConnect)
		}
	}
}

// NotifyDisconnect dispatches the disconnect callback to every enabled
// scope.
func (w *World) NotifyDisconnect() {
	w.metrics.connected(false)
	w.dispatch(nil, cbDisconnect)
	for _, p := range w.plugins {
		if p.Enabled {
			w.dispatch(p, cbDisconnect)
		}
	}
}

// StopEvaluating short-circuits the rest of the current evaluation pass.
// With all set, plugin scopes are skipped for the remainder of the pass
// as well; without it only the scope scan in progress stops.
func (w *World) StopEvaluating(all bool) {
	w.stopTriggers = true
	if all {
		w.stopTriggersAll = true
	}
}

// History returns the typed-command history, oldest first.
func (w *World) History() []string {
	return w.history
}

// beginPass opens a result accumulator, reusing the in-flight one for
// nested passes. done must be called with the same values.
func (w *World) beginPass() (res *Result, nested bool) {
	if w.res != nil {
		return w.res, true
	}
	w.res = &Result{}
	w.stopTriggers = false
	w.stopTriggersAll = false
	return w.res, false
}

func (w *World) endPass(nested bool) {
	if !nested {
		w.res = nil
	}
}

// AddTrigger adds a trigger to the world or, with a plugin ID or name as
// scope, to that plugin.
func (w *World) AddTrigger(scope string, t *automation.Trigger) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.AddTrigger(t)
}

// DeleteTrigger removes a trigger from the selected scope.
func (w *World) DeleteTrigger(scope, name string) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.DeleteTrigger(name)
}

// EnableTrigger flips a trigger in the selected scope.
func (w *World) EnableTrigger(scope, name string, enabled bool) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.EnableTrigger(name, enabled)
}

// Trigger looks a trigger up in the selected scope.
func (w *World) Trigger(scope, name string) (*automation.Trigger, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.Trigger(name)
}

// TriggerList returns the trigger names of the selected scope.
func (w *World) TriggerList(scope string) ([]string, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.TriggerNames(), nil
}

// AddAlias adds an alias to the selected scope.
func (w *World) AddAlias(scope string, a *automation.Alias) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.AddAlias(a)
}

// DeleteAlias removes an alias from the selected scope.
func (w *World) DeleteAlias(scope, name string) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.DeleteAlias(name)
}

// EnableAlias flips an alias in the selected scope.
func (w *World) EnableAlias(scope, name string, enabled bool) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.EnableAlias(name, enabled)
}

// Alias looks an alias up in the selected scope.
func (w *World) Alias(scope, name string) (*automation.Alias, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.Alias(name)
}

// AliasList returns the alias names of the selected scope.
func (w *World) AliasList(scope string) ([]string, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.AliasNames(), nil
}

// AddTimer adds a timer to the selected scope and schedules its first
// fire from the current time.
func (w *World) AddTimer(scope string, t *automation.Timer) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	if err := sc.AddTimer(t); err != nil {
		return err
	}
	t.Reset(w.now())
	return nil
}

// DeleteTimer removes a timer from the selected scope.
func (w *World) DeleteTimer(scope, name string) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.DeleteTimer(name)
}

// EnableTimer flips a timer in the selected scope. Re-enabling resets its
// schedule so it does not fire immediately for missed periods.
func (w *World) EnableTimer(scope, name string, enabled bool) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	t, err := sc.Timer(name)
	if err != nil {
		return err
	}
	if enabled && !t.Enabled {
		t.Reset(w.now())
	}
	t.Enabled = enabled
	return nil
}

// Timer looks a timer up in the selected scope.
func (w *World) Timer(scope, name string) (*automation.Timer, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.Timer(name)
}

// TimerList returns the timer names of the selected scope.
func (w *World) TimerList(scope string) ([]string, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.TimerNames(), nil
}

// SetVariable assigns a variable in the selected scope.
func (w *World) SetVariable(scope, name, contents string) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.SetVariable(name, contents)
}

// GetVariable reads a variable from the selected scope.
func (w *World) GetVariable(scope, name string) (string, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return "", err
	}
	return sc.Variable(name)
}

// DeleteVariable removes a variable from the selected scope.
func (w *World) DeleteVariable(scope, name string) error {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return err
	}
	return sc.DeleteVariable(name)
}

// VariableList returns the variable names of the selected scope.
func (w *World) VariableList(scope string) ([]string, error) {
	_, sc, err := w.scopeFor(scope)
	if err != nil {
		return nil, err
	}
	return sc.VariableNames(), nil
}
