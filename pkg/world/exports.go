package world

import (
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// exportsFor builds the host API a scope's scripts see under
// `import "world"`. Every function is closed over the owning scope, so a
// plugin script reads and mutates only its own collections; other scopes
// are reachable only through CallPlugin and BroadcastPlugin.
func (w *World) exportsFor(p *Plugin) interp.Exports {
	sc := func() *Scope { return w.scopeOf(p) }

	api := map[string]reflect.Value{
		"Send": reflect.ValueOf(func(text string) {
			w.sendLine(text, false, "script of "+scopeName(p))
		}),
		"SendImmediate": reflect.ValueOf(func(text string) {
			w.sendLine(text, true, "script of "+scopeName(p))
		}),
		"Note": reflect.ValueOf(func(text string) {
			w.note(text, nil)
		}),
		"Execute": reflect.ValueOf(func(command string) bool {
			if w.executeDepth >= maxExecuteDepth {
				return false
			}
			w.executeDepth++
			res := w.Execute(command)
			w.executeDepth--
			return res.Handled
		}),
		"IsConnected": reflect.ValueOf(func() bool {
			return w.Connected()
		}),
		"StopEvaluatingTriggers": reflect.ValueOf(func(allPlugins bool) {
			w.StopEvaluating(allPlugins)
		}),

		"GetVariable": reflect.ValueOf(func(name string) string {
			v, _ := sc().Variable(name)
			return v
		}),
		"SetVariable": reflect.ValueOf(func(name, contents string) error {
			return sc().SetVariable(name, contents)
		}),
		"DeleteVariable": reflect.ValueOf(func(name string) error {
			return sc().DeleteVariable(name)
		}),
		"VariableList": reflect.ValueOf(func() []string {
			return sc().VariableNames()
		}),

		"SetArrayItem": reflect.ValueOf(func(array, key, value string) {
			sc().SetArrayItem(array, key, value)
		}),
		"GetArrayItem": reflect.ValueOf(func(array, key string) (string, bool) {
			return sc().ArrayItem(array, key)
		}),
		"DeleteArrayItem": reflect.ValueOf(func(array, key string) bool {
			return sc().DeleteArrayItem(array, key)
		}),
		"DeleteArray": reflect.ValueOf(func(array string) bool {
			return sc().DeleteArray(array)
		}),

		"AddTrigger": reflect.ValueOf(func(name, match, contents string, regexp bool, script string) error {
			return sc().AddTrigger(&automation.Trigger{Rule: automation.Rule{
				Name:     name,
				Pattern:  automation.Pattern{Text: match, Regexp: regexp},
				Contents: contents,
				SendTo:   automation.SendToWorld,
				Script:   script,
				Sequence: automation.DefaultSequence,
				Enabled:  true,
			}})
		}),
		"DeleteTrigger": reflect.ValueOf(func(name string) error {
			return sc().DeleteTrigger(name)
		}),
		"EnableTrigger": reflect.ValueOf(func(name string, enabled bool) error {
			return sc().EnableTrigger(name, enabled)
		}),
		"EnableTriggerGroup": reflect.ValueOf(func(group string, enabled bool) int {
			return sc().EnableTriggerGroup(group, enabled)
		}),

		"AddAlias": reflect.ValueOf(func(name, match, contents string, regexp bool, script string) error {
			return sc().AddAlias(&automation.Alias{Rule: automation.Rule{
				Name:     name,
				Pattern:  automation.Pattern{Text: match, Regexp: regexp},
				Contents: contents,
				SendTo:   automation.SendToWorld,
				Script:   script,
				Sequence: automation.DefaultSequence,
				Enabled:  true,
			}})
		}),
		"DeleteAlias": reflect.ValueOf(func(name string) error {
			return sc().DeleteAlias(name)
		}),
		"EnableAlias": reflect.ValueOf(func(name string, enabled bool) error {
			return sc().EnableAlias(name, enabled)
		}),
		"EnableAliasGroup": reflect.ValueOf(func(group string, enabled bool) int {
			return sc().EnableAliasGroup(group, enabled)
		}),

		"AddTimer": reflect.ValueOf(func(name string, seconds float64, contents, script string, oneShot bool) error {
			t := &automation.Timer{
				Name:     name,
				Kind:     automation.TimerInterval,
				Interval: time.Duration(seconds * float64(time.Second)),
				Contents: contents,
				SendTo:   automation.SendToWorld,
				Script:   script,
				Enabled:  true,
				OneShot:  oneShot,
			}
			if err := sc().AddTimer(t); err != nil {
				return err
			}
			t.Reset(w.now())
			return nil
		}),
		"DeleteTimer": reflect.ValueOf(func(name string) error {
			return sc().DeleteTimer(name)
		}),
		"EnableTimer": reflect.ValueOf(func(name string, enabled bool) error {
			return sc().EnableTimer(name, enabled)
		}),
		"EnableTimerGroup": reflect.ValueOf(func(group string, enabled bool) int {
			return sc().EnableTimerGroup(group, enabled)
		}),
		"DeleteTemporary": reflect.ValueOf(func() int {
			return sc().DeleteTemporary()
		}),

		"GetPluginID": reflect.ValueOf(func() string {
			if p == nil {
				return ""
			}
			return p.ID
		}),
		"GetPluginName": reflect.ValueOf(func() string {
			if p == nil {
				return w.Scope.Name
			}
			return p.Scope.Name
		}),
		"PluginList": reflect.ValueOf(func() []string {
			ids := make([]string, len(w.plugins))
			for i, q := range w.plugins {
				ids[i] = q.ID
			}
			return ids
		}),

		"CallPlugin": reflect.ValueOf(func(id, routine string, args ...any) ([]any, error) {
			vals := make([]scripting.Value, len(args))
			for i, a := range args {
				v, err := scripting.FromAny(a)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			results, err := w.CallPlugin(id, routine, vals...)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(results))
			for i, r := range results {
				out[i] = r.Native()
			}
			return out, nil
		}),
		"BroadcastPlugin": reflect.ValueOf(func(message int, text string) int {
			return w.BroadcastPlugin(message, text)
		}),

		"SaveState": reflect.ValueOf(func() error {
			return w.saveState(p)
		}),
	}

	return interp.Exports{"world/world": api}
}
