package world

import (
	"log"
	"strconv"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

func textArg(s string) scripting.Value { return scripting.MakeText(s) }

// dispatch invokes a lifecycle callback in the scope's interpreter if it
// exists. Existence is cached per scope: unknown means the name is looked
// up again on the next dispatch, so a callback defined later still gets
// found. A runtime failure is logged, resets the cache and is not
// propagated. ok reports whether the callback ran successfully.
func (w *World) dispatch(p *Plugin, name string, args ...scripting.Value) (results []scripting.Value, ok bool) {
	sc := w.scopeOf(p)
	if sc.engine == nil {
		return nil, false
	}
	if sc.callbacks[name] == automation.CallbackUnknown {
		if !sc.engine.Find(name) {
			return nil, false
		}
		sc.callbacks[name] = automation.CallbackExists
	}

	var err error
	w.withScope(p, func() {
		results, err = sc.engine.Call(name, args)
	})
	if err != nil {
		log.Printf("SCRIPT: %s in %s: %v", name, scopeName(p), err)
		sc.callbacks[name] = automation.CallbackUnknown
		w.metrics.callbackError()
		return nil, false
	}
	return results, true
}

// callRuleScript invokes a trigger or alias callback: the function named
// by the rule, called with the rule's display name, the matched text and
// the captures table. Existence is cached on the rule; a miss leaves the
// cache unknown and silently skips the call so the function may be
// defined later. A runtime failure is logged, resets the cache and never
// reaches the evaluation pass.
func (w *World) callRuleScript(p *Plugin, r *automation.Rule, matched, what string) {
	if r.Script == "" {
		return
	}
	sc := w.scopeOf(p)
	if sc.engine == nil {
		return
	}
	if r.Callback == automation.CallbackUnknown {
		if !sc.engine.Find(r.Script) {
			return
		}
		r.Callback = automation.CallbackExists
	}

	args := []scripting.Value{
		textArg(r.DisplayName()),
		textArg(matched),
		capturesValue(r.Captures, r.NamedCaptures),
	}
	var err error
	w.withScope(p, func() {
		_, err = sc.engine.Call(r.Script, args)
	})
	if err != nil {
		log.Printf("SCRIPT: %s for %s: %v", r.Script, what, err)
		r.Callback = automation.CallbackUnknown
		w.metrics.callbackError()
		return
	}
	r.InvocationCount++
}

// callTimerScript invokes a timer callback with the timer's display name.
// Same caching and failure rules as callRuleScript.
func (w *World) callTimerScript(p *Plugin, t *automation.Timer, what string) {
	if t.Script == "" {
		return
	}
	sc := w.scopeOf(p)
	if sc.engine == nil {
		return
	}
	if t.Callback == automation.CallbackUnknown {
		if !sc.engine.Find(t.Script) {
			return
		}
		t.Callback = automation.CallbackExists
	}

	var err error
	w.withScope(p, func() {
		_, err = sc.engine.Call(t.Script, []scripting.Value{textArg(t.DisplayName())})
	})
	if err != nil {
		log.Printf("SCRIPT: %s for %s: %v", t.Script, what, err)
		t.Callback = automation.CallbackUnknown
		w.metrics.callbackError()
		return
	}
	t.InvocationCount++
}

// capturesValue shapes match captures for a script: one named table with
// the positional captures under "0".."N" plus any named groups under
// their own names.
func capturesValue(captures []string, named map[string]string) scripting.Value {
	entries := make(map[string]scripting.Value, len(captures)+len(named))
	for i, c := range captures {
		entries[strconv.Itoa(i)] = scripting.MakeText(c)
	}
	for name, c := range named {
		entries[name] = scripting.MakeText(c)
	}
	return scripting.MakeMap(entries)
}
