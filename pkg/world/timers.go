package world

import (
	"fmt"
	"time"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

// Tick fires every due timer across the world and all enabled plugins.
// The caller drives it roughly once per second; now is the tick's time.
// Due timers are collected by name first and re-resolved before firing,
// so a callback deleting timers mid-batch cannot fire a stale entry.
func (w *World) Tick(now time.Time) *Result {
	res, nested := w.beginPass()
	defer w.endPass(nested)

	w.dispatch(nil, cbTick)
	for _, p := range w.plugins {
		if p.Enabled {
			w.dispatch(p, cbTick)
		}
	}

	type due struct {
		plugin string // empty for the world
		timer  string
	}
	connected := w.Connected()
	var batch []due

	collect := func(p *Plugin) {
		sc := w.scopeOf(p)
		key := ""
		if p != nil {
			key = p.ID
		}
		for _, name := range sc.TimerNames() {
			t := sc.timers[name]
			if !t.Enabled || t.NextFire.After(now) {
				continue
			}
			if !connected && !t.ActiveWhenDisconnected {
				continue
			}
			batch = append(batch, due{plugin: key, timer: name})
		}
	}
	collect(nil)
	for _, p := range w.plugins {
		if p.Enabled {
			collect(p)
		}
	}

	for _, d := range batch {
		var p *Plugin
		if d.plugin != "" {
			if p = w.findPlugin(d.plugin); p == nil || !p.Enabled {
				continue
			}
		}
		sc := w.scopeOf(p)
		t, ok := sc.timers[d.timer]
		if !ok || !t.Enabled || t.NextFire.After(now) {
			continue
		}
		w.fireTimer(p, t, now, res)
	}
	return res
}

// fireTimer runs one due timer. The schedule is advanced before the
// action executes so a slow callback cannot delay the next fire; if the
// advanced time is still in the past the schedule is recomputed from now
// instead of drifting through missed periods. One-shot timers are
// disabled before executing, which keeps a re-entrant tick from firing
// them again, and deleted afterwards only if still present.
func (w *World) fireTimer(p *Plugin, t *automation.Timer, now time.Time, res *Result) {
	t.FireCount++
	t.WhenFired = now
	t.Advance()
	if !t.NextFire.After(now) {
		t.Reset(now)
	}
	if t.OneShot {
		t.Enabled = false
	}
	w.metrics.timerFired()

	what := fmt.Sprintf("timer %s of %s", t.DisplayName(), scopeName(p))
	t.Executing = true
	w.route(p, t.SendTo, t.Contents, t.Variable, what, res)
	w.callTimerScript(p, t, what)
	t.Executing = false

	sc := w.scopeOf(p)
	if t.OneShot {
		if cur, ok := sc.timers[t.Name]; ok && cur == t {
			delete(sc.timers, t.Name)
		}
	}
	sc.reapDoomed()
}
