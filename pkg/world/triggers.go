package world

import (
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// ProcessLine evaluates one received line against every scope's triggers:
// plugins with a negative sequence first, then the world, then the
// remaining plugins, each scope in its own sequence order. Disabled
// plugins are skipped entirely. The pass is handled if any trigger
// matched, even when scanning continued past the match.
func (w *World) ProcessLine(line string) *Result {
	res, nested := w.beginPass()
	defer w.endPass(nested)

	w.recentLines = append(w.recentLines, line)
	if len(w.recentLines) > maxRecentLines {
		w.recentLines = w.recentLines[len(w.recentLines)-maxRecentLines:]
	}
	w.metrics.lineReceived()

	// A scope may veto display of the line before any trigger runs.
	if vetoed(w.dispatch(nil, cbLineReceived, textArg(line))) {
		res.Omit = true
	}
	for _, p := range w.plugins {
		if p.Enabled && vetoed(w.dispatch(p, cbLineReceived, textArg(line))) {
			res.Omit = true
		}
	}

	for _, p := range w.plugins {
		if p.Sequence >= 0 {
			break
		}
		if !p.Enabled {
			continue
		}
		if w.scanTriggers(p, line, res) {
			return res
		}
	}
	if w.scanTriggers(nil, line, res) {
		return res
	}
	for _, p := range w.plugins {
		if p.Sequence < 0 || !p.Enabled {
			continue
		}
		if w.scanTriggers(p, line, res) {
			return res
		}
	}
	return res
}

// vetoed interprets a line-received callback result: an explicit false
// return means "omit this line".
func vetoed(results []scripting.Value, ok bool) bool {
	return ok && len(results) > 0 &&
		results[0].Kind() == scripting.KindBool && !results[0].BoolVal()
}

// scanTriggers walks one scope's triggers in sequence order. It returns
// true when the whole pass must stop: a match without keep-evaluating, or
// a stop-evaluating signal covering all scopes.
func (w *World) scanTriggers(p *Plugin, line string, res *Result) bool {
	sc := w.scopeOf(p)
	w.stopTriggers = false
	for _, t := range sc.sortedTriggerView() {
		if w.stopTriggers || w.stopTriggersAll {
			break
		}
		// The view may be stale if a callback mutated the collection
		// mid-scan; skip entries that are no longer current.
		if cur, ok := sc.triggers[t.Name]; !ok || cur != t {
			continue
		}
		if !t.Enabled {
			continue
		}
		subject := line
		if t.MultiLine && t.LinesToMatch > 1 {
			subject = w.recentWindow(t.LinesToMatch)
		}
		w.metrics.triggerEvaluated()
		m, err := t.Pattern.Match(subject)
		if err != nil {
			log.Printf("TRIGGER: %s of %s: %v", t.DisplayName(), scopeName(p), err)
			continue
		}
		if m == nil {
			continue
		}
		res.Handled = true
		w.fireTrigger(p, t, m, res)
		if t.Repeat {
			for pos := m.End; pos <= len(subject); {
				rm, err := t.Pattern.MatchAt(subject, pos)
				if err != nil || rm == nil {
					break
				}
				w.fireTrigger(p, t, rm, res)
				if rm.End == pos {
					pos++ // empty match, force progress
				} else {
					pos = rm.End
				}
			}
		}
		if !t.KeepEvaluating {
			return true
		}
	}
	return w.stopTriggersAll
}

// fireTrigger runs one matched trigger's action: counters and captures,
// omit flags, capture and variable substitution, routing and the script
// callback. One-shot triggers are removed only after the whole action,
// callback included, has completed.
func (w *World) fireTrigger(p *Plugin, t *automation.Trigger, m *automation.Match, res *Result) {
	t.RecordMatch(m, w.now())
	w.metrics.triggerMatched()
	if t.OmitFromOutput {
		// Whole-line omission; the matched span is not spliced out.
		res.Omit = true
	}
	if t.OmitFromLog {
		res.OmitLog = true
	}

	text := substituteCaptures(t.Contents, m.Captures)
	if t.ExpandVariables {
		text = expandVariables(w.scopeOf(p), text)
	}
	what := fmt.Sprintf("trigger %s of %s", t.DisplayName(), scopeName(p))

	t.Executing = true
	w.route(p, t.SendTo, text, t.Variable, what, res)
	w.callRuleScript(p, &t.Rule, m.Captures[0], what)
	t.Executing = false

	sc := w.scopeOf(p)
	if t.OneShot {
		if cur, ok := sc.triggers[t.Name]; ok && cur == t {
			delete(sc.triggers, t.Name)
			sc.triggersDirty = true
		}
	}
	sc.reapDoomed()
}

// recentWindow joins the most recent n received lines, oldest first, for
// multi-line trigger matching.
func (w *World) recentWindow(n int) string {
	if n > len(w.recentLines) {
		n = len(w.recentLines)
	}
	return strings.Join(w.recentLines[len(w.recentLines)-n:], "\n")
}
