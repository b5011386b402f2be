package world

import (
	"fmt"
	"log"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

// maxHistory bounds the typed-command history.
const maxHistory = 1000

// Execute evaluates one typed command against every scope's aliases, in
// the same scope order as trigger evaluation. An unhandled command is
// left for the caller to send to the MUD. Execute is also the re-entry
// point for execute-routed actions, so an alias may expand to further
// commands that match other aliases.
func (w *World) Execute(command string) *Result {
	res, nested := w.beginPass()
	defer w.endPass(nested)

	matched := w.evalAliases(command, res)
	// Only user-typed commands belong in history; nested passes carry
	// commands generated by actions and scripts.
	if !nested && (matched == nil || !matched.OmitFromHistory) {
		w.history = append(w.history, command)
		if len(w.history) > maxHistory {
			w.history = w.history[len(w.history)-maxHistory:]
		}
	}
	return res
}

// evalAliases walks the scopes and returns the first matched alias, nil
// when the command was not handled.
func (w *World) evalAliases(command string, res *Result) *automation.Alias {
	var matched *automation.Alias
	for _, p := range w.plugins {
		if p.Sequence >= 0 {
			break
		}
		if !p.Enabled {
			continue
		}
		if a, stop := w.scanAliases(p, command, res); stop {
			return pick(matched, a)
		} else if matched == nil {
			matched = a
		}
	}
	if a, stop := w.scanAliases(nil, command, res); stop {
		return pick(matched, a)
	} else if matched == nil {
		matched = a
	}
	for _, p := range w.plugins {
		if p.Sequence < 0 || !p.Enabled {
			continue
		}
		if a, stop := w.scanAliases(p, command, res); stop {
			return pick(matched, a)
		} else if matched == nil {
			matched = a
		}
	}
	return matched
}

func pick(first, second *automation.Alias) *automation.Alias {
	if first != nil {
		return first
	}
	return second
}

// scanAliases walks one scope's aliases in sequence order. stop is true
// when the pass must not scan further scopes.
func (w *World) scanAliases(p *Plugin, command string, res *Result) (matched *automation.Alias, stop bool) {
	sc := w.scopeOf(p)
	w.stopTriggers = false
	for _, a := range sc.sortedAliasView() {
		if w.stopTriggers || w.stopTriggersAll {
			break
		}
		if cur, ok := sc.aliases[a.Name]; !ok || cur != a {
			continue
		}
		if !a.Enabled {
			continue
		}
		m, err := a.Pattern.Match(command)
		if err != nil {
			log.Printf("ALIAS: %s of %s: %v", a.DisplayName(), scopeName(p), err)
			continue
		}
		if m == nil {
			continue
		}
		res.Handled = true
		if matched == nil {
			matched = a
		}
		w.fireAlias(p, a, m, command, res)
		if !a.KeepEvaluating {
			return matched, true
		}
	}
	return matched, w.stopTriggersAll
}

// fireAlias runs one matched alias's action. Echoing the typed command to
// the output stream happens before the action so the echo reads in order.
func (w *World) fireAlias(p *Plugin, a *automation.Alias, m *automation.Match, command string, res *Result) {
	a.RecordMatch(m, w.now())
	w.metrics.aliasMatched()
	if a.EchoAlias {
		w.note(command, res)
	}
	if a.OmitFromLog {
		res.OmitLog = true
	}
	if a.OmitFromOutput {
		res.Omit = true
	}

	text := substituteCaptures(a.Contents, m.Captures)
	if a.ExpandVariables {
		text = expandVariables(w.scopeOf(p), text)
	}
	what := fmt.Sprintf("alias %s of %s", a.DisplayName(), scopeName(p))

	a.Executing = true
	w.route(p, a.SendTo, text, a.Variable, what, res)
	w.callRuleScript(p, &a.Rule, m.Captures[0], what)
	a.Executing = false

	sc := w.scopeOf(p)
	if a.OneShot {
		if cur, ok := sc.aliases[a.Name]; ok && cur == a {
			delete(sc.aliases, a.Name)
			sc.aliasesDirty = true
		}
	}
	sc.reapDoomed()
}
