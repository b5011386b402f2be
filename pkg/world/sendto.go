package world

import (
	"fmt"
	"log"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

// maxExecuteDepth bounds recursion through execute-routed actions, which
// re-enter alias evaluation and could otherwise loop forever.
const maxExecuteDepth = 20

// route delivers post-substitution action text to its destination on
// behalf of the scope that owns the firing entity. what names the entity
// for diagnostics ("Trigger hp-bar of plugin Health"). Empty text is a
// no-op except for destinations that accept explicit empty values.
// Unknown destination codes are logged and ignored.
func (w *World) route(p *Plugin, send automation.SendTo, text, variable, what string, res *Result) {
	if text == "" && !send.AcceptsEmpty() {
		return
	}
	switch send {
	case automation.SendToWorld:
		w.sendLine(text, false, what)
	case automation.SendToImmediate:
		w.sendLine(text, true, what)
	case automation.SendToCommand:
		res.command(text)
	case automation.SendToOutput:
		w.note(text, res)
	case automation.SendToLog:
		if w.logw != nil {
			if _, err := fmt.Fprintln(w.logw, text); err != nil {
				log.Printf("ROUTE: %s: writing log: %v", what, err)
			}
		}
	case automation.SendToVariable:
		if variable == "" {
			log.Printf("ROUTE: %s: variable destination without a variable name", what)
			return
		}
		if err := w.scopeOf(p).SetVariable(variable, text); err != nil {
			log.Printf("ROUTE: %s: setting %s: %v", what, variable, err)
		}
	case automation.SendToExecute:
		if w.executeDepth >= maxExecuteDepth {
			log.Printf("ROUTE: %s: execute depth limit reached, dropping %q", what, text)
			return
		}
		w.executeDepth++
		w.Execute(text)
		w.executeDepth--
	case automation.SendToScript:
		sc := w.scopeOf(p)
		if sc.engine == nil {
			log.Printf("ROUTE: %s: no interpreter for script destination", what)
			return
		}
		w.withScope(p, func() {
			if err := sc.engine.Run(text, "send-to-script: "+what); err != nil {
				log.Printf("SCRIPT: %v", err)
				w.metrics.callbackError()
			}
		})
	default:
		log.Printf("ROUTE: %s: unknown destination %v, text dropped", what, send)
	}
}

// sendLine delivers one line to the transport, dispatching the send
// callbacks first. now selects the immediate path.
func (w *World) sendLine(text string, now bool, what string) {
	w.dispatch(nil, cbSend, textArg(text))
	for _, p := range w.plugins {
		if p.Enabled {
			w.dispatch(p, cbSend, textArg(text))
		}
	}
	if w.transport == nil {
		log.Printf("ROUTE: %s: no transport, dropping %q", what, text)
		return
	}
	data := []byte(text + "\n")
	var err error
	if now {
		err = w.transport.SendNow(data)
	} else {
		err = w.transport.Send(data)
	}
	if err != nil {
		log.Printf("ROUTE: %s: sending: %v", what, err)
	}
}

// note appends text to the current pass's output, or hands it to the
// output sink when no pass is in flight.
func (w *World) note(text string, res *Result) {
	if res == nil {
		res = w.res
	}
	if res != nil {
		res.note(text)
		return
	}
	if w.outputSink != nil {
		w.outputSink(text)
		return
	}
	log.Printf("NOTE: %s", text)
}
