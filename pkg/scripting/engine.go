// Package scripting defines the narrow contract the automation engine has
// with an embedded script interpreter, and a yaegi-backed implementation.
// Each scope (the world or a plugin) owns one isolated Engine; values cross
// the boundary only as marshaled Values, never as shared state.
package scripting

import "errors"

// ErrNoSuchFunction is returned by Call when the named function does not
// resolve to something callable in the interpreter.
var ErrNoSuchFunction = errors.New("no such function")

// Engine is an isolated interpreter for one scope.
type Engine interface {
	// Run evaluates a chunk of script source. what names the chunk for
	// diagnostics ("plugin Health Bar", "send-to-script: Alias heal").
	Run(src, what string) error

	// Find reports whether name, possibly dotted ("mod.fn"), resolves to
	// a callable function. A miss is not an error.
	Find(name string) bool

	// Call performs a protected call of the named function. Runtime
	// failures, including panics inside the interpreter, are returned as
	// errors and never propagate to the caller's control flow.
	Call(name string, args []Value) ([]Value, error)

	// Close tears the interpreter down. The engine must not be used
	// afterwards.
	Close()
}
