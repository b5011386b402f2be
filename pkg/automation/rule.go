package automation

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors shared by the automation types.
var (
	ErrEmptyName    = errors.New("empty name")
	ErrEmptyPattern = errors.New("empty pattern")
	ErrBadSendTo    = errors.New("unknown send-to destination")
	ErrBadSequence  = errors.New("sequence out of range")
	ErrBadInterval  = errors.New("interval must be positive")
	ErrBadAtTime    = errors.New("at-time out of range")
)

// Sequence bounds. Lower sequences are evaluated first within a scope.
const (
	MinSequence     = 0
	MaxSequence     = 10000
	DefaultSequence = 100
)

// CallbackState is the tri-state cache of whether a named script callback
// currently exists in the owning scope's interpreter. Unknown means the
// next invocation attempt must look the name up again; a failed call
// resets the state to unknown.
type CallbackState int

const (
	CallbackUnknown CallbackState = iota
	CallbackExists
)

// Rule is the shape shared by triggers and aliases: a pattern, an action
// and its bookkeeping. Name is the internal map key and is unique within
// the owning scope.
type Rule struct {
	Name    string
	Label   string
	Group   string
	Pattern Pattern

	Contents string // action text, after capture substitution
	SendTo   SendTo
	Variable string // target for SendToVariable
	Script   string // script callback name, empty for none
	Sequence int

	Enabled         bool
	OneShot         bool
	Temporary       bool
	KeepEvaluating  bool
	OmitFromLog     bool
	OmitFromOutput  bool
	ExpandVariables bool

	// Most recent match results.
	Captures      []string
	NamedCaptures map[string]string
	MatchCount    int
	WhenMatched   time.Time

	InvocationCount int
	Callback        CallbackState

	// Executing guards the rule for the span of its action, including any
	// script callback. Deletion during that window is deferred.
	Executing bool
}

// DisplayName returns the label when set, otherwise the internal name.
func (r *Rule) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// RecordMatch stores the captures of a successful match and updates the
// match statistics.
func (r *Rule) RecordMatch(m *Match, now time.Time) {
	r.Captures = m.Captures
	r.NamedCaptures = m.Named
	r.MatchCount++
	r.WhenMatched = now
}

// Validate checks the rule fields. It performs no mutation.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return ErrEmptyName
	}
	if r.Pattern.Text == "" {
		return ErrEmptyPattern
	}
	if !r.SendTo.Valid() {
		return fmt.Errorf("%w: %d", ErrBadSendTo, int(r.SendTo))
	}
	if r.Sequence < MinSequence || r.Sequence > MaxSequence {
		return fmt.Errorf("%w: %d", ErrBadSequence, r.Sequence)
	}
	return r.Pattern.Compile()
}

// Trigger matches lines received from the MUD.
type Trigger struct {
	Rule

	// Repeat re-applies the pattern to the remainder of the same line
	// until no further match is found.
	Repeat bool

	// MultiLine matches against a window of the most recent LinesToMatch
	// lines joined with newlines instead of the single current line.
	MultiLine    bool
	LinesToMatch int
}

// Alias matches commands typed by the user.
type Alias struct {
	Rule

	// EchoAlias writes the typed command to the output stream.
	EchoAlias bool
	// OmitFromHistory keeps the command out of the command history.
	OmitFromHistory bool
}

// Variable is a named string value owned by exactly one scope. Names are
// case-insensitive and stored lowercase.
type Variable struct {
	Name        string
	Contents    string
	UpdateCount int
}
