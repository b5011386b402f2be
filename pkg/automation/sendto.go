package automation

import "fmt"

// SendTo identifies the destination a trigger, alias or timer routes its
// action text to when it fires.
type SendTo int

const (
	// SendToWorld sends the text to the MUD over the transport queue.
	SendToWorld SendTo = iota
	// SendToCommand places the text in the pending command input.
	SendToCommand
	// SendToOutput appends the text to the output stream.
	SendToOutput
	// SendToLog writes the text to the session log file.
	SendToLog
	// SendToVariable assigns the text to the named variable.
	SendToVariable
	// SendToExecute re-parses the text as a typed command (may match aliases).
	SendToExecute
	// SendToImmediate sends the text to the MUD bypassing the queue.
	SendToImmediate
	// SendToScript calls the script callback in the owning scope.
	SendToScript
)

var sendToNames = map[SendTo]string{
	SendToWorld:     "world",
	SendToCommand:   "command",
	SendToOutput:    "output",
	SendToLog:       "log",
	SendToVariable:  "variable",
	SendToExecute:   "execute",
	SendToImmediate: "immediate",
	SendToScript:    "script",
}

// ParseSendTo converts a destination name ("world", "output", ...) back
// to its code.
func ParseSendTo(name string) (SendTo, error) {
	for code, n := range sendToNames {
		if n == name {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadSendTo, name)
}

// Valid reports whether s is a known destination code.
func (s SendTo) Valid() bool {
	_, ok := sendToNames[s]
	return ok
}

func (s SendTo) String() string {
	if name, ok := sendToNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sendto(%d)", int(s))
}

// AcceptsEmpty reports whether the destination acts on empty text.
// Output, log and variable destinations accept explicit empty values;
// everything else treats empty text as a no-op.
func (s SendTo) AcceptsEmpty() bool {
	switch s {
	case SendToOutput, SendToLog, SendToVariable:
		return true
	}
	return false
}
