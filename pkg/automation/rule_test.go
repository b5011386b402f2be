package automation

import (
	"errors"
	"testing"
	"time"
)

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want error
	}{
		{"ok", Rule{Name: "r", Pattern: Pattern{Text: "n"}, Sequence: DefaultSequence}, nil},
		{"empty name", Rule{Pattern: Pattern{Text: "n"}}, ErrEmptyName},
		{"empty pattern", Rule{Name: "r"}, ErrEmptyPattern},
		{"bad sendto", Rule{Name: "r", Pattern: Pattern{Text: "n"}, SendTo: SendTo(42)}, ErrBadSendTo},
		{"sequence too low", Rule{Name: "r", Pattern: Pattern{Text: "n"}, Sequence: -1}, ErrBadSequence},
		{"sequence too high", Rule{Name: "r", Pattern: Pattern{Text: "n"}, Sequence: 10001}, ErrBadSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRuleValidateRejectsBadRegexp(t *testing.T) {
	r := Rule{Name: "r", Pattern: Pattern{Text: "(", Regexp: true}}
	if err := r.Validate(); err == nil {
		t.Fatal("expected compile error from Validate")
	}
}

func TestRecordMatch(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Rule{Name: "r"}
	m := &Match{Captures: []string{"all", "one"}, Named: map[string]string{"n": "one"}}

	r.RecordMatch(m, now)
	r.RecordMatch(m, now.Add(time.Second))

	if r.MatchCount != 2 {
		t.Errorf("MatchCount = %d, want 2", r.MatchCount)
	}
	if !r.WhenMatched.Equal(now.Add(time.Second)) {
		t.Errorf("WhenMatched = %v", r.WhenMatched)
	}
	if len(r.Captures) != 2 || r.Captures[1] != "one" {
		t.Errorf("Captures = %v", r.Captures)
	}
	if r.NamedCaptures["n"] != "one" {
		t.Errorf("NamedCaptures = %v", r.NamedCaptures)
	}
}

func TestDisplayName(t *testing.T) {
	r := Rule{Name: "trigger17"}
	if r.DisplayName() != "trigger17" {
		t.Errorf("DisplayName() = %q", r.DisplayName())
	}
	r.Label = "autoloot"
	if r.DisplayName() != "autoloot" {
		t.Errorf("DisplayName() = %q", r.DisplayName())
	}
}

func TestSendToAcceptsEmpty(t *testing.T) {
	for _, s := range []SendTo{SendToOutput, SendToLog, SendToVariable} {
		if !s.AcceptsEmpty() {
			t.Errorf("%v should accept empty text", s)
		}
	}
	for _, s := range []SendTo{SendToWorld, SendToCommand, SendToExecute, SendToImmediate, SendToScript} {
		if s.AcceptsEmpty() {
			t.Errorf("%v should treat empty text as a no-op", s)
		}
	}
}
