package automation

import (
	"fmt"
	"time"
)

// TimerKind selects how a timer's next fire time is computed.
type TimerKind int

const (
	// TimerInterval fires every Interval, optionally phase-shifted by Offset.
	TimerInterval TimerKind = iota
	// TimerAtTime fires once per day at the configured clock time.
	TimerAtTime
)

// Timer fires on schedule and routes its action like a rule does.
type Timer struct {
	Name  string
	Label string
	Group string

	Kind TimerKind

	// At-time configuration (TimerAtTime).
	AtHour   int
	AtMinute int
	AtSecond int

	// Interval configuration (TimerInterval).
	Interval time.Duration
	Offset   time.Duration

	Contents string
	SendTo   SendTo
	Variable string
	Script   string

	Enabled   bool
	OneShot   bool
	Temporary bool

	OmitFromLog    bool
	OmitFromOutput bool

	// ActiveWhenDisconnected lets the timer fire while the transport is
	// not connected.
	ActiveWhenDisconnected bool

	NextFire  time.Time
	WhenFired time.Time

	FireCount       int
	InvocationCount int
	Callback        CallbackState

	Executing bool
}

// DisplayName returns the label when set, otherwise the internal name.
func (t *Timer) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Name
}

// Reset recomputes NextFire from now. At-time timers aim for today at the
// configured clock time, or tomorrow if that has already passed. Interval
// timers aim for now + interval - offset.
func (t *Timer) Reset(now time.Time) {
	t.WhenFired = now
	if t.Kind == TimerAtTime {
		fire := time.Date(now.Year(), now.Month(), now.Day(),
			t.AtHour, t.AtMinute, t.AtSecond, 0, now.Location())
		if fire.Before(now) {
			fire = fire.AddDate(0, 0, 1)
		}
		t.NextFire = fire
		return
	}
	t.NextFire = now.Add(t.Interval - t.Offset)
}

// Advance moves NextFire forward by one period: a day for at-time timers,
// the interval for interval timers. The scheduler calls this before
// executing the action so a slow callback cannot introduce drift.
func (t *Timer) Advance() {
	if t.Kind == TimerAtTime {
		t.NextFire = t.NextFire.AddDate(0, 0, 1)
		return
	}
	t.NextFire = t.NextFire.Add(t.Interval)
}

// Validate checks the timer fields. It performs no mutation.
func (t *Timer) Validate() error {
	if t.Name == "" {
		return ErrEmptyName
	}
	if !t.SendTo.Valid() {
		return fmt.Errorf("%w: %d", ErrBadSendTo, int(t.SendTo))
	}
	switch t.Kind {
	case TimerAtTime:
		if t.AtHour < 0 || t.AtHour > 23 || t.AtMinute < 0 || t.AtMinute > 59 ||
			t.AtSecond < 0 || t.AtSecond > 59 {
			return fmt.Errorf("%w: %02d:%02d:%02d", ErrBadAtTime, t.AtHour, t.AtMinute, t.AtSecond)
		}
	case TimerInterval:
		if t.Interval <= 0 {
			return fmt.Errorf("%w: %v", ErrBadInterval, t.Interval)
		}
		if t.Offset < 0 || t.Offset >= t.Interval {
			return fmt.Errorf("%w: offset %v", ErrBadInterval, t.Offset)
		}
	default:
		return fmt.Errorf("unknown timer kind %d", int(t.Kind))
	}
	return nil
}
