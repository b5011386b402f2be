package automation

import (
	"errors"
	"testing"
	"time"
)

func TestIntervalReset(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tm := Timer{Kind: TimerInterval, Interval: 5 * time.Minute, Offset: 2 * time.Minute}
	tm.Reset(now)
	want := now.Add(3 * time.Minute)
	if !tm.NextFire.Equal(want) {
		t.Errorf("NextFire = %v, want %v", tm.NextFire, want)
	}
	if !tm.WhenFired.Equal(now) {
		t.Errorf("WhenFired = %v, want %v", tm.WhenFired, now)
	}
}

func TestAtTimeResetLaterToday(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tm := Timer{Kind: TimerAtTime, AtHour: 18, AtMinute: 30}
	tm.Reset(now)
	want := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	if !tm.NextFire.Equal(want) {
		t.Errorf("NextFire = %v, want %v", tm.NextFire, want)
	}
}

func TestAtTimeResetAlreadyPassed(t *testing.T) {
	now := time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC)
	tm := Timer{Kind: TimerAtTime, AtHour: 18, AtMinute: 30}
	tm.Reset(now)
	want := time.Date(2025, 3, 2, 18, 30, 0, 0, time.UTC)
	if !tm.NextFire.Equal(want) {
		t.Errorf("NextFire = %v, want tomorrow %v", tm.NextFire, want)
	}
}

func TestAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	interval := Timer{Kind: TimerInterval, Interval: 5 * time.Second, NextFire: start}
	interval.Advance()
	if !interval.NextFire.Equal(start.Add(5 * time.Second)) {
		t.Errorf("interval NextFire = %v", interval.NextFire)
	}

	daily := Timer{Kind: TimerAtTime, NextFire: start}
	daily.Advance()
	if !daily.NextFire.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("at-time NextFire = %v", daily.NextFire)
	}
}

// N consecutive fires with no gaps land on start + N*interval - offset.
func TestIntervalAdvanceAccumulatesNoDrift(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tm := Timer{Kind: TimerInterval, Interval: 5 * time.Second, Offset: time.Second}
	tm.Reset(start)
	for i := 0; i < 10; i++ {
		tm.Advance()
	}
	want := start.Add(11*5*time.Second - time.Second)
	if !tm.NextFire.Equal(want) {
		t.Errorf("after 10 advances NextFire = %v, want %v", tm.NextFire, want)
	}
}

func TestTimerValidate(t *testing.T) {
	tests := []struct {
		name  string
		timer Timer
		want  error
	}{
		{"ok interval", Timer{Name: "t", Kind: TimerInterval, Interval: time.Second}, nil},
		{"ok at-time", Timer{Name: "t", Kind: TimerAtTime, AtHour: 23, AtMinute: 59, AtSecond: 59}, nil},
		{"empty name", Timer{Kind: TimerInterval, Interval: time.Second}, ErrEmptyName},
		{"zero interval", Timer{Name: "t", Kind: TimerInterval}, ErrBadInterval},
		{"offset past interval", Timer{Name: "t", Kind: TimerInterval, Interval: time.Second, Offset: time.Second}, ErrBadInterval},
		{"bad hour", Timer{Name: "t", Kind: TimerAtTime, AtHour: 24}, ErrBadAtTime},
		{"bad destination", Timer{Name: "t", Kind: TimerInterval, Interval: time.Second, SendTo: SendTo(99)}, ErrBadSendTo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.timer.Validate()
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
