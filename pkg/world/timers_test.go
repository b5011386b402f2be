package world

import (
	"testing"
	"time"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

func intervalTimer(name string, interval, offset time.Duration, contents string) *automation.Timer {
	return &automation.Timer{
		Name:                   name,
		Kind:                   automation.TimerInterval,
		Interval:               interval,
		Offset:                 offset,
		Contents:               contents,
		SendTo:                 automation.SendToWorld,
		Enabled:                true,
		ActiveWhenDisconnected: true,
	}
}

func TestIntervalTimerFiresOnSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	if err := w.AddTimer("", intervalTimer("pulse", 5*time.Second, 0, "beat")); err != nil {
		t.Fatal(err)
	}

	for s := 1; s <= 12; s++ {
		clk.t = start.Add(time.Duration(s) * time.Second)
		w.Tick(clk.t)
	}

	if len(tr.sent) != 2 {
		t.Fatalf("fired %d times by t=12s, want 2: %v", len(tr.sent), tr.sent)
	}
	tm, err := w.Timer("", "pulse")
	if err != nil {
		t.Fatal(err)
	}
	if want := start.Add(15 * time.Second); !tm.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want %v", tm.NextFire, want)
	}
}

func TestTimerAdvanceHasNoDriftOverMissedTicks(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	if err := w.AddTimer("", intervalTimer("pulse", 5*time.Second, 0, "beat")); err != nil {
		t.Fatal(err)
	}

	// No ticks for 17 seconds: the timer fires once, then recomputes
	// from now instead of burning through the missed periods.
	clk.t = start.Add(17 * time.Second)
	w.Tick(clk.t)
	if len(tr.sent) != 1 {
		t.Fatalf("fired %d times after a gap, want 1", len(tr.sent))
	}
	tm, _ := w.Timer("", "pulse")
	if want := clk.t.Add(5 * time.Second); !tm.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want recompute from now %v", tm.NextFire, want)
	}
}

func TestOneShotTimerDeletedAfterFiring(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	tm := intervalTimer("once", 2*time.Second, 0, "now")
	tm.OneShot = true
	if err := w.AddTimer("", tm); err != nil {
		t.Fatal(err)
	}

	clk.t = start.Add(3 * time.Second)
	w.Tick(clk.t)
	if len(tr.sent) != 1 {
		t.Fatalf("sent = %v", tr.sent)
	}
	if _, err := w.Timer("", "once"); err == nil {
		t.Error("one-shot timer should be gone after firing")
	}
}

func TestTimerConnectivityGate(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))
	tr.up = false

	gated := intervalTimer("gated", time.Second, 0, "online only")
	gated.ActiveWhenDisconnected = false
	if err := w.AddTimer("", gated); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTimer("", intervalTimer("free", time.Second, 0, "always")); err != nil {
		t.Fatal(err)
	}

	clk.t = start.Add(2 * time.Second)
	w.Tick(clk.t)
	if len(tr.sent) != 1 || tr.sent[0] != "always" {
		t.Errorf("sent = %v, want only the disconnect-tolerant timer", tr.sent)
	}

	tr.up = true
	clk.t = start.Add(4 * time.Second)
	w.Tick(clk.t)
	found := false
	for _, s := range tr.sent {
		if s == "online only" {
			found = true
		}
	}
	if !found {
		t.Error("gated timer should fire once connected")
	}
}

func TestAtTimeTimerSchedulesNextDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: now}
	w, _ := newTestWorld(t, WithClock(clk.now))

	tm := &automation.Timer{
		Name:     "reset",
		Kind:     automation.TimerAtTime,
		AtHour:   6,
		AtMinute: 30,
		Contents: "daily reset",
		SendTo:   automation.SendToWorld,
		Enabled:  true,
	}
	if err := w.AddTimer("", tm); err != nil {
		t.Fatal(err)
	}

	// 06:30 has already passed today, so the first fire is tomorrow.
	want := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	if !tm.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want %v", tm.NextFire, want)
	}
}

func TestAtTimeTimerFiresAndAdvancesOneDay(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	tm := &automation.Timer{
		Name:                   "reset",
		Kind:                   automation.TimerAtTime,
		AtHour:                 6,
		AtMinute:               30,
		Contents:               "daily reset",
		SendTo:                 automation.SendToWorld,
		Enabled:                true,
		ActiveWhenDisconnected: true,
	}
	if err := w.AddTimer("", tm); err != nil {
		t.Fatal(err)
	}

	// Ticks for the rest of today stay quiet; the timer fires at the wall
	// time next morning and reschedules for the day after.
	clk.t = start.Add(6 * time.Hour)
	w.Tick(clk.t)
	if len(tr.sent) != 0 {
		t.Fatalf("fired before its wall time: %v", tr.sent)
	}

	clk.t = time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	w.Tick(clk.t)
	if len(tr.sent) != 1 || tr.sent[0] != "daily reset" {
		t.Fatalf("sent = %v, want one daily reset", tr.sent)
	}
	if want := time.Date(2026, 3, 3, 6, 30, 0, 0, time.UTC); !tm.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want the next day %v", tm.NextFire, want)
	}

	w.Tick(clk.t)
	if len(tr.sent) != 1 {
		t.Errorf("fired again on the same tick: %v", tr.sent)
	}
}

func TestTickToleratesMidBatchDeletion(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	err := w.Scope.engine.Run(`import "world"
func Reap(name string) { world.DeleteTimer("second") }`, "setup")
	if err != nil {
		t.Fatal(err)
	}
	first := intervalTimer("first", time.Second, 0, "")
	first.SendTo = automation.SendToOutput
	first.Script = "Reap"
	if err := w.AddTimer("", first); err != nil {
		t.Fatal(err)
	}
	if err := w.AddTimer("", intervalTimer("second", time.Second, 0, "late")); err != nil {
		t.Fatal(err)
	}

	clk.t = start.Add(2 * time.Second)
	w.Tick(clk.t)
	// "first" fires and deletes "second" before the batch reaches it; the
	// stale entry must be skipped, not fired.
	for _, s := range tr.sent {
		if s == "late" {
			t.Error("deleted timer fired from a stale batch entry")
		}
	}
	if _, err := w.Timer("", "second"); err == nil {
		t.Error("second timer should be deleted")
	}
}

func TestReenablingTimerResetsSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: start}
	w, tr := newTestWorld(t, WithClock(clk.now))

	if err := w.AddTimer("", intervalTimer("pulse", 5*time.Second, 0, "beat")); err != nil {
		t.Fatal(err)
	}
	if err := w.EnableTimer("", "pulse", false); err != nil {
		t.Fatal(err)
	}

	clk.t = start.Add(30 * time.Second)
	w.Tick(clk.t)
	if len(tr.sent) != 0 {
		t.Fatalf("disabled timer fired: %v", tr.sent)
	}

	if err := w.EnableTimer("", "pulse", true); err != nil {
		t.Fatal(err)
	}
	w.Tick(clk.t)
	if len(tr.sent) != 0 {
		t.Error("re-enabled timer must not fire for missed periods")
	}
	clk.t = clk.t.Add(5 * time.Second)
	w.Tick(clk.t)
	if len(tr.sent) != 1 {
		t.Errorf("sent = %v", tr.sent)
	}
}
