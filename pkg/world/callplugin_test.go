package world

import (
	"errors"
	"testing"

	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

func TestCallPluginRoundTrip(t *testing.T) {
	w, _ := newTestWorld(t)
	loadTestPlugin(t, w, "Math", "id-math", 0,
		`func Double(n float64) float64 { return n * 2 }`)

	res, err := w.CallPlugin("id-math", "Double", scripting.MakeNumber(21))
	if err != nil {
		t.Fatalf("CallPlugin: %v", err)
	}
	if len(res) != 1 || res[0].NumberVal() != 42 {
		t.Errorf("results = %v", res)
	}
}

func TestCallPluginByName(t *testing.T) {
	w, _ := newTestWorld(t)
	loadTestPlugin(t, w, "Math", "id-math", 0,
		`func Zero() float64 { return 0 }`)

	if _, err := w.CallPlugin("Math", "Zero"); err != nil {
		t.Fatalf("lookup by name: %v", err)
	}
}

func TestCallPluginErrors(t *testing.T) {
	w, _ := newTestWorld(t)
	p := loadTestPlugin(t, w, "Target", "id-t", 0,
		`func Fail() { var p *int; _ = *p }`)

	if _, err := w.CallPlugin("nope", "Anything"); !errors.Is(err, ErrNoSuchPlugin) {
		t.Errorf("unknown plugin: %v", err)
	}
	if _, err := w.CallPlugin("id-t", "Missing"); !errors.Is(err, ErrNoSuchRoutine) {
		t.Errorf("unknown routine: %v", err)
	}
	if _, err := w.CallPlugin("id-t", "Fail"); !errors.Is(err, ErrRoutineFailed) {
		t.Errorf("failing routine: %v", err)
	}

	p.Enabled = false
	if _, err := w.CallPlugin("id-t", "Fail"); !errors.Is(err, ErrPluginDisabled) {
		t.Errorf("disabled plugin: %v", err)
	}
}

func TestCallPluginRejectsNonScalarArgs(t *testing.T) {
	w, _ := newTestWorld(t)
	loadTestPlugin(t, w, "Target", "id-t", 0, `import "world"
func Mark(v float64) float64 { world.SetVariable("invoked", "yes"); return v }`)

	table := scripting.MakeList(scripting.MakeNumber(1))
	_, err := w.CallPlugin("id-t", "Mark", scripting.MakeNumber(1), table)
	var ute *scripting.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("err = %v, want UnsupportedTypeError", err)
	}
	if ute.Position != 2 {
		t.Errorf("position = %d, want 2", ute.Position)
	}
	if v, _ := w.GetVariable("id-t", "invoked"); v == "yes" {
		t.Error("callee must never be invoked on a marshaling error")
	}
}

func TestCallPluginNestsScopeIdentity(t *testing.T) {
	w, _ := newTestWorld(t)
	// B answers broadcasts; A calls into B, which broadcasts back. The
	// sender observed by receivers must be B during the nested call.
	loadTestPlugin(t, w, "A", "id-a", -1, `import "world"
func Ping() float64 {
	r, err := world.CallPlugin("id-b", "Pong")
	if err != nil { return -1 }
	return r[0].(float64)
}
func OnPluginBroadcast(msg float64, id, name, text string) {
	world.SetVariable("from", name)
}`)
	loadTestPlugin(t, w, "B", "id-b", 1, `import "world"
func Pong() float64 {
	return float64(world.BroadcastPlugin(7, "hi"))
}`)

	res, err := w.CallPlugin("id-a", "Ping")
	if err != nil {
		t.Fatalf("CallPlugin: %v", err)
	}
	// B's broadcast reaches the world and A, not B itself.
	if res[0].NumberVal() != 1 {
		t.Errorf("delivery count = %v, want 1 (only A defines the callback)", res[0])
	}
	if v, _ := w.GetVariable("id-a", "from"); v != "B" {
		t.Errorf("A saw sender %q, want B", v)
	}
}

func TestBroadcastSkipsSenderAndCountsDeliveries(t *testing.T) {
	w, _ := newTestWorld(t)
	loadTestPlugin(t, w, "Recv", "id-r", 0, `import "world"
func OnPluginBroadcast(msg float64, id, name, text string) {
	world.SetVariable("got", text)
}`)
	loadTestPlugin(t, w, "Deaf", "id-d", 1, "")

	// Sent from the world scope: Recv hears it, Deaf has no callback.
	if n := w.BroadcastPlugin(1, "ahoy"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if v, _ := w.GetVariable("id-r", "got"); v != "ahoy" {
		t.Errorf("got = %q", v)
	}
}

func TestBroadcastReceiverErrorDoesNotHaltDelivery(t *testing.T) {
	w, _ := newTestWorld(t)
	loadTestPlugin(t, w, "Bad", "id-bad", -1,
		`func OnPluginBroadcast(msg float64, id, name, text string) { var p *int; _ = *p }`)
	loadTestPlugin(t, w, "Good", "id-good", 1, `import "world"
func OnPluginBroadcast(msg float64, id, name, text string) {
	world.SetVariable("ok", text)
}`)

	if n := w.BroadcastPlugin(2, "still here"); n != 1 {
		t.Errorf("count = %d, want 1 successful delivery", n)
	}
	if v, _ := w.GetVariable("id-good", "ok"); v != "still here" {
		t.Error("later receiver should still get the broadcast")
	}
}
