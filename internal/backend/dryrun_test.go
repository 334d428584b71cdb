package backend

import (
	"testing"
	"time"
)

func TestDryRunSatisfiesBackend(t *testing.T) {
	var _ Backend = NewDryRun()
}

func TestDryRunRecordsCalls(t *testing.T) {
	d := NewDryRun()

	if !d.FocusTarget() {
		t.Error("default focus should succeed")
	}
	if err := d.Click(Point{X: 10, Y: 20}); err != nil {
		t.Fatal(err)
	}
	if err := d.TypeAndSubmit("hello"); err != nil {
		t.Fatal(err)
	}
	if !d.AwaitCompletion(time.Second) {
		t.Error("default completion signal should be true")
	}

	calls := d.Calls()
	if len(calls) != 4 {
		t.Fatalf("recorded %d calls, want 4", len(calls))
	}
	ops := []string{"focus", "click", "type", "await"}
	for i, want := range ops {
		if calls[i].Op != want {
			t.Errorf("call %d op = %q, want %q", i, calls[i].Op, want)
		}
	}
	if calls[1].At != (Point{X: 10, Y: 20}) {
		t.Errorf("click point = %+v", calls[1].At)
	}
	if calls[2].Text != "hello" {
		t.Errorf("typed text = %q", calls[2].Text)
	}
}

func TestDryRunConfigurableSignals(t *testing.T) {
	d := NewDryRun()
	d.FocusOK = false
	d.CompletionSignal = false

	if d.FocusTarget() {
		t.Error("focus should report configured failure")
	}
	if d.AwaitCompletion(time.Second) {
		t.Error("completion should report configured failure")
	}
}

func TestDryRunCallsReturnsCopy(t *testing.T) {
	d := NewDryRun()
	_ = d.FocusTarget()

	calls := d.Calls()
	calls[0].Op = "mutated"

	if d.Calls()[0].Op != "focus" {
		t.Error("Calls() exposed internal slice")
	}
}
