package task

import (
	"encoding/json"
	"testing"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"critical", PriorityCritical},
		{"Highest", PriorityCritical},
		{"p0", PriorityCritical},
		{"high", PriorityHigh},
		{"important", PriorityHigh},
		{"medium", PriorityMedium},
		{"normal", PriorityMedium},
		{"", PriorityMedium},
		{"low", PriorityLow},
		{"background", PriorityLow},
		{"urgent", PriorityMedium},   // unrecognized
		{"whatever", PriorityMedium}, // unrecognized
		{"  HIGH  ", PriorityHigh},
	}

	for _, tt := range tests {
		if got := ParsePriority(tt.in); got != tt.want {
			t.Errorf("ParsePriority(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPriorityRankOrder(t *testing.T) {
	if !(PriorityCritical.Rank() < PriorityHigh.Rank() &&
		PriorityHigh.Rank() < PriorityMedium.Rank() &&
		PriorityMedium.Rank() < PriorityLow.Rank()) {
		t.Error("priority ranks out of order")
	}
}

func TestValidPriority(t *testing.T) {
	for _, s := range []string{"critical", "high", "medium", "low", "HIGH"} {
		if !ValidPriority(s) {
			t.Errorf("ValidPriority(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"highest", "urgent", "", "p1"} {
		if ValidPriority(s) {
			t.Errorf("ValidPriority(%q) = true, want false", s)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusRejected, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	live := []Status{StatusQueued, StatusValidating, StatusInjecting, StatusApproving, StatusDispatching, StatusExecuting}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestNewAssignsID(t *testing.T) {
	a := New("one", PriorityMedium)
	b := New("two", PriorityMedium)
	if a.ID == "" || b.ID == "" {
		t.Fatal("New() left ID empty")
	}
	if a.ID == b.ID {
		t.Error("New() produced duplicate IDs")
	}
	if a.Status != StatusQueued {
		t.Errorf("status = %s, want %s", a.Status, StatusQueued)
	}
}

func TestEnsureIDKeepsExisting(t *testing.T) {
	tk := &Task{ID: "fixed"}
	tk.EnsureID()
	if tk.ID != "fixed" {
		t.Errorf("EnsureID changed existing ID to %q", tk.ID)
	}

	tk = &Task{}
	tk.EnsureID()
	if tk.ID == "" {
		t.Error("EnsureID did not assign an ID")
	}
}

func TestCloneIsDeep(t *testing.T) {
	tk := New("payload", PriorityHigh)
	tk.Context["k"] = "v"
	tk.Artifacts = map[string]string{"test": "ref"}
	tk.StampStage("on_queue")

	c := tk.Clone()
	c.Context["k"] = "changed"
	c.Artifacts["test"] = "changed"
	delete(c.StageTimes, "on_queue")

	if tk.Context["k"] != "v" {
		t.Error("Clone shares Context map")
	}
	if tk.Artifacts["test"] != "ref" {
		t.Error("Clone shares Artifacts map")
	}
	if _, ok := tk.StageTimes["on_queue"]; !ok {
		t.Error("Clone shares StageTimes map")
	}
}

func TestPriorityJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(PriorityCritical)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"critical"` {
		t.Errorf("Marshal = %s, want %q", data, `"critical"`)
	}

	var p Priority
	if err := json.Unmarshal([]byte(`"Highest"`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p != PriorityCritical {
		t.Errorf("Unmarshal = %s, want critical", p)
	}
}
