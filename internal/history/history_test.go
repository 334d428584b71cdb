package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/task"
)

func outcome(id string, success bool) Outcome {
	tk := task.New("payload-"+id, task.PriorityMedium)
	tk.ID = id
	return Outcome{
		TaskID:    id,
		Snapshot:  tk,
		Result:    "result-" + id,
		Success:   success,
		Timestamp: time.Now(),
	}
}

func TestRingBoundsAndOrder(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Append(outcome(fmt.Sprintf("t%d", i), true))
	}

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	recent := r.Recent(0)
	want := []string{"t4", "t3", "t2"}
	for i, w := range want {
		if recent[i].TaskID != w {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].TaskID, w)
		}
	}
}

func TestRingRecentLimit(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 4; i++ {
		r.Append(outcome(fmt.Sprintf("t%d", i), true))
	}

	if got := r.Recent(2); len(got) != 2 || got[0].TaskID != "t3" {
		t.Errorf("Recent(2) = %v", got)
	}
	if got := r.Recent(100); len(got) != 4 {
		t.Errorf("Recent(100) len = %d, want 4", len(got))
	}
}

func TestRingDefaultLimit(t *testing.T) {
	r := NewRing(0)
	if r.limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", r.limit, DefaultLimit)
	}
}

func TestStoreAppendAndRecent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer func() { _ = database.Close() }()

	s := NewStore(database)

	first := outcome("aaa", true)
	first.Timestamp = time.Now().Add(-time.Minute)
	if err := s.Append(first); err != nil {
		t.Fatalf("Append: %v", err)
	}

	second := outcome("bbb", false)
	second.Stage = "on_approve"
	if err := s.Append(second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	// Most recent first.
	if got[0].TaskID != "bbb" || got[1].TaskID != "aaa" {
		t.Errorf("order = [%s, %s], want [bbb, aaa]", got[0].TaskID, got[1].TaskID)
	}
	if got[0].Success || !got[1].Success {
		t.Error("success flags not preserved")
	}
	if got[0].Stage != "on_approve" {
		t.Errorf("stage = %q, want on_approve", got[0].Stage)
	}
	if got[1].Snapshot == nil || got[1].Snapshot.Payload != "payload-aaa" {
		t.Error("task snapshot not round-tripped")
	}
}

func TestStoreRecentLimit(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer func() { _ = database.Close() }()

	s := NewStore(database)
	for i := 0; i < 6; i++ {
		o := outcome(fmt.Sprintf("t%d", i), true)
		o.Timestamp = time.Now().Add(time.Duration(i) * time.Second)
		if err := s.Append(o); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].TaskID != "t5" {
		t.Errorf("Recent(3) head = %v", got)
	}
}
