package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/dispatch/internal/backend"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "calibration.json"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := Coords{
		InputTarget:   backend.Point{X: 100, Y: 200},
		ConfirmTarget: backend.Point{X: 300, Y: 400},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := NewStore(s.Path())
	got, err := fresh.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	s := tempStore(t)
	got, err := s.Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
	if got != defaultCoords {
		t.Errorf("missing file should keep defaults, got %+v", got)
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	s := tempStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Errorf("corrupt file must be non-fatal, got %v", err)
	}
	if got != defaultCoords {
		t.Errorf("corrupt file should keep defaults, got %+v", got)
	}
}

// fakeReader returns queued pointer positions in order.
type fakeReader struct {
	points []backend.Point
	idx    int
	err    error
}

func (f *fakeReader) PointerPosition() (backend.Point, error) {
	if f.err != nil {
		return backend.Point{}, f.err
	}
	p := f.points[f.idx]
	f.idx++
	return p, nil
}

func TestLoadOrCaptureCapturesWhenMissing(t *testing.T) {
	s := tempStore(t)
	reader := &fakeReader{points: []backend.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}}

	var prompts []string
	got, err := s.LoadOrCapture(reader, func(target string) {
		prompts = append(prompts, target)
	})
	if err != nil {
		t.Fatalf("LoadOrCapture: %v", err)
	}
	if got.InputTarget != (backend.Point{X: 1, Y: 2}) || got.ConfirmTarget != (backend.Point{X: 3, Y: 4}) {
		t.Errorf("captured %+v", got)
	}
	if len(prompts) != 2 {
		t.Errorf("prompts = %v, want two", prompts)
	}

	// Capture must have persisted.
	if _, err := NewStore(s.Path()).Load(); err != nil {
		t.Errorf("captured calibration not persisted: %v", err)
	}
}

func TestLoadOrCapturePrefersExistingFile(t *testing.T) {
	s := tempStore(t)
	want := Coords{InputTarget: backend.Point{X: 9, Y: 9}, ConfirmTarget: backend.Point{X: 8, Y: 8}}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}

	reader := &fakeReader{err: errors.New("should not be called")}
	got, err := s.LoadOrCapture(reader, nil)
	if err != nil {
		t.Fatalf("LoadOrCapture: %v", err)
	}
	if got != want {
		t.Errorf("LoadOrCapture = %+v, want saved %+v", got, want)
	}
}

func TestLoadOrCaptureNoReaderKeepsDefaults(t *testing.T) {
	s := tempStore(t)
	got, err := s.LoadOrCapture(nil, nil)
	if err != nil {
		t.Fatalf("LoadOrCapture: %v", err)
	}
	if got != defaultCoords {
		t.Errorf("got %+v, want defaults", got)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	s := tempStore(t)
	if err := s.Save(Coords{InputTarget: backend.Point{X: 1, Y: 1}, ConfirmTarget: backend.Point{X: 2, Y: 2}}); err != nil {
		t.Fatal(err)
	}

	stop, err := s.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	// Another store writing to the same path simulates an external
	// re-calibration.
	other := NewStore(s.Path())
	want := Coords{InputTarget: backend.Point{X: 77, Y: 77}, ConfirmTarget: backend.Point{X: 88, Y: 88}}
	if err := other.Save(want); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for s.Current() != want {
		select {
		case <-deadline:
			t.Fatalf("watch never reloaded, current = %+v", s.Current())
		case <-time.After(20 * time.Millisecond):
		}
	}
}
