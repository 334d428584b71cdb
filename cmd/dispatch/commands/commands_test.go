package commands

import (
	"bufio"
	"strings"
	"testing"

	"github.com/marcus/dispatch/internal/backend"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		input   string
		want    backend.Point
		wantErr bool
	}{
		{"960,540", backend.Point{X: 960, Y: 540}, false},
		{" 100 , 200 ", backend.Point{X: 100, Y: 200}, false},
		{"0,0", backend.Point{X: 0, Y: 0}, false},
		{"960", backend.Point{}, true},
		{"960,540,1", backend.Point{}, true},
		{"abc,540", backend.Point{}, true},
		{"960,def", backend.Point{}, true},
		{"", backend.Point{}, true},
	}

	for _, tt := range tests {
		got, err := parsePoint(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePoint(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePoint(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePoint(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestStdinPointerReader(t *testing.T) {
	reader := &stdinPointerReader{in: bufio.NewScanner(strings.NewReader("123,456\n789,12\n"))}

	p, err := reader.PointerPosition()
	if err != nil {
		t.Fatal(err)
	}
	if p != (backend.Point{X: 123, Y: 456}) {
		t.Errorf("first read = %+v", p)
	}

	p, err = reader.PointerPosition()
	if err != nil {
		t.Fatal(err)
	}
	if p != (backend.Point{X: 789, Y: 12}) {
		t.Errorf("second read = %+v", p)
	}

	if _, err := reader.PointerPosition(); err == nil {
		t.Error("expected error at end of input")
	}
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "enqueue", "calibrate", "history"} {
		if !names[want] {
			t.Errorf("command %q not registered", want)
		}
	}
}
