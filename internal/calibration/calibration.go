// Package calibration persists the two screen coordinates the engine
// needs to drive its backend: the input target (where the payload is
// typed) and the confirmation target (clicked after completion).
// Calibration normally happens once at startup; a missing or corrupt
// file falls back to defaults and is not fatal.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus/dispatch/internal/backend"
	"github.com/marcus/dispatch/internal/logging"
)

// Coords holds the two named calibration targets.
type Coords struct {
	InputTarget   backend.Point `json:"input_target"`
	ConfirmTarget backend.Point `json:"confirm_target"`
}

// Defaults used when no calibration file exists and capture is not
// possible. Centre-ish of a 1080p display.
var defaultCoords = Coords{
	InputTarget:   backend.Point{X: 960, Y: 900},
	ConfirmTarget: backend.Point{X: 960, Y: 540},
}

const calibrationFile = "calibration.json"

// DefaultPath returns the default calibration file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "dispatch", calibrationFile)
}

// Store loads and saves calibration coordinates.
type Store struct {
	mu       sync.RWMutex
	filePath string
	coords   Coords
	logger   *logging.Logger
}

// NewStore creates a store backed by the given file path ("" uses the
// default location).
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{
		filePath: path,
		coords:   defaultCoords,
		logger:   logging.Component("calibration"),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads coordinates from disk. A missing file returns os.ErrNotExist
// (caller decides whether to capture interactively); a corrupt file is a
// warning and the store keeps its defaults.
func (s *Store) Load() (Coords, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s.Current(), os.ErrNotExist
		}
		s.logger.WarnCtx("calibration read failed, using defaults", map[string]any{
			"path": s.filePath, "error": err.Error(),
		})
		return s.Current(), nil
	}

	var loaded Coords
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.WarnCtx("calibration file corrupt, using defaults", map[string]any{
			"path": s.filePath, "error": err.Error(),
		})
		return s.Current(), nil
	}

	s.mu.Lock()
	s.coords = loaded
	s.mu.Unlock()
	return loaded, nil
}

// Save writes coordinates to disk atomically via a temp file.
func (s *Store) Save(c Coords) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("creating calibration dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling calibration: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("writing calibration: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("renaming calibration file: %w", err)
	}

	s.mu.Lock()
	s.coords = c
	s.mu.Unlock()
	return nil
}

// Current returns the in-memory coordinates.
func (s *Store) Current() Coords {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coords
}

// LoadOrCapture returns saved coordinates, running interactive capture
// when no file exists yet. With no pointer reader available, defaults are
// kept and a warning is logged.
func (s *Store) LoadOrCapture(reader backend.PointerReader, prompt func(target string)) (Coords, error) {
	coords, err := s.Load()
	if err == nil {
		return coords, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return coords, err
	}

	if reader == nil {
		s.logger.Warn("no calibration file and no pointer reader, using defaults")
		return s.Current(), nil
	}
	return s.Capture(reader, prompt)
}

// Capture records the current pointer position twice, once per target,
// and persists the result. prompt, if non-nil, is called before each
// capture so the operator can position the pointer.
func (s *Store) Capture(reader backend.PointerReader, prompt func(target string)) (Coords, error) {
	var c Coords

	if prompt != nil {
		prompt("input target")
	}
	p, err := reader.PointerPosition()
	if err != nil {
		return s.Current(), fmt.Errorf("capturing input target: %w", err)
	}
	c.InputTarget = p

	if prompt != nil {
		prompt("confirmation target")
	}
	p, err = reader.PointerPosition()
	if err != nil {
		return s.Current(), fmt.Errorf("capturing confirmation target: %w", err)
	}
	c.ConfirmTarget = p

	if err := s.Save(c); err != nil {
		return c, err
	}
	s.logger.InfoCtx("calibration captured", map[string]any{
		"input":   fmt.Sprintf("%d,%d", c.InputTarget.X, c.InputTarget.Y),
		"confirm": fmt.Sprintf("%d,%d", c.ConfirmTarget.X, c.ConfirmTarget.Y),
	})
	return c, nil
}
