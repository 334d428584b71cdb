// Package backend defines the boundary to the automation that performs a
// dispatched task's on-screen effect. The engine only depends on this
// interface; the concrete window/coordinate automation lives outside the
// repository and is injected by the caller.
package backend

import "time"

// Point is a 2D screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Backend is the execution surface the engine drives for each approved
// task: focus the target, click the input area, type and submit the
// payload, then wait for a completion indicator. The backend is treated
// as a singular, non-reentrant resource — the engine never issues
// overlapping calls.
type Backend interface {
	// FocusTarget brings the automation target to the foreground.
	// Returns false if the target could not be focused.
	FocusTarget() bool

	// Click performs a click at the given coordinate.
	Click(p Point) error

	// TypeAndSubmit types the text into the focused input and submits it.
	TypeAndSubmit(text string) error

	// AwaitCompletion blocks up to timeout waiting for the backend to
	// observe a completion indicator. Returns false on timeout; the
	// caller then falls back to a fixed grace-period sleep.
	AwaitCompletion(timeout time.Duration) bool
}

// PointerReader reports the current pointer position. Used by interactive
// calibration to capture target coordinates.
type PointerReader interface {
	PointerPosition() (Point, error)
}
