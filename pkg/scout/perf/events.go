package perf

import (
	"errors"
	"time"
)

// Admission errors returned by Manager.AcquireWorker.
var (
	// ErrAdmissionRefused means the emergency memory ceiling was breached.
	// The state is latched; every later acquisition fails the same way.
	ErrAdmissionRefused = errors.New("admission refused: emergency resource limit reached")

	// ErrStillPaused means the pause latch did not clear within the wait bound.
	ErrStillPaused = errors.New("admission paused: resource pressure did not clear")
)

// EventKind names a limiter or pool transition.
type EventKind string

// Event kinds.
const (
	EventEmergency EventKind = "emergency"
	EventWarning   EventKind = "warning"
	EventPause     EventKind = "pause"
	EventResume    EventKind = "resume"
	EventScaleUp   EventKind = "scale_up"
	EventScaleDown EventKind = "scale_down"
)

// Event reports a state change in the admission controller.
type Event struct {
	Kind   EventKind `json:"kind"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`

	// Sample is the sample that triggered the event, when there is one.
	Sample *Sample `json:"sample,omitempty"`

	// Workers is the pool size after a scale event.
	Workers int `json:"workers,omitempty"`
}
