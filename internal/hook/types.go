// Package hook discovers and runs export hooks: external executables that
// receive each finished workout session as JSON on stdin.
package hook

import (
	"encoding/json"
	"slices"
)

// ManifestFile is the manifest each hook directory must contain.
const ManifestFile = "manifest.json"

// EventSessionCompleted is sent when a workout session has been saved.
const EventSessionCompleted = "session.completed"

// Manifest describes a hook's metadata and the exercises it handles.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Exercises restricts the hook to these exercise ids. Empty means all.
	Exercises    []string        `json:"exercises,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Accepts reports whether the hook handles exercise.
func (m Manifest) Accepts(exercise string) bool {
	return len(m.Exercises) == 0 || slices.Contains(m.Exercises, exercise)
}

// Request is written to the hook's stdin.
type Request struct {
	Event   string          `json:"event"`
	Config  json.RawMessage `json:"config"`
	Session json.RawMessage `json:"session"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest `json:"manifest"`
	Path       string   `json:"path"`
	Executable string   `json:"-"`
}
