// Package main provides an export hook that appends finished workout
// sessions to a CSV file.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Request represents the input from the hook executor.
type Request struct {
	Event   string          `json:"event"`
	Config  json.RawMessage `json:"config"`
	Session Session         `json:"session"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Session holds the session fields written to the file.
type Session struct {
	ID        string        `json:"id"`
	Exercise  string        `json:"exercise"`
	Target    int           `json:"target"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	Accuracy  int           `json:"accuracy"`
	Calories  int           `json:"calories"`
	Manual    bool          `json:"manual"`
	StartedAt time.Time     `json:"started_at"`
}

// Config is the per-binding configuration.
type Config struct {
	Path string `json:"path"`
}

var header = []string{"id", "started_at", "exercise", "target", "count", "seconds", "accuracy", "calories", "manual"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := Config{Path: "sessions.csv"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if err := appendRow(cfg.Path, req.Session); err != nil {
		writeErrorResponse(fmt.Sprintf("write %s: %v", cfg.Path, err))
		return
	}

	writeSuccessResponse()
}

// appendRow writes s to path, adding the header when the file is new.
func appendRow(path string, s Session) error {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		s.ID,
		s.StartedAt.Format(time.RFC3339),
		s.Exercise,
		strconv.Itoa(s.Target),
		strconv.Itoa(s.Count),
		strconv.Itoa(int(s.Duration / time.Second)),
		strconv.Itoa(s.Accuracy),
		strconv.Itoa(s.Calories),
		strconv.FormatBool(s.Manual),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
