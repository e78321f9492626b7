package estimator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// writeService writes a shell stand-in for the MoveNet service and returns a
// config that runs it with sh.
func writeService(t *testing.T, body string) Config {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	script := filepath.Join(t.TempDir(), scriptName)
	if err := os.WriteFile(script, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return Config{ScriptPath: script, PythonPath: sh, StartTimeout: 5 * time.Second}
}

func TestOpenMoveNet(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		cfg := writeService(t, "echo '{\"ready\":true}'\ncat >/dev/null\n")

		est, err := OpenMoveNet(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := est.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	t.Run("missing interpreter", func(t *testing.T) {
		cfg := writeService(t, "echo '{\"ready\":true}'\n")
		cfg.PythonPath = "/nonexistent"

		if _, err := OpenMoveNet(cfg); err == nil {
			t.Fatal("expected error for a missing interpreter")
		}
	})

	t.Run("service reports error", func(t *testing.T) {
		cfg := writeService(t, "echo '{\"error\":\"tensorflow not installed\"}'\n")

		_, err := OpenMoveNet(cfg)
		if err == nil || !strings.Contains(err.Error(), "tensorflow not installed") {
			t.Fatalf("expected service error, got %v", err)
		}
	})

	t.Run("service exits before ready", func(t *testing.T) {
		cfg := writeService(t, "exit 1\n")

		if _, err := OpenMoveNet(cfg); err == nil {
			t.Fatal("expected error when the service exits")
		}
	})

	t.Run("service never ready", func(t *testing.T) {
		cfg := writeService(t, "exec sleep 5\n")
		cfg.StartTimeout = 100 * time.Millisecond

		began := time.Now()
		_, err := OpenMoveNet(cfg)
		if err == nil || !strings.Contains(err.Error(), "not ready") {
			t.Fatalf("expected timeout error, got %v", err)
		}
		if time.Since(began) > 3*time.Second {
			t.Errorf("start waited %v, expected the process to be killed", time.Since(began))
		}
	})
}

func TestModel_MoveNetUnavailable(t *testing.T) {
	cfg := writeService(t, "echo '{\"ready\":true}'\n")
	cfg.PythonPath = "/nonexistent"

	m := NewModel(func() (Estimator, error) {
		return OpenMoveNet(cfg)
	})
	if _, err := m.Acquire(); err == nil {
		t.Fatal("expected acquire to fail when the service cannot start")
	}
	if m.Loaded() {
		t.Error("failed model must not be cached")
	}
}

func TestMoveNetEstimator_RestartsAfterCrash(t *testing.T) {
	starts := filepath.Join(t.TempDir(), "starts")
	// Answers one frame, then dies.
	cfg := writeService(t, "echo x >> '"+starts+"'\n"+
		"echo '{\"ready\":true}'\n"+
		"echo '{\"poses\":[]}'\n"+
		"sleep 1\n")

	est, err := OpenMoveNet(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer est.Close()

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()
	ctx := context.Background()

	if _, err := est.Estimate(ctx, &frame); err != nil {
		t.Fatalf("first estimate: %v", err)
	}
	if _, err := est.Estimate(ctx, &frame); err == nil {
		t.Fatal("expected an error once the service has exited")
	}
	if _, err := est.Estimate(ctx, &frame); err != nil {
		t.Fatalf("estimate after restart: %v", err)
	}

	data, err := os.ReadFile(starts)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "x"); n != 2 {
		t.Errorf("expected the service to be started twice, got %d", n)
	}
}
