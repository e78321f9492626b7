package hook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeHook installs a shell script hook under dir and returns its directory.
func writeHook(t *testing.T, dir, name, script string, exercises ...string) string {
	t.Helper()

	hookDir := filepath.Join(dir, name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}

	manifest := Manifest{
		Name:       name,
		Version:    "1.0.0",
		Executable: "run.sh",
		Exercises:  exercises,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return hookDir
}

const okScript = `#!/bin/sh
cat > /dev/null
echo '{"success":true}'
`
