package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/app"
	"github.com/vk/stagegrid/internal/hcl"
	"github.com/vk/stagegrid/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a scene run.
type HarnessResult struct {
	Output string
	Err    error
	App    *app.App
}

// WriteScene writes files (relative name to content) into a fresh temporary
// directory and returns the directory.
func WriteScene(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunScene loads scene into an app built from cfg and runs it to completion.
// cfg.ScenePath is filled in; an empty LogLevel becomes "error" so stage output
// is not interleaved with logs. Startup errors are reported in Err with a nil
// App.
func RunScene(t *testing.T, scene string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunSceneWithContext(context.Background(), t, scene, cfg, modules...)
}

// RunSceneWithContext is RunScene with a caller-provided context.
func RunSceneWithContext(ctx context.Context, t *testing.T, scene string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()

	cfg.ScenePath = filepath.Join(WriteScene(t, map[string]string{"scene.hcl": scene}), "scene.hcl")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	out := &SafeBuffer{}
	t.Cleanup(func() {
		if os.Getenv("STAGEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Output for %s ---\n%s", t.Name(), out.String())
		}
	})

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return &HarnessResult{Err: err}
	}
	testApp, err := app.NewApp(out, appConfig, hcl.NewLoader(), modules...)
	if err != nil {
		return &HarnessResult{Output: out.String(), Err: err}
	}

	runErr := testApp.Run(ctx)
	return &HarnessResult{Output: out.String(), Err: runErr, App: testApp}
}
