// File: internal/evidence/store_test.go
package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/internal/config"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(config.EvidenceConfig{Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestNewStoreCreatesExecutionDirectory(t *testing.T) {
	store, dir := newTestStore(t)

	assert.NotEmpty(t, store.ExecutionID())
	assert.Equal(t, filepath.Join(dir, store.ExecutionID()), store.Root())

	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteJSONLayout(t *testing.T) {
	store, _ := newTestStore(t)

	artifact := map[string]any{"status": "passed", "attempts": 2}
	require.NoError(t, store.WriteJSON("checkout", "step-1", "result", artifact))

	path := filepath.Join(store.Root(), "checkout", "step-1", "result.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "passed", "attempts": 2}`, string(data))

	// No temp files may survive a completed write.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "result.json", entries[0].Name())
}

func TestWriteJSONSanitizesPathSegments(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.WriteJSON("login/flow", "step 1", `a:b*c`, map[string]int{"n": 1}))

	path := filepath.Join(store.Root(), "login_flow", "step_1", "a_b_c.json")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteBundle(t *testing.T) {
	store, _ := newTestStore(t)

	artifacts := map[string]any{
		"har":       map[string]string{"version": "1.2"},
		"waterfall": []int{1, 2, 3},
		"summary":   "ok",
	}
	require.NoError(t, store.WriteBundle(context.Background(), "checkout", "_network", artifacts))

	for name := range artifacts {
		path := filepath.Join(store.Root(), "checkout", "_network", name+".json")
		_, err := os.Stat(path)
		assert.NoError(t, err, name)
	}
}
