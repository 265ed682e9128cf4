package atomicwrite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesDirAndReplaces(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "out.txt")

	require.NoError(t, WriteFile(p, []byte("first"), 0o600))
	require.NoError(t, WriteFile(p, []byte("second"), 0o600))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	// no quedan temporales
	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSON(p, map[string]int{"created": 3}, 0o644))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), b[len(b)-1])

	var got map[string]int
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, 3, got["created"])
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.Error(t, WriteJSON(p, map[string]any{"ch": make(chan int)}, 0o644))
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}
