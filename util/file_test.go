package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJsonCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "out.json")

	require.NoError(t, SaveJson(path, map[string]int{"a": 1, "b": 2}))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, json.Unmarshal(bs, &got))
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, got)
}

func TestSaveJsonRejectsUnmarshalableData(t *testing.T) {
	dir := t.TempDir()
	err := SaveJson(filepath.Join(dir, "bad.json"), func() {})
	require.Error(t, err)
}
