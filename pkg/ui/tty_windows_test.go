//go:build windows

package ui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_ReadsInputWritesOutput(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	outPath := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(inPath, []byte("y\n"), 0600))

	in, err := os.Open(inPath)
	require.NoError(t, err)
	out, err := os.Create(outPath)
	require.NoError(t, err)

	c := &console{in: in, out: out}
	_, err = c.Write([]byte("continue? "))
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "y\n", string(buf[:n]))
	require.NoError(t, c.Close())

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "continue? ", string(written))
}
