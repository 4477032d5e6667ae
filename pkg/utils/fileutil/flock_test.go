//go:build linux || darwin

package fileutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "energylogger.lock")

	r, existed, err := Flock(path)
	require.NoError(t, err)
	assert.False(t, existed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	_, existed, err = Flock(path)
	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, existed)

	require.NoError(t, r.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	r, existed, err = Flock(path)
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, r.Release())
}

func TestFlockStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energylogger.lock")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	r, existed, err := Flock(path)
	require.NoError(t, err)
	assert.True(t, existed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
	require.NoError(t, r.Release())
}
