package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/powerctl/internal/errors"
)

func TestWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerctl.pid")

	require.NoError(t, writeTo(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))
}

func TestWriteRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerctl.pid")

	// Our own PID is guaranteed to be alive
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600))

	err := writeTo(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyRunning))
}

func TestWriteOverwritesStalePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerctl.pid")

	// PIDs above the kernel maximum can never be alive
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o600))

	require.NoError(t, writeTo(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerctl.pid")

	require.NoError(t, writeTo(path))
	require.NoError(t, removeFrom(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerctl.pid")

	assert.NoError(t, removeFrom(path))
}
