package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadPID(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WritePID(dir, 4242))
	pid, err := ReadPID(dir)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestAcquire_FreshDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	release, err := Acquire(dir)
	require.NoError(t, err)

	pid, err := ReadPID(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, os.Getpid(), Running(dir))

	release()
	_, err = os.Stat(GetPIDPath(dir))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, Running(dir))
}

func TestAcquire_LiveOwnerRefused(t *testing.T) {
	dir := t.TempDir()
	// Родительский процесс теста гарантированно жив
	require.NoError(t, WritePID(dir, os.Getppid()))

	_, err := Acquire(dir)
	var running *AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, os.Getppid(), running.PID)
}

func TestAcquire_StalePIDTakenOver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WritePID(dir, 999999999))

	release, err := Acquire(dir)
	require.NoError(t, err)
	defer release()

	pid, _ := ReadPID(dir)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsRunning(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
	assert.False(t, IsRunning(0))
	assert.False(t, IsRunning(-1))
}

func TestCleanup_MissingFiles(t *testing.T) {
	assert.NoError(t, Cleanup(t.TempDir()))
}
