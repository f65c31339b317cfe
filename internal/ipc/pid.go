// Package ipc ties CLI invocations to a running scheduler: a PID file
// guards against two schedulers sharing one state directory, and a unix
// socket lets `trigger` run jobs inside the scheduler process.
package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	PIDFileName    = ".ocalt.pid"
	SocketFileName = ".ocalt.sock"
)

// AlreadyRunningError возвращается, если планировщик уже запущен
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("scheduler already running (pid %d)", e.PID)
}

// Acquire claims stateDir for the current process. A PID file left by a
// dead process is taken over. The returned release removes the PID file
// and the socket.
func Acquire(stateDir string) (func(), error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if pid, err := ReadPID(stateDir); err == nil && pid != os.Getpid() && IsRunning(pid) {
		return nil, &AlreadyRunningError{PID: pid}
	}

	if err := WritePID(stateDir, os.Getpid()); err != nil {
		return nil, err
	}
	return func() { _ = Cleanup(stateDir) }, nil
}

// Running returns the PID of a live scheduler owning stateDir, or 0.
func Running(stateDir string) int {
	pid, err := ReadPID(stateDir)
	if err != nil || !IsRunning(pid) {
		return 0
	}
	return pid
}

// WritePID записывает PID в файл
func WritePID(stateDir string, pid int) error {
	if err := os.WriteFile(GetPIDPath(stateDir), fmt.Appendf(nil, "%d\n", pid), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPID читает PID из файла
func ReadPID(stateDir string) (int, error) {
	data, err := os.ReadFile(GetPIDPath(stateDir))
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// IsRunning проверяет что процесс запущен
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Сигнал 0 только проверяет существование процесса
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// GetSocketPath возвращает путь к сокету
func GetSocketPath(stateDir string) string {
	return filepath.Join(stateDir, SocketFileName)
}

// GetPIDPath возвращает путь к PID файлу
func GetPIDPath(stateDir string) string {
	return filepath.Join(stateDir, PIDFileName)
}

// Cleanup удаляет PID файл и сокет
func Cleanup(stateDir string) error {
	for _, path := range []string{GetPIDPath(stateDir), GetSocketPath(stateDir)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
