// Package pidfile enforces single-instance operation of the fleetsim daemon
// through a PID file.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// PIDFile guards one daemon instance per path.
type PIDFile struct {
	path string
}

// New creates a PID file manager for path.
func New(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire claims the PID file for the current process. It fails when another
// live process holds it; stale files left by dead processes are removed.
func (p *PIDFile) Acquire() error {
	if pid, ok := p.currentHolder(); ok {
		if isProcessRunning(pid) {
			return fmt.Errorf("daemon is already running (PID %d)", pid)
		}
		_ = os.Remove(p.path)
	}

	data := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file. Releasing an absent file is not an error.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// KillExisting terminates the process currently holding the PID file,
// escalating from SIGTERM to SIGKILL when it does not exit promptly.
func (p *PIDFile) KillExisting() error {
	pid, ok := p.currentHolder()
	if !ok {
		return nil
	}
	if !isProcessRunning(pid) {
		_ = os.Remove(p.path)
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	for i := 0; i < 50; i++ {
		if !isProcessRunning(pid) {
			_ = os.Remove(p.path)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	_ = os.Remove(p.path)
	return nil
}

// currentHolder reads the PID recorded in the file. A malformed file is
// removed and reported as absent.
func (p *PIDFile) currentHolder() (int, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(p.path)
		return 0, false
	}
	return pid, true
}

// isProcessRunning probes a PID with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Alive, owned by someone else.
		return true
	}
	return false
}
