package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrAlreadyRunning is returned by WritePID when the recorded process is alive.
	ErrAlreadyRunning = errors.New("monitor already running")
	// ErrNotRunning is returned when no live monitor process is recorded.
	ErrNotRunning = errors.New("monitor not running")
)

// ProcessStatus describes the process recorded in a PID file.
type ProcessStatus struct {
	PID     int32
	Running bool
	Started time.Time
	RSS     uint64
	CPUPct  float64
	Command string
}

// WritePID records the current process. A stale file left by a dead
// process is overwritten.
func WritePID(path string) error {
	if st, err := Status(path); err == nil && st.Running && st.PID != int32(os.Getpid()) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, st.PID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// RemovePID deletes the PID file. A missing file is not an error.
func RemovePID(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

func readPID(path string) (int32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s", path)
	}
	return int32(pid), nil
}

// Status reports on the process named in the PID file.
func Status(path string) (*ProcessStatus, error) {
	pid, err := readPID(path)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	st := &ProcessStatus{PID: pid}

	alive, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !alive {
		return st, nil
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return st, nil
	}
	st.Running, _ = p.IsRunningWithContext(ctx)
	if ms, err := p.CreateTimeWithContext(ctx); err == nil {
		st.Started = time.UnixMilli(ms)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		st.RSS = mem.RSS
	}
	if pct, err := p.CPUPercentWithContext(ctx); err == nil {
		st.CPUPct = pct
	}
	if name, err := p.NameWithContext(ctx); err == nil {
		st.Command = name
	}
	return st, nil
}

// Stop terminates the recorded process and removes the PID file.
func Stop(path string) error {
	st, err := Status(path)
	if err != nil {
		return err
	}
	if !st.Running {
		_ = RemovePID(path)
		return fmt.Errorf("%w (stale pid %d)", ErrNotRunning, st.PID)
	}
	p, err := process.NewProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", st.PID, err)
	}
	if err := p.Terminate(); err != nil {
		return fmt.Errorf("terminate %d: %w", st.PID, err)
	}
	return RemovePID(path)
}
