package run

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// RunLock provides an exclusive lock for branch-managing runs. Local-apply
// runs take no lock: plan files are guarded by the continuation prompt, not
// mutual exclusion, and two local runs never fight over the working branch.
type RunLock struct {
	file *os.File
}

// TryAcquireRunLock attempts to acquire .stagehand/locks/run.lock without
// blocking. held is false when another run owns the lock.
func TryAcquireRunLock(stagehandDir string) (lock *RunLock, held bool, err error) {
	locksDir := filepath.Join(stagehandDir, "locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create locks dir: %w", err)
	}
	lockPath := filepath.Join(locksDir, "run.lock")
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, false, nil
	}
	return &RunLock{file: file}, true, nil
}

// Release releases the lock.
func (l *RunLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
