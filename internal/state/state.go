// Package state manages the .orchestrator directory a running cmd/orchestrator
// process shares with the CLI commands that control it (pause/resume/approve)
// and read its progress (status/report), grounded on the teacher's
// internal/state flag-file directory layout (RalphDirPath/PausedFile/
// GetStoredParentTaskID), generalized from one paused-flag file to the set of
// control and snapshot files a long-running orchestrator run needs.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Directory and file names under the project root.
const (
	Dir                = ".orchestrator"
	StateDir           = "state"
	LogsDir            = "logs"
	PausedFile         = "paused"
	ApproveFile        = "approve"
	PIDFile            = "pid"
	StatusFile         = "status.json"
	ReportFile         = "report.md"
	RollbackFile       = "rollback-request"
	RollbackResultFile = "rollback-result"
	ResetRequestFile   = "reset-request"
)

// DirPath returns the .orchestrator directory path under root.
func DirPath(root string) string {
	return filepath.Join(root, Dir)
}

// StateDirPath returns the control/snapshot directory path under root.
func StateDirPath(root string) string {
	return filepath.Join(root, Dir, StateDir)
}

// LogsDirPath returns the subprocess NDJSON log directory path under root.
func LogsDirPath(root string) string {
	return filepath.Join(root, Dir, LogsDir)
}

// Ensure creates the .orchestrator directory structure if missing. Safe to
// call repeatedly.
func Ensure(root string) error {
	for _, dir := range []string{DirPath(root), StateDirPath(root), LogsDirPath(root)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("state: create %s: %w", dir, err)
		}
	}
	return nil
}

func pausedFilePath(root string) string   { return filepath.Join(StateDirPath(root), PausedFile) }
func approveFilePath(root string) string  { return filepath.Join(StateDirPath(root), ApproveFile) }
func pidFilePath(root string) string      { return filepath.Join(StateDirPath(root), PIDFile) }
func statusFilePath(root string) string   { return filepath.Join(StateDirPath(root), StatusFile) }
func reportFilePath(root string) string   { return filepath.Join(StateDirPath(root), ReportFile) }
func rollbackReqPath(root string) string  { return filepath.Join(StateDirPath(root), RollbackFile) }
func rollbackResPath(root string) string  { return filepath.Join(StateDirPath(root), RollbackResultFile) }
func resetReqPath(root string) string     { return filepath.Join(StateDirPath(root), ResetRequestFile) }

// IsPaused reports whether the paused flag file is present.
func IsPaused(root string) (bool, error) {
	_, err := os.Stat(pausedFilePath(root))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("state: check paused: %w", err)
}

// SetPaused creates or removes the paused flag file.
func SetPaused(root string, paused bool) error {
	path := pausedFilePath(root)
	if !paused {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("state: clear paused: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("state: set paused: %w", err)
	}
	return f.Close()
}

// WriteApproval records an approver's decision to resume a paused-for-review
// run. The running process polls ReadApproval and clears it once consumed.
func WriteApproval(root, approver string) error {
	if err := os.WriteFile(approveFilePath(root), []byte(approver), 0644); err != nil {
		return fmt.Errorf("state: write approval: %w", err)
	}
	return nil
}

// ReadApproval returns the pending approver name, or "" if none is recorded.
func ReadApproval(root string) (string, error) {
	data, err := os.ReadFile(approveFilePath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("state: read approval: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ClearApproval removes a recorded approval after it has been consumed.
func ClearApproval(root string) error {
	if err := os.Remove(approveFilePath(root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: clear approval: %w", err)
	}
	return nil
}

// WritePID records the running orchestrator process's PID.
func WritePID(root string, pid int) error {
	if err := os.WriteFile(pidFilePath(root), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("state: write pid: %w", err)
	}
	return nil
}

// ReadPID returns the PID recorded by WritePID, or 0 if none is running.
func ReadPID(root string) (int, error) {
	data, err := os.ReadFile(pidFilePath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("state: read pid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("state: parse pid: %w", err)
	}
	return pid, nil
}

// RemovePID clears the PID file, signalling no run is in progress.
func RemovePID(root string) error {
	if err := os.Remove(pidFilePath(root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: remove pid: %w", err)
	}
	return nil
}

// WriteStatus persists the latest status snapshot for `status` to read.
func WriteStatus(root string, data []byte) error {
	if err := os.WriteFile(statusFilePath(root), data, 0644); err != nil {
		return fmt.Errorf("state: write status: %w", err)
	}
	return nil
}

// ReadStatus returns the last status snapshot written by a run, or
// os.ErrNotExist if none exists yet.
func ReadStatus(root string) ([]byte, error) {
	data, err := os.ReadFile(statusFilePath(root))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteRollbackRequest asks the running orchestrator to roll its active
// tree back to checkpointID. The running process polls ReadRollbackRequest,
// performs the rollback, writes a result via WriteRollbackResult, and clears
// the request.
func WriteRollbackRequest(root, checkpointID string) error {
	if err := os.WriteFile(rollbackReqPath(root), []byte(checkpointID), 0644); err != nil {
		return fmt.Errorf("state: write rollback request: %w", err)
	}
	return nil
}

// ReadRollbackRequest returns the pending checkpoint id, or "" if none.
func ReadRollbackRequest(root string) (string, error) {
	data, err := os.ReadFile(rollbackReqPath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("state: read rollback request: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ClearRollbackRequest removes a consumed rollback request.
func ClearRollbackRequest(root string) error {
	if err := os.Remove(rollbackReqPath(root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: clear rollback request: %w", err)
	}
	return nil
}

// WriteRollbackResult records the outcome of a consumed rollback request.
func WriteRollbackResult(root, result string) error {
	if err := os.WriteFile(rollbackResPath(root), []byte(result), 0644); err != nil {
		return fmt.Errorf("state: write rollback result: %w", err)
	}
	return nil
}

// ReadRollbackResult returns the last rollback outcome, or "" if none.
func ReadRollbackResult(root string) (string, error) {
	data, err := os.ReadFile(rollbackResPath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("state: read rollback result: %w", err)
	}
	return string(data), nil
}

// ClearRollbackResult removes a consumed rollback result so a future
// rollback command doesn't read a stale answer.
func ClearRollbackResult(root string) error {
	if err := os.Remove(rollbackResPath(root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: clear rollback result: %w", err)
	}
	return nil
}

// WriteResetRequest asks the running orchestrator to trigger a human-
// initiated CycleResetManager reset (spec.md §4.8's TriggerHumanSignal),
// alongside pause/approve/rollback's control-file set. The running process
// polls ReadResetRequest and clears it once consumed.
func WriteResetRequest(root string) error {
	if err := os.WriteFile(resetReqPath(root), []byte("1"), 0644); err != nil {
		return fmt.Errorf("state: write reset request: %w", err)
	}
	return nil
}

// ReadResetRequest reports whether a reset request is pending.
func ReadResetRequest(root string) (bool, error) {
	_, err := os.Stat(resetReqPath(root))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("state: check reset request: %w", err)
}

// ClearResetRequest removes a consumed reset request.
func ClearResetRequest(root string) error {
	if err := os.Remove(resetReqPath(root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: clear reset request: %w", err)
	}
	return nil
}

// WriteReport persists the formatted end-of-run report for `report` to read.
func WriteReport(root string, formatted string) error {
	if err := os.WriteFile(reportFilePath(root), []byte(formatted), 0644); err != nil {
		return fmt.Errorf("state: write report: %w", err)
	}
	return nil
}

// ReadReport returns the last report written by a completed run, or
// os.ErrNotExist if none exists yet.
func ReadReport(root string) (string, error) {
	data, err := os.ReadFile(reportFilePath(root))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
